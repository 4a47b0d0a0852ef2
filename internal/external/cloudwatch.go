package external

import (
	"context"
	"log/slog"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/cloudwatch"
	cwtypes "github.com/aws/aws-sdk-go-v2/service/cloudwatch/types"

	"aurorawatch/internal/types"
)

// defaultMetricNamespace is the CloudWatch namespace for pipeline telemetry.
const defaultMetricNamespace = "AuroraWatch"

// CloudWatchAPI defines the subset of the CloudWatch client used by the
// metrics publisher. Extracted for testability.
type CloudWatchAPI interface {
	PutMetricData(ctx context.Context, params *cloudwatch.PutMetricDataInput, optFns ...func(*cloudwatch.Options)) (*cloudwatch.PutMetricDataOutput, error)
}

// CloudWatchMetrics implements MetricPublisher on CloudWatch PutMetricData.
// All publishes are best effort: errors are logged and swallowed so metric
// outages never fail an evaluation cycle.
type CloudWatchMetrics struct {
	api       CloudWatchAPI
	namespace string
	logger    *slog.Logger
}

// NewCloudWatchMetrics creates a metrics publisher. An empty namespace
// falls back to the default.
func NewCloudWatchMetrics(api CloudWatchAPI, namespace string, logger *slog.Logger) *CloudWatchMetrics {
	if namespace == "" {
		namespace = defaultMetricNamespace
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &CloudWatchMetrics{api: api, namespace: namespace, logger: logger}
}

// PublishEvaluation records the measured Kp, the visibility score, and the
// send decision for one location's realtime evaluation.
func (m *CloudWatchMetrics) PublishEvaluation(ctx context.Context, location string, kp float64, score int, send bool) {
	now := time.Now()
	dims := []cwtypes.Dimension{{
		Name:  aws.String("Location"),
		Value: aws.String(location),
	}}

	sendVal := 0.0
	if send {
		sendVal = 1.0
	}

	m.put(ctx, []cwtypes.MetricDatum{
		{
			MetricName: aws.String("KpMeasured"),
			Timestamp:  aws.Time(now),
			Value:      aws.Float64(kp),
			Dimensions: dims,
		},
		{
			MetricName: aws.String("VisibilityScore"),
			Timestamp:  aws.Time(now),
			Value:      aws.Float64(float64(score)),
			Dimensions: dims,
		},
		{
			MetricName: aws.String("RealtimeSendDecision"),
			Timestamp:  aws.Time(now),
			Value:      aws.Float64(sendVal),
			Dimensions: dims,
		},
	})
}

// PublishDispatched records how many notifications of the given kind were
// dispatched for a location this cycle.
func (m *CloudWatchMetrics) PublishDispatched(ctx context.Context, location string, kind types.AlertKind, count int) {
	m.put(ctx, []cwtypes.MetricDatum{{
		MetricName: aws.String("NotificationsDispatched"),
		Timestamp:  aws.Time(time.Now()),
		Value:      aws.Float64(float64(count)),
		Dimensions: []cwtypes.Dimension{
			{Name: aws.String("Location"), Value: aws.String(location)},
			{Name: aws.String("Kind"), Value: aws.String(string(kind))},
		},
	}})
}

func (m *CloudWatchMetrics) put(ctx context.Context, data []cwtypes.MetricDatum) {
	_, err := m.api.PutMetricData(ctx, &cloudwatch.PutMetricDataInput{
		Namespace:  aws.String(m.namespace),
		MetricData: data,
	})
	if err != nil {
		m.logger.WarnContext(ctx, "failed to publish cloudwatch metrics", "error", err)
	}
}

// NopMetrics is a MetricPublisher that discards all telemetry. Used by the
// local cycle runner where CloudWatch is not available.
type NopMetrics struct{}

func (NopMetrics) PublishEvaluation(context.Context, string, float64, int, bool) {}
func (NopMetrics) PublishDispatched(context.Context, string, types.AlertKind, int) {}

var (
	_ MetricPublisher = (*CloudWatchMetrics)(nil)
	_ MetricPublisher = NopMetrics{}
)

package email

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"aurorawatch/internal/types"
)

func sampleLocation() types.Location {
	return types.Location{
		Name:     "Windsor",
		Lat:      42.3149,
		Lon:      -83.0364,
		KpMin:    6,
		Timezone: "America/Toronto",
	}
}

func sampleEvaluation() *types.EvaluationResult {
	tz := time.FixedZone("EST", -5*3600)
	return &types.EvaluationResult{
		Send:  true,
		Score: 72,
		Details: types.EvaluationDetails{
			Kp:       6.33,
			Time:     time.Date(2026, 3, 9, 23, 0, 0, 0, tz),
			CloudPct: 20,
			Sunrise:  time.Date(2026, 3, 9, 6, 45, 0, 0, tz),
			Sunset:   time.Date(2026, 3, 9, 18, 30, 0, 0, tz),
			MoonPct:  35.5,
		},
	}
}

func TestRenderRealtimeIncludesConditions(t *testing.T) {
	rec := types.Recipient{Email: "aino@example.com", Name: "Aino"}

	rendered, err := RenderRealtime(sampleLocation(), rec, sampleEvaluation())
	require.NoError(t, err)

	assert.Equal(t, "🌌 Aurora Alert for Windsor – 72% Chance Tonight", rendered.Subject)

	for _, fragment := range []string{"Hello Aino", "6.33", "72", "20%", "35.5%", "Windsor"} {
		assert.Contains(t, rendered.BodyHTML, fragment)
		if fragment != "72" {
			assert.Contains(t, rendered.BodyText, fragment)
		}
	}
	assert.Contains(t, rendered.BodyHTML, "2026-03-09T23:00:00-05:00")
	assert.Contains(t, rendered.BodyText, "2026-03-09T23:00:00-05:00")
	assert.Contains(t, rendered.BodyText, "swpc.noaa.gov")
}

func TestRenderRealtimeFallbackName(t *testing.T) {
	rec := types.Recipient{Email: "anon@example.com"}

	rendered, err := RenderRealtime(sampleLocation(), rec, sampleEvaluation())
	require.NoError(t, err)
	assert.Contains(t, rendered.BodyText, "Hello there,")
	assert.Contains(t, rendered.BodyHTML, "Hello there,")
}

func TestRenderRealtimeEscapesRecipientName(t *testing.T) {
	rec := types.Recipient{Email: "x@example.com", Name: "<script>alert(1)</script>"}

	rendered, err := RenderRealtime(sampleLocation(), rec, sampleEvaluation())
	require.NoError(t, err)
	assert.NotContains(t, rendered.BodyHTML, "<script>")
}

func TestRenderRealtimeNilEvaluation(t *testing.T) {
	_, err := RenderRealtime(sampleLocation(), types.Recipient{Email: "a@b.c"}, nil)
	assert.Error(t, err)
}

func TestRenderForecastPlainText(t *testing.T) {
	tz := time.FixedZone("EST", -5*3600)
	fc := &types.ForecastDetails{
		Kp:         7,
		EventTime:  time.Date(2026, 3, 11, 3, 0, 0, 0, tz),
		NotifyTime: time.Date(2026, 3, 10, 10, 0, 0, 0, tz),
		KpMin:      6,
	}
	rec := types.Recipient{Email: "aino@example.com", Name: "Aino"}

	rendered, err := RenderForecast(sampleLocation(), rec, fc)
	require.NoError(t, err)

	assert.Equal(t, "🔮 Aurora Forecast for Windsor – Kp 7 at 2026-03-11T03:00:00-05:00", rendered.Subject)
	assert.Empty(t, rendered.BodyHTML, "forecast alerts are plain text")
	assert.Contains(t, rendered.BodyText, "Kp Index: 7")
	assert.Contains(t, rendered.BodyText, "Your alert threshold: 6")
	assert.Contains(t, rendered.BodyText, "2026-03-11T03:00:00-05:00")
}

func TestRenderForecastNilDetails(t *testing.T) {
	_, err := RenderForecast(sampleLocation(), types.Recipient{Email: "a@b.c"}, nil)
	assert.Error(t, err)
}

func TestFormatFloatTrimsZeros(t *testing.T) {
	cases := map[float64]string{
		6.33: "6.33",
		7:    "7",
		35.5: "35.5",
		0:    "0",
	}
	for input, want := range cases {
		assert.Equal(t, want, formatFloat(input), "formatFloat(%v)", input)
	}
}

func TestRedactEmail(t *testing.T) {
	cases := map[string]string{
		"":                 "",
		"no-at-sign":       "***",
		"@example.com":     "***@example.com",
		"aino@example.com": "a***@example.com",
	}
	for input, want := range cases {
		assert.Equal(t, want, RedactEmail(input))
	}
	assert.False(t, strings.Contains(RedactEmail("secret.person@example.com"), "ecret"))
}

package config

import (
	"context"
	"errors"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/ssm"
	ssmtypes "github.com/aws/aws-sdk-go-v2/service/ssm/types"
)

// mockSSMClient records GetParameters calls and serves canned responses.
type mockSSMClient struct {
	params     map[string]string
	invalid    []string
	err        error
	batchSizes []int
}

func (m *mockSSMClient) GetParameters(_ context.Context, input *ssm.GetParametersInput, _ ...func(*ssm.Options)) (*ssm.GetParametersOutput, error) {
	m.batchSizes = append(m.batchSizes, len(input.Names))
	if m.err != nil {
		return nil, m.err
	}

	output := &ssm.GetParametersOutput{}
	for _, name := range input.Names {
		if value, ok := m.params[name]; ok {
			output.Parameters = append(output.Parameters, ssmtypes.Parameter{
				Name:  aws.String(name),
				Value: aws.String(value),
			})
		}
	}
	output.InvalidParameters = m.invalid
	return output, nil
}

func TestSSMProviderResolvesParameters(t *testing.T) {
	client := &mockSSMClient{params: map[string]string{
		"/prod/aurorawatch/database/url": "postgres://resolved:5432/aurora",
	}}
	provider := newSSMProviderWithClient("us-east-1", client)

	result, err := provider.GetParametersBatch(context.Background(), []string{"/prod/aurorawatch/database/url"})
	if err != nil {
		t.Fatalf("GetParametersBatch returned error: %v", err)
	}
	if got := result["/prod/aurorawatch/database/url"]; got != "postgres://resolved:5432/aurora" {
		t.Errorf("resolved value = %q, want the decrypted parameter", got)
	}
}

func TestSSMProviderBatchesAtServiceLimit(t *testing.T) {
	params := make(map[string]string)
	var keys []string
	for i := 0; i < 13; i++ {
		key := "/prod/aurorawatch/param/" + string(rune('a'+i))
		params[key] = "value"
		keys = append(keys, key)
	}
	client := &mockSSMClient{params: params}
	provider := newSSMProviderWithClient("us-east-1", client)

	result, err := provider.GetParametersBatch(context.Background(), keys)
	if err != nil {
		t.Fatalf("GetParametersBatch returned error: %v", err)
	}
	if len(result) != 13 {
		t.Errorf("resolved %d parameters, want 13", len(result))
	}
	if len(client.batchSizes) != 2 || client.batchSizes[0] != 10 || client.batchSizes[1] != 3 {
		t.Errorf("batch sizes = %v, want [10 3]", client.batchSizes)
	}
}

func TestSSMProviderReportsInvalidParameters(t *testing.T) {
	client := &mockSSMClient{invalid: []string{"/prod/aurorawatch/missing"}}
	provider := newSSMProviderWithClient("us-east-1", client)

	_, err := provider.GetParametersBatch(context.Background(), []string{"/prod/aurorawatch/missing"})
	if err == nil {
		t.Fatal("expected an error for invalid parameters")
	}
}

func TestSSMProviderPropagatesAPIError(t *testing.T) {
	client := &mockSSMClient{err: errors.New("throttled")}
	provider := newSSMProviderWithClient("us-east-1", client)

	_, err := provider.GetParametersBatch(context.Background(), []string{"/prod/aurorawatch/database/url"})
	if err == nil {
		t.Fatal("expected an error when the API call fails")
	}
}

func TestSSMProviderEmptyKeys(t *testing.T) {
	provider := newSSMProviderWithClient("us-east-1", &mockSSMClient{})

	result, err := provider.GetParametersBatch(context.Background(), nil)
	if err != nil {
		t.Fatalf("GetParametersBatch returned error: %v", err)
	}
	if len(result) != 0 {
		t.Errorf("expected empty result, got %d entries", len(result))
	}
}

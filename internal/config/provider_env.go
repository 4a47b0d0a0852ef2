package config

import (
	"context"
	"os"
)

// EnvVarProvider implements SecretProvider by resolving secret values from OS
// environment variables. It is the provider for local development, where
// secrets come from the environment or a .env file instead of SSM.
type EnvVarProvider struct{}

// NewEnvVarProvider creates a new EnvVarProvider.
func NewEnvVarProvider() *EnvVarProvider {
	return &EnvVarProvider{}
}

// GetParametersBatch resolves each key via os.LookupEnv. Missing keys are
// silently omitted from the returned map.
func (p *EnvVarProvider) GetParametersBatch(_ context.Context, keys []string) (map[string]string, error) {
	result := make(map[string]string, len(keys))
	for _, key := range keys {
		if val, ok := os.LookupEnv(key); ok {
			result[key] = val
		}
	}
	return result, nil
}

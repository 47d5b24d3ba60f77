package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFromEnvDefaults(t *testing.T) {
	t.Setenv("CREDIT_INPUT_PATH", "data.csv")

	cfg, err := FromEnv()
	require.NoError(t, err)

	assert.Equal(t, "report", cfg.Mode)
	assert.Equal(t, "file", cfg.Source)
	assert.Equal(t, "country", cfg.CompareKey)
	assert.Equal(t, ":8080", cfg.HTTPAddr)
	assert.Equal(t, int64(32<<20), cfg.MaxUploadBytes)
	assert.Equal(t, 3, cfg.MaxRetries)
	assert.Equal(t, "native", cfg.SnapshotEngine)
}

func TestFromEnvOverrides(t *testing.T) {
	t.Setenv("CREDIT_MODE", "serve")
	t.Setenv("CREDIT_HTTP_ADDR", "127.0.0.1:9000")
	t.Setenv("CREDIT_RATE_LIMIT_RPS", "2.5")

	cfg, err := FromEnv()
	require.NoError(t, err)

	assert.Equal(t, "serve", cfg.Mode)
	assert.Equal(t, "127.0.0.1:9000", cfg.HTTPAddr)
	assert.InDelta(t, 2.5, cfg.RateLimitRPS, 1e-9)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		cfg     Config
		wantErr string
	}{
		{"unknown mode", Config{Mode: "batch", Source: "file", MaxUploadBytes: 1}, "unknown mode"},
		{"unknown source", Config{Mode: "serve", Source: "s3", MaxUploadBytes: 1}, "unknown source"},
		{"report needs input", Config{Mode: "report", Source: "file", MaxUploadBytes: 1}, "INPUT_PATH"},
		{"postgres report ok", Config{Mode: "report", Source: "postgres", MaxUploadBytes: 1}, ""},
		{"unknown snapshot engine", Config{Mode: "serve", Source: "file", MaxUploadBytes: 1, SnapshotEngine: "gpu"}, "snapshot engine"},
		{"chrome snapshot engine", Config{Mode: "serve", Source: "file", MaxUploadBytes: 1, SnapshotEngine: "chrome"}, ""},
		{"zero upload limit", Config{Mode: "serve", Source: "file"}, "MAX_UPLOAD_BYTES"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.cfg.Validate()
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestDSN(t *testing.T) {
	c := &Config{
		PostgresHost: "db", PostgresPort: "5433", PostgresUser: "u",
		PostgresPassword: "p", PostgresDB: "credit", PostgresSSLMode: "disable",
	}
	assert.Equal(t, "host=db port=5433 user=u password=p dbname=credit sslmode=disable", c.DSN())
}

package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(c *Config)
		wantErr string
	}{
		{name: "defaults are valid", mutate: func(*Config) {}},
		{name: "ephemeral ports are valid", mutate: func(c *Config) { c.GoodPort, c.BadPort = 0, 0 }},
		{name: "empty host", mutate: func(c *Config) { c.Host = "" }, wantErr: "host must not be empty"},
		{name: "same ports", mutate: func(c *Config) { c.BadPort = c.GoodPort }, wantErr: "must differ"},
		{name: "port out of range", mutate: func(c *Config) { c.BadPort = 70000 }, wantErr: "below 65536"},
		{name: "negative grace", mutate: func(c *Config) { c.Responder.GraceDelay = -1 }, wantErr: "graceDelay"},
		{name: "negative read timeout", mutate: func(c *Config) { c.Responder.ReadTimeout = -1 }, wantErr: "readTimeout"},
		{name: "negative max conns", mutate: func(c *Config) { c.Responder.MaxConns = -1 }, wantErr: "maxConns"},
		{name: "zero attempts", mutate: func(c *Config) { c.Probe.Attempts = 0 }, wantErr: "probe.attempts"},
		{name: "zero buffer", mutate: func(c *Config) { c.Probe.ReadBufferSize = 0 }, wantErr: "readBufferSize"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := New()
			tt.mutate(cfg)
			err := cfg.Validate()
			if tt.wantErr == "" {
				require.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

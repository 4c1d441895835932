package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfigFile(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

// TestLoadFrom tests loading with various combinations of file and env
func TestLoadFrom(t *testing.T) {
	tests := []struct {
		name        string
		env         map[string]string
		file        string
		wantErr     bool
		validateCfg func(*testing.T, *Config)
	}{
		{
			name: "defaults",
			validateCfg: func(t *testing.T, cfg *Config) {
				assert.Equal(t, 8080, cfg.Server.Port)
				assert.Equal(t, 30*time.Second, cfg.Server.ReadTimeout)
				assert.Equal(t, 30*time.Minute, cfg.Sessions.TTL)
				assert.Equal(t, 100, cfg.Sessions.MaxSessions)
				assert.Equal(t, int64(50<<20), cfg.Sessions.MaxUploadBytes)
				assert.Equal(t, 10, cfg.Pipeline.DefaultTopN)
				assert.Equal(t, 50, cfg.Pipeline.MaxCategories)
				assert.Equal(t, 1024, cfg.Charts.Width)
				assert.Equal(t, "console", cfg.Logging.Output)
				assert.Equal(t, "csvpulse", cfg.Telemetry.ServiceName)
			},
		},
		{
			name: "environment overrides",
			env: map[string]string{
				"CSVPULSE_SERVER_PORT":              "9090",
				"CSVPULSE_SESSIONS_TTL":             "5m",
				"CSVPULSE_PIPELINE_DEFAULT_TOP_N":   "25",
				"CSVPULSE_SECURITY_ALLOWED_ORIGINS": "http://a.test,http://b.test",
				"CSVPULSE_LOGGING_LEVEL":            "debug",
			},
			validateCfg: func(t *testing.T, cfg *Config) {
				assert.Equal(t, 9090, cfg.Server.Port)
				assert.Equal(t, 5*time.Minute, cfg.Sessions.TTL)
				assert.Equal(t, 25, cfg.Pipeline.DefaultTopN)
				assert.Equal(t, []string{"http://a.test", "http://b.test"}, cfg.Security.AllowedOrigins)
				assert.Equal(t, "debug", cfg.Logging.Level)
			},
		},
		{
			name: "file overlays defaults",
			file: "server:\n  port: 7070\nsessions:\n  max_sessions: 3\ncharts:\n  width: 800\n",
			validateCfg: func(t *testing.T, cfg *Config) {
				assert.Equal(t, 7070, cfg.Server.Port)
				assert.Equal(t, 3, cfg.Sessions.MaxSessions)
				assert.Equal(t, 800, cfg.Charts.Width)
				assert.Equal(t, 512, cfg.Charts.Height, "keys absent from the file keep their defaults")
			},
		},
		{
			name: "environment wins over file",
			env:  map[string]string{"CSVPULSE_SERVER_PORT": "6060"},
			file: "server:\n  port: 7070\n",
			validateCfg: func(t *testing.T, cfg *Config) {
				assert.Equal(t, 6060, cfg.Server.Port)
			},
		},
		{
			name: "unknown logging output falls back to console",
			env:  map[string]string{"CSVPULSE_LOGGING_OUTPUT": "syslog"},
			validateCfg: func(t *testing.T, cfg *Config) {
				assert.Equal(t, "console", cfg.Logging.Output)
			},
		},
		{
			name: "file logging gets a default path",
			file: "logging:\n  output: FILE\n  file_path: \"\"\n",
			validateCfg: func(t *testing.T, cfg *Config) {
				assert.Equal(t, "file", cfg.Logging.Output)
				assert.Equal(t, "logs/csvpulse.log", cfg.Logging.FilePath)
			},
		},
		{
			name:    "invalid port",
			env:     map[string]string{"CSVPULSE_SERVER_PORT": "70000"},
			wantErr: true,
		},
		{
			name:    "malformed env value",
			env:     map[string]string{"CSVPULSE_SESSIONS_TTL": "soon"},
			wantErr: true,
		},
		{
			name:    "malformed file",
			file:    "server: [",
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			for k, v := range tt.env {
				t.Setenv(k, v)
			}
			path := ""
			if tt.file != "" {
				path = writeConfigFile(t, tt.file)
			}

			cfg, err := LoadFrom(path)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			tt.validateCfg(t, cfg)
		})
	}
}

func TestLoadFrom_MissingFile(t *testing.T) {
	_, err := LoadFrom(filepath.Join(t.TempDir(), "absent.yaml"))
	assert.Error(t, err)
}

func TestLoad_UsesConfigEnv(t *testing.T) {
	t.Setenv("CSVPULSE_CONFIG", writeConfigFile(t, "server:\n  port: 5050\n"))

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, 5050, cfg.Server.Port)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{name: "default is valid", mutate: func(*Config) {}},
		{name: "zero port", mutate: func(c *Config) { c.Server.Port = 0 }, wantErr: "invalid server port"},
		{name: "zero read timeout", mutate: func(c *Config) { c.Server.ReadTimeout = 0 }, wantErr: "read timeout"},
		{name: "zero write timeout", mutate: func(c *Config) { c.Server.WriteTimeout = 0 }, wantErr: "write timeout"},
		{name: "cors without origins", mutate: func(c *Config) { c.Security.AllowedOrigins = nil }, wantErr: "allowed origin"},
		{name: "cors disabled without origins", mutate: func(c *Config) {
			c.Security.EnableCORS = false
			c.Security.AllowedOrigins = nil
		}},
		{name: "rate limit without burst", mutate: func(c *Config) { c.Security.RateLimit.Burst = 0 }, wantErr: "rate limit"},
		{name: "zero session ttl", mutate: func(c *Config) { c.Sessions.TTL = 0 }, wantErr: "session ttl"},
		{name: "zero sweep interval", mutate: func(c *Config) { c.Sessions.SweepInterval = 0 }, wantErr: "sweep interval"},
		{name: "zero upload limit", mutate: func(c *Config) { c.Sessions.MaxUploadBytes = 0 }, wantErr: "upload"},
		{name: "page limit above max", mutate: func(c *Config) { c.Pipeline.PageLimit = 2000 }, wantErr: "page limit"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(cfg)
			err := cfg.validate()
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

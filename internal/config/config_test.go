package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "saori.toml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestDefault_IsValid(t *testing.T) {
	require.NoError(t, Default().Validate())
}

func TestLoad_NoFile(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, Default(), cfg)
}

func TestLoad_File(t *testing.T) {
	path := writeConfig(t, `
[server]
network = "unix"
address = "/tmp/saori.sock"
read_timeout = "2s"
idle_timeout = "1m"
max_request_bytes = 4096

[log]
level = "debug"
format = "console"

[breaker]
enabled = true
max_requests = 3
interval = "30s"
timeout = "1m"

[metrics]
address = ":9090"

[module]
dir = "/opt/ghost/saori"
encoding = "UTF-8"
strict = true
`)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "unix", cfg.Server.Network)
	assert.Equal(t, "/tmp/saori.sock", cfg.Server.Address)
	assert.Equal(t, 2*time.Second, cfg.Server.ReadTimeout)
	assert.Equal(t, 5*time.Second, cfg.Server.WriteTimeout, "unset keys keep their default")
	assert.Equal(t, time.Minute, cfg.Server.IdleTimeout)
	assert.Equal(t, 4096, cfg.Server.MaxRequestBytes)

	assert.Equal(t, Log{Level: "debug", Format: "console"}, cfg.Log)
	assert.Equal(t, Breaker{Enabled: true, MaxRequests: 3, Interval: 30 * time.Second, Timeout: time.Minute}, cfg.Breaker)
	assert.Equal(t, ":9090", cfg.Metrics.Address)
	assert.Equal(t, Module{Dir: "/opt/ghost/saori", Encoding: "UTF-8", Strict: true}, cfg.Module)
}

func TestLoad_PartialFile(t *testing.T) {
	path := writeConfig(t, `
[log]
level = "warn"
`)

	cfg, err := Load(path)
	require.NoError(t, err)

	want := Default()
	want.Log.Level = "warn"
	assert.Equal(t, want, cfg)
}

func TestLoad_Errors(t *testing.T) {
	tests := []struct {
		name    string
		content string
		errMsg  string
	}{
		{"bad toml", "[server\n", "load config"},
		{"bad duration", "[server]\nread_timeout = \"soon\"\n", "parse server.read_timeout"},
		{"unknown key", "[server]\nport = 9801\n", `unknown key "server.port"`},
		{"bad network", "[server]\nnetwork = \"udp\"\n", "server.network"},
		{"bad level", "[log]\nlevel = \"loud\"\n", "log.level"},
		{"bad format", "[log]\nformat = \"xml\"\n", "log.format"},
		{"bad encoding", "[module]\nencoding = \"EUC-JP\"\n", "module.encoding"},
		{"empty address", "[server]\naddress = \"\"\n", "server.address"},
		{"zero max bytes", "[server]\nmax_request_bytes = 0\n", "server.max_request_bytes"},
		{"breaker without timeout", "[breaker]\nenabled = true\ntimeout = \"0s\"\n", "breaker.timeout"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Load(writeConfig(t, tt.content))
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.errMsg)
		})
	}
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.toml"))
	require.ErrorIs(t, err, os.ErrNotExist)
}

func TestLoad_EnvOverrides(t *testing.T) {
	path := writeConfig(t, `
[server]
address = "127.0.0.1:1000"
`)
	t.Setenv("SAORI_SERVER_ADDRESS", "0.0.0.0:2000")
	t.Setenv("SAORI_LOG_LEVEL", "error")
	t.Setenv("SAORI_MODULE_STRICT", "true")
	t.Setenv("SAORI_BREAKER_ENABLED", "1")
	t.Setenv("SAORI_METRICS_ADDRESS", "127.0.0.1:9090")

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "0.0.0.0:2000", cfg.Server.Address)
	assert.Equal(t, "error", cfg.Log.Level)
	assert.True(t, cfg.Module.Strict)
	assert.True(t, cfg.Breaker.Enabled)
	assert.Equal(t, "127.0.0.1:9090", cfg.Metrics.Address)
}

func TestApplyEnv_InvalidBool(t *testing.T) {
	cfg := Default()
	lookup := func(name string) (string, bool) {
		if name == "SAORI_MODULE_STRICT" {
			return "maybe", true
		}
		return "", false
	}

	err := applyEnv(&cfg, lookup)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "SAORI_MODULE_STRICT")
}

func TestValidate_JoinsErrors(t *testing.T) {
	cfg := Default()
	cfg.Server.Network = "udp"
	cfg.Log.Format = "xml"

	err := cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "server.network")
	assert.Contains(t, err.Error(), "log.format")
}

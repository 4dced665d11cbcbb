package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	var c Config
	c.LoadDefaults()

	assert.Equal(t, "http://127.0.0.1:5000", c.ServerEndpointAddr)
	assert.Equal(t, 10*time.Second, c.RequestTimeout)
	assert.Equal(t, 3*time.Second, c.OnlineCheckInterval)
}

func TestParseFlags(t *testing.T) {
	tests := []struct {
		expected    *Config
		name        string
		args        []string
		expectPanic bool
	}{
		{name: "all flags", args: []string{"-a", "http://example.com:8080", "-t", "5", "-i", "10"},
			expected: &Config{ServerEndpointAddr: "http://example.com:8080", RequestTimeout: 5 * time.Second, OnlineCheckInterval: 10 * time.Second}},
		{name: "foreign flags ignored", args: []string{"-c", "client.json", "-a", "http://h:1"},
			expected: &Config{ServerEndpointAddr: "http://h:1", RequestTimeout: 10 * time.Second, OnlineCheckInterval: 3 * time.Second}},
		{name: "incorrect interval", args: []string{"-i", "abc"}, expectPanic: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			config := &Config{}
			config.LoadDefaults()

			if tt.expectPanic {
				require.Panics(t, func() { parseFlags(config, tt.args) })
				return
			}

			require.NotPanics(t, func() { parseFlags(config, tt.args) })
			if diff := cmp.Diff(tt.expected, config); diff != "" {
				t.Fatalf("config mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestParseJson(t *testing.T) {
	path := filepath.Join(t.TempDir(), "client.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"server_endpoint_addr":"http://api:5000","online_check_interval":"1s"}`), 0o600))

	cfg := &Config{}
	cfg.LoadDefaults()
	parseJson(cfg, []string{"-config", path})

	assert.Equal(t, "http://api:5000", cfg.ServerEndpointAddr)
	assert.Equal(t, time.Second, cfg.OnlineCheckInterval)
	assert.Equal(t, 10*time.Second, cfg.RequestTimeout)
}

func TestParseJson_Errors(t *testing.T) {
	dir := t.TempDir()

	assert.Panics(t, func() {
		parseJson(&Config{}, []string{"-c", filepath.Join(dir, "missing.json")})
	})

	bad := filepath.Join(dir, "bad.json")
	require.NoError(t, os.WriteFile(bad, []byte("{"), 0o600))
	assert.Panics(t, func() { parseJson(&Config{}, []string{"-c", bad}) })
}

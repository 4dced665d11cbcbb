package config

import (
	"os"
	"testing"
)

// unsetEnv clears keys for the duration of the test and restores them after.
func unsetEnv(t *testing.T, keys ...string) {
	t.Helper()
	for _, k := range keys {
		t.Setenv(k, "")
		if err := os.Unsetenv(k); err != nil {
			t.Fatalf("unsetenv %s: %v", k, err)
		}
	}
}

func defaults() *Config {
	c := &Config{}
	c.LoadDefaults()
	return c
}

package config

import (
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	for _, key := range []string{
		"CHATSYNC_BASE_URL", "CHATSYNC_TOKEN", "CHATSYNC_DB", "CHATSYNC_LOCALE",
		"CHATSYNC_TIMEOUT", "CHATSYNC_ENV", "LOG_LEVEL",
	} {
		t.Setenv(key, "")
		require.NoError(t, os.Unsetenv(key))
	}
	t.Setenv("CHATSYNC_TIMEZONE", "UTC")

	cfg, err := Load()
	require.NoError(t, err)
	require.Equal(t, "http://localhost:8080/api", cfg.BaseURL)
	require.Equal(t, 10*time.Second, cfg.RequestTimeout)
	require.Equal(t, time.UTC, cfg.Timezone)
	require.Equal(t, "en-US", cfg.Locale)
	require.Equal(t, "chatsync.db", cfg.DBFile)
}

func TestLoad_Invalid(t *testing.T) {
	tests := []struct {
		name string
		key  string
		val  string
	}{
		{"bad timeout", "CHATSYNC_TIMEOUT", "soon"},
		{"zero timeout", "CHATSYNC_TIMEOUT", "0s"},
		{"bad scheme", "CHATSYNC_BASE_URL", "ftp://example.com"},
		{"bad timezone", "CHATSYNC_TIMEZONE", "Mars/Olympus"},
		{"empty db", "CHATSYNC_DB", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv("CHATSYNC_BASE_URL", "http://localhost:8080")
			t.Setenv("CHATSYNC_TIMEOUT", "1s")
			t.Setenv("CHATSYNC_TIMEZONE", "UTC")
			t.Setenv("CHATSYNC_DB", "x.db")
			t.Setenv(tt.key, tt.val)

			_, err := Load()
			require.Error(t, err)
		})
	}
}

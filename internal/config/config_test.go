package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_MissingFileGivesDefaults(t *testing.T) {
	t.Parallel()
	cfg, err := Load(filepath.Join(t.TempDir(), "absent.toml"))
	require.NoError(t, err)

	assert.Equal(t, "info", cfg.Log.Level)
	assert.Equal(t, int64(DefaultCeilingBytes), cfg.Telegram.CeilingBytes)
	assert.Equal(t, DefaultYtdlpPath, cfg.Fetch.YtdlpPath)
	assert.Equal(t, DefaultVideoLowHeight, cfg.Fetch.VideoLowHeight)
	assert.Equal(t, DefaultVideoHighHeight, cfg.Fetch.VideoHighHeight)
	assert.Equal(t, DefaultAudioFormat, cfg.Fetch.AudioFormat)
	assert.Equal(t, uint(DefaultSendRetries), cfg.Transfer.SendRetries)
	assert.Equal(t, DefaultJanitorMaxAge, cfg.Janitor.MaxAge)
	assert.Equal(t, 10*time.Minute, cfg.Fetch.Timeout())
}

func TestLoad_FileOverridesDefaults(t *testing.T) {
	t.Parallel()
	path := filepath.Join(t.TempDir(), "config.toml")
	content := `
[log]
level = "debug"

[telegram]
bot_token = "123:abc"
ceiling_bytes = 1048576

[fetch]
cookies_file = "/tmp/cookies.txt"
video_low_height = 360

[janitor]
max_age = "30m"
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "debug", cfg.Log.Level)
	assert.Equal(t, "123:abc", cfg.Telegram.BotToken)
	assert.Equal(t, int64(1048576), cfg.Telegram.CeilingBytes)
	assert.Equal(t, "/tmp/cookies.txt", cfg.Fetch.CookiesFile)
	assert.Equal(t, 360, cfg.Fetch.VideoLowHeight)
	assert.Equal(t, "30m", cfg.Janitor.MaxAge)

	// Untouched sections keep their defaults.
	assert.Equal(t, DefaultVideoHighHeight, cfg.Fetch.VideoHighHeight)
	assert.Equal(t, DefaultYtdlpPath, cfg.Fetch.YtdlpPath)

	maxAge, err := cfg.Janitor.MaxAgeDuration()
	require.NoError(t, err)
	assert.Equal(t, 30*time.Minute, maxAge)
}

func TestLoad_BadToml(t *testing.T) {
	t.Parallel()
	path := filepath.Join(t.TempDir(), "config.toml")
	require.NoError(t, os.WriteFile(path, []byte("telegram = nonsense"), 0o600))

	_, err := Load(path)
	assert.Error(t, err)
}

func TestValidate(t *testing.T) {
	t.Parallel()
	valid := func() Config {
		cfg, _ := Load(filepath.Join(t.TempDir(), "absent.toml"))
		cfg.Telegram.BotToken = "123:abc"
		return cfg
	}

	t.Run("defaults plus token pass", func(t *testing.T) {
		t.Parallel()
		assert.NoError(t, valid().Validate())
	})

	t.Run("missing token fails", func(t *testing.T) {
		t.Parallel()
		cfg := valid()
		cfg.Telegram.BotToken = ""
		assert.Error(t, cfg.Validate())
	})

	t.Run("zero ceiling fails", func(t *testing.T) {
		t.Parallel()
		cfg := valid()
		cfg.Telegram.CeilingBytes = 0
		assert.Error(t, cfg.Validate())
	})

	t.Run("zero retries fails", func(t *testing.T) {
		t.Parallel()
		cfg := valid()
		cfg.Transfer.SendRetries = 0
		assert.Error(t, cfg.Validate())
	})

	t.Run("unparseable max_age fails", func(t *testing.T) {
		t.Parallel()
		cfg := valid()
		cfg.Janitor.MaxAge = "soon"
		assert.Error(t, cfg.Validate())
	})
}

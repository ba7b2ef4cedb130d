package configs

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadConfigDefaults(t *testing.T) {
	t.Setenv("ENVIRONMENT", "")
	t.Setenv("CHAT_HOST", "")
	t.Setenv("CHAT_ROOM_ID", "")
	t.Setenv("CHAT_COOKIES_FILE", "")

	cfg, err := LoadConfig()

	require.NoError(t, err)
	assert.Equal(t, "development", cfg.Environment)
	assert.Equal(t, "stackexchange.com", cfg.ChatHost)
	assert.Equal(t, int64(1), cfg.RoomID)
	assert.Equal(t, "cookies.json", cfg.CookiesFile)
}

func TestLoadConfigInvalidRoomID(t *testing.T) {
	t.Setenv("CHAT_ROOM_ID", "not-a-number")

	_, err := LoadConfig()
	assert.Error(t, err)

	t.Setenv("CHAT_ROOM_ID", "-5")

	_, err = LoadConfig()
	assert.Error(t, err)
}

func TestLoadCookies(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "cookies.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"acct":"secret"}`), 0o600))

	cfg := &AppConfig{CookiesFile: path}

	cookies, err := cfg.LoadCookies()
	require.NoError(t, err)
	assert.Equal(t, "secret", cookies["acct"])
}

func TestLoadCookiesMissingFile(t *testing.T) {
	cfg := &AppConfig{CookiesFile: filepath.Join(t.TempDir(), "absent.json")}

	_, err := cfg.LoadCookies()
	assert.Error(t, err)
}

/*
Package configs is responsible for loading and parsing the application's configuration settings.

It primarily configures the chat session parameters by reading operating system environment
variables, including the running environment, the chat host, the room to join, and the
credential cookie set of the logged-in account.
*/
package configs

import (
	"encoding/json"
	"fmt"
	"os"
	"strconv"
)

// AppConfig contains all configuration parameters required for the application to run.
// All configuration values are loaded from environment variables.
type AppConfig struct {
	// General Settings
	Environment string

	// Chat Session Settings
	ChatHost string
	RoomID   int64

	// CookiesFile points to a JSON file holding the credential cookies of the
	// logged-in account, as a flat name-to-value object.
	CookiesFile string
}

// LoadConfig reads and parses the application configuration from environment variables.
// It provides default values for each configuration item and performs necessary type conversions and validation.
// It returns a pointer to the AppConfig struct and any error encountered.
func LoadConfig() (*AppConfig, error) {
	cfg := &AppConfig{}

	// --- General Settings ---
	// Environment
	cfg.Environment = os.Getenv("ENVIRONMENT")
	if cfg.Environment == "" {
		cfg.Environment = "development"
	}

	// --- Chat Session Settings ---
	// ChatHost
	cfg.ChatHost = os.Getenv("CHAT_HOST")
	if cfg.ChatHost == "" {
		cfg.ChatHost = "stackexchange.com"
	}

	// RoomID
	roomStr := os.Getenv("CHAT_ROOM_ID")
	if roomStr == "" {
		roomStr = "1"
	}
	roomID, err := strconv.ParseInt(roomStr, 10, 64)
	if err != nil {
		return nil, fmt.Errorf("invalid CHAT_ROOM_ID environment variable: %w", err)
	}
	if roomID <= 0 {
		return nil, fmt.Errorf("room id %d must be positive", roomID)
	}
	cfg.RoomID = roomID

	// CookiesFile
	cfg.CookiesFile = os.Getenv("CHAT_COOKIES_FILE")
	if cfg.CookiesFile == "" {
		cfg.CookiesFile = "cookies.json"
	}

	return cfg, nil
}

// LoadCookies reads the credential cookie set from the configured cookies file.
func (cfg *AppConfig) LoadCookies() (map[string]string, error) {
	data, err := os.ReadFile(cfg.CookiesFile)
	if err != nil {
		return nil, fmt.Errorf("failed to read cookies file %s: %w", cfg.CookiesFile, err)
	}

	cookies := make(map[string]string)
	if err := json.Unmarshal(data, &cookies); err != nil {
		return nil, fmt.Errorf("invalid cookies file %s: %w", cfg.CookiesFile, err)
	}
	return cookies, nil
}

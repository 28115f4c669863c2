// Package config loads driver configuration from the environment.
package config

import (
	"fmt"
	"os"
	"strconv"

	"github.com/waifuai/waifu-llm-vrm/connector"
)

// Config holds everything the demo driver needs to build a character.
type Config struct {
	// Backend selects the transport backend (auto|tcp|bridge).
	Backend connector.BackendKind
	// EngineHost is the engine host for the TCP backend.
	EngineHost string
	// EnginePort is the engine port for the TCP backend.
	EnginePort int
	// BridgeURL is the WebSocket URL for the bridge backend.
	BridgeURL string

	// CharacterName is the character's name.
	CharacterName string
	// Personality is the character's personality description.
	Personality string
	// VRMNodePath enables VRM features when set.
	VRMNodePath string
	// HistoryLimit bounds stored conversation turns.
	HistoryLimit int

	// Model overrides the default Gemini model when set.
	Model string
	// APIKeyFile overrides the conventional ~/.api-gemini location.
	APIKeyFile string

	// LogLevel is the logger threshold (trace|debug|info|warn|error).
	LogLevel string
}

// Load reads configuration from the environment with sensible defaults.
func Load() (*Config, error) {
	cfg := &Config{
		Backend:       connector.BackendAuto,
		EngineHost:    getenv("WAIFU_ENGINE_HOST", "localhost"),
		BridgeURL:     os.Getenv("WAIFU_BRIDGE_URL"),
		CharacterName: getenv("WAIFU_CHARACTER_NAME", "Aiko"),
		Personality:   getenv("WAIFU_PERSONALITY", "Energetic, optimistic, and loves discussing video games."),
		VRMNodePath:   os.Getenv("WAIFU_VRM_NODE_PATH"),
		Model:         os.Getenv("WAIFU_MODEL"),
		APIKeyFile:    os.Getenv("WAIFU_API_KEY_FILE"),
		LogLevel:      getenv("WAIFU_LOG_LEVEL", "info"),
	}

	if raw := os.Getenv("WAIFU_BACKEND"); raw != "" {
		switch kind := connector.BackendKind(raw); kind {
		case connector.BackendAuto, connector.BackendTCP, connector.BackendBridge:
			cfg.Backend = kind
		default:
			return nil, fmt.Errorf("invalid WAIFU_BACKEND %q (expected auto, tcp, or bridge)", raw)
		}
	}

	port, err := getenvInt("WAIFU_ENGINE_PORT", connector.DefaultPort)
	if err != nil {
		return nil, err
	}
	cfg.EnginePort = port

	limit, err := getenvInt("WAIFU_HISTORY_LIMIT", 0)
	if err != nil {
		return nil, err
	}
	if limit < 0 {
		return nil, fmt.Errorf("invalid WAIFU_HISTORY_LIMIT %d (must not be negative)", limit)
	}
	cfg.HistoryLimit = limit

	return cfg, nil
}

// ConnectorConfig maps the driver configuration onto a connector config.
func (c *Config) ConnectorConfig() connector.Config {
	return connector.Config{
		Backend:   c.Backend,
		Host:      c.EngineHost,
		Port:      c.EnginePort,
		BridgeURL: c.BridgeURL,
	}
}

func getenv(key, fallback string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return fallback
}

func getenvInt(key string, fallback int) (int, error) {
	raw := os.Getenv(key)
	if raw == "" {
		return fallback, nil
	}
	val, err := strconv.Atoi(raw)
	if err != nil {
		return 0, fmt.Errorf("invalid %s %q: %w", key, raw, err)
	}
	return val, nil
}

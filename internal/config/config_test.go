package config

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/waifuai/waifu-llm-vrm/connector"
)

func clearEnv(t *testing.T) {
	t.Helper()
	for _, key := range []string{
		"WAIFU_BACKEND", "WAIFU_ENGINE_HOST", "WAIFU_ENGINE_PORT",
		"WAIFU_BRIDGE_URL", "WAIFU_CHARACTER_NAME", "WAIFU_PERSONALITY",
		"WAIFU_VRM_NODE_PATH", "WAIFU_HISTORY_LIMIT", "WAIFU_MODEL",
		"WAIFU_API_KEY_FILE", "WAIFU_LOG_LEVEL",
	} {
		t.Setenv(key, "")
	}
}

func TestLoadDefaults(t *testing.T) {
	clearEnv(t)

	cfg, err := Load()
	require.NoError(t, err)
	require.Equal(t, connector.BackendAuto, cfg.Backend)
	require.Equal(t, "localhost", cfg.EngineHost)
	require.Equal(t, connector.DefaultPort, cfg.EnginePort)
	require.Equal(t, "Aiko", cfg.CharacterName)
	require.Equal(t, "info", cfg.LogLevel)
	require.Zero(t, cfg.HistoryLimit)
}

func TestLoadOverrides(t *testing.T) {
	clearEnv(t)
	t.Setenv("WAIFU_BACKEND", "bridge")
	t.Setenv("WAIFU_BRIDGE_URL", "ws://localhost:9001/bridge")
	t.Setenv("WAIFU_ENGINE_PORT", "9100")
	t.Setenv("WAIFU_CHARACTER_NAME", "Yui")
	t.Setenv("WAIFU_VRM_NODE_PATH", "/root/Scene/VRMNode")
	t.Setenv("WAIFU_HISTORY_LIMIT", "12")

	cfg, err := Load()
	require.NoError(t, err)
	require.Equal(t, connector.BackendBridge, cfg.Backend)
	require.Equal(t, "ws://localhost:9001/bridge", cfg.BridgeURL)
	require.Equal(t, 9100, cfg.EnginePort)
	require.Equal(t, "Yui", cfg.CharacterName)
	require.Equal(t, "/root/Scene/VRMNode", cfg.VRMNodePath)
	require.Equal(t, 12, cfg.HistoryLimit)

	cc := cfg.ConnectorConfig()
	require.Equal(t, connector.BackendBridge, cc.Backend)
	require.Equal(t, "ws://localhost:9001/bridge", cc.BridgeURL)
}

func TestLoadRejectsBadValues(t *testing.T) {
	clearEnv(t)

	t.Setenv("WAIFU_BACKEND", "carrier-pigeon")
	_, err := Load()
	require.Error(t, err)

	clearEnv(t)
	t.Setenv("WAIFU_ENGINE_PORT", "not-a-port")
	_, err = Load()
	require.Error(t, err)

	clearEnv(t)
	t.Setenv("WAIFU_HISTORY_LIMIT", "-3")
	_, err = Load()
	require.Error(t, err)
}

package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEnvOverrides_Channel(t *testing.T) {
	t.Run("HIPCORTEX_ENDPOINT implies http mode", func(t *testing.T) {
		clearEnv(t)
		t.Setenv("HIPCORTEX_ENDPOINT", "http://remote:7411")

		cfg := DefaultConfig()
		cfg.applyEnvOverrides()

		assert.Equal(t, "http://remote:7411", cfg.Channel.Endpoint)
		assert.Equal(t, ChannelHTTP, cfg.Channel.Mode)
	})

	t.Run("explicit HIPCORTEX_CHANNEL wins over implied mode", func(t *testing.T) {
		clearEnv(t)
		t.Setenv("HIPCORTEX_ENDPOINT", "http://remote:7411")
		t.Setenv("HIPCORTEX_CHANNEL", ChannelLocal)

		cfg := DefaultConfig()
		cfg.applyEnvOverrides()

		assert.Equal(t, ChannelLocal, cfg.Channel.Mode)
		assert.Equal(t, "http://remote:7411", cfg.Channel.Endpoint)
	})

	t.Run("no env leaves config untouched", func(t *testing.T) {
		clearEnv(t)

		cfg := DefaultConfig()
		cfg.applyEnvOverrides()

		assert.Equal(t, DefaultConfig(), cfg)
	})
}

func TestEnvOverrides_Runtime(t *testing.T) {
	clearEnv(t)
	t.Setenv("HIPCORTEX_DB", "/tmp/mem.db")
	t.Setenv("HIPCORTEX_GRAPH", "/tmp/graph.yaml")
	t.Setenv("HIPCORTEX_LISTEN", ":9999")
	t.Setenv("HIPCORTEX_DARK_MODE", "1")

	cfg := &Config{}
	cfg.applyEnvOverrides()

	assert.Equal(t, "/tmp/mem.db", cfg.Runtime.DatabasePath)
	assert.Equal(t, "/tmp/graph.yaml", cfg.Runtime.GraphSeedPath)
	assert.Equal(t, ":9999", cfg.Server.Listen)
	assert.True(t, cfg.UI.IsDark())
}

func TestEnvOverrides_AppliedOnLoad(t *testing.T) {
	clearEnv(t)
	t.Setenv("HIPCORTEX_DB", "/env/mem.db")

	path := DefaultConfigPath(t.TempDir())
	cfg := DefaultConfig()
	cfg.Runtime.DatabasePath = "/file/mem.db"
	require.NoError(t, cfg.Save(path))

	loaded, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "/env/mem.db", loaded.Runtime.DatabasePath)
}

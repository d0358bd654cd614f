package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestInit_RequiredEnvPresent(t *testing.T) {
	t.Setenv("MONGO_URI", "mongodb://localhost:27017")
	t.Setenv("GROQ_API_KEY", "gsk_test")

	cfg, err := Init("")
	require.NoError(t, err)

	require.Equal(t, "mongodb://localhost:27017", cfg.Mongo.URI)
	require.Equal(t, "gsk_test", cfg.LLM.APIKey)
	// 未显式配置时使用默认值
	require.Equal(t, "8000", cfg.Server.Port)
	require.Equal(t, "study_bot_db", cfg.Mongo.Database)
	require.Equal(t, "conversations", cfg.Mongo.Collection)
	require.Equal(t, "llama-3.3-70b-versatile", cfg.LLM.Model)
	require.InDelta(t, 0.7, cfg.LLM.Temperature, 1e-9)
}

func TestInit_MissingMongoURI(t *testing.T) {
	t.Setenv("MONGO_URI", "")
	t.Setenv("GROQ_API_KEY", "gsk_test")

	_, err := Init("")
	require.Error(t, err)
	require.Contains(t, err.Error(), "MONGO_URI")
}

func TestInit_MissingAPIKey(t *testing.T) {
	t.Setenv("MONGO_URI", "mongodb://localhost:27017")
	t.Setenv("GROQ_API_KEY", "")

	_, err := Init("")
	require.Error(t, err)
	require.Contains(t, err.Error(), "GROQ_API_KEY")
}

func TestInit_YAMLOverridesDefaults(t *testing.T) {
	t.Setenv("MONGO_URI", "mongodb://localhost:27017")
	t.Setenv("GROQ_API_KEY", "gsk_test")

	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	yaml := "server:\n  port: \"9000\"\nllm:\n  model: llama-3.1-8b-instant\n"
	require.NoError(t, os.WriteFile(path, []byte(yaml), 0o644))

	cfg, err := Init(path)
	require.NoError(t, err)
	require.Equal(t, "9000", cfg.Server.Port)
	require.Equal(t, "llama-3.1-8b-instant", cfg.LLM.Model)
}

func TestInit_BadConfigFile(t *testing.T) {
	t.Setenv("MONGO_URI", "mongodb://localhost:27017")
	t.Setenv("GROQ_API_KEY", "gsk_test")

	_, err := Init("/nonexistent/config.yaml")
	require.Error(t, err)
}

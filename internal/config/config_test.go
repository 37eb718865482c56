// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.toml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0600))
	return path
}

func TestDefault_IsValid(t *testing.T) {
	cfg := Default()
	require.NoError(t, cfg.Validate())

	assert.Equal(t, 30*time.Second, cfg.API.ConnectTimeout())
	assert.Equal(t, 5*time.Second, cfg.API.ConnectGrace())
	assert.Equal(t, 3*time.Second, cfg.API.Retry())
	assert.Equal(t, "127.0.0.1:8000", cfg.Server.Addr())
}

func TestLoadFromPath_PartialFileKeepsDefaults(t *testing.T) {
	t.Setenv("SEARCHCHAT_API_URL", "")
	os.Unsetenv("SEARCHCHAT_API_URL")

	path := writeFile(t, `
[api]
url = "https://chat.example.com"
retry_secs = 7

[log]
level = "debug"
`)
	cfg, err := LoadFromPath(path)
	require.NoError(t, err)

	assert.Equal(t, "https://chat.example.com", cfg.API.URL)
	assert.Equal(t, 7*time.Second, cfg.API.Retry())
	assert.Equal(t, 30, cfg.API.ConnectTimeoutSecs)
	assert.Equal(t, "debug", cfg.Log.Level)
	assert.True(t, cfg.UI.Markdown)
	assert.Equal(t, 8000, cfg.Server.Port)
}

func TestLoadFromPath_UnknownKey(t *testing.T) {
	path := writeFile(t, "[api]\nurll = \"x\"\n")
	_, err := LoadFromPath(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "api.urll")
}

func TestLoadFromPath_Invalid(t *testing.T) {
	path := writeFile(t, "[server]\nport = 70000\n")
	_, err := LoadFromPath(path)
	require.Error(t, err)

	var verrs ValidateErrors
	require.True(t, errors.As(err, &verrs))
	require.Len(t, verrs, 1)
	assert.Equal(t, "server.port", verrs[0].Field)
}

func TestValidate_CollectsAll(t *testing.T) {
	cfg := Default()
	cfg.API.URL = "ftp://files"
	cfg.API.RetrySecs = -1
	cfg.Log.Level = "loud"

	err := cfg.Validate()
	var verrs ValidateErrors
	require.True(t, errors.As(err, &verrs))

	fields := make([]string, len(verrs))
	for i, e := range verrs {
		fields[i] = e.Field
	}
	assert.ElementsMatch(t, []string{"api.url", "api.retry_secs", "log.level"}, fields)
}

func TestValidate_EmptyURLAllowed(t *testing.T) {
	cfg := Default()
	cfg.API.URL = ""
	assert.NoError(t, cfg.Validate())
}

func TestApplyEnvOverrides(t *testing.T) {
	t.Setenv("SEARCHCHAT_API_URL", " http://10.0.0.2:9000 ")
	t.Setenv("SEARCHCHAT_LOG_LEVEL", "WARN")
	t.Setenv("SEARCHCHAT_LOG_FILE", "/tmp/sc.log")
	t.Setenv("SEARCHCHAT_PORT", "9100")

	cfg := Default()
	cfg.ApplyEnvOverrides()

	assert.Equal(t, "http://10.0.0.2:9000", cfg.API.URL)
	assert.Equal(t, "warn", cfg.Log.Level)
	assert.Equal(t, "/tmp/sc.log", cfg.Log.File)
	assert.Equal(t, 9100, cfg.Server.Port)
}

func TestApplyEnvOverrides_BadPortIgnored(t *testing.T) {
	t.Setenv("SEARCHCHAT_PORT", "many")
	cfg := Default()
	cfg.ApplyEnvOverrides()
	assert.Equal(t, 8000, cfg.Server.Port)
}

func TestSaveTOML_RoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "config.toml")
	cfg := Default()
	cfg.API.URL = "http://backend:8000"
	cfg.UI.ShowSources = false

	require.NoError(t, SaveTOML(cfg, path))

	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0600), info.Mode().Perm())

	loaded := Default()
	require.NoError(t, LoadTOML(loaded, path))
	assert.Equal(t, cfg, loaded)
}

func TestGetSet(t *testing.T) {
	cfg := Default()

	require.NoError(t, cfg.Set("api.url", "http://other:1"))
	require.NoError(t, cfg.Set("api.retry_secs", "9"))
	require.NoError(t, cfg.Set("ui.markdown", "false"))
	require.NoError(t, cfg.Set("server.rate_limit", "2.5"))
	require.NoError(t, cfg.Set("server.port", 9001))

	v, err := cfg.Get("api.url")
	require.NoError(t, err)
	assert.Equal(t, "http://other:1", v)
	assert.Equal(t, 9, cfg.API.RetrySecs)
	assert.False(t, cfg.UI.Markdown)
	assert.Equal(t, 2.5, cfg.Server.RateLimit)
	assert.Equal(t, 9001, cfg.Server.Port)
}

func TestGetSet_Errors(t *testing.T) {
	cfg := Default()

	tests := []struct {
		name string
		key  string
		val  interface{}
	}{
		{"empty key", "", "x"},
		{"unknown section", "nope.url", "x"},
		{"unknown field", "api.nope", "x"},
		{"section", "api", "x"},
		{"bad int", "api.retry_secs", "soon"},
		{"bad bool", "ui.markdown", "maybe"},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			assert.Error(t, cfg.Set(tc.key, tc.val))
		})
	}

	_, err := cfg.Get("api.url.extra")
	assert.Error(t, err)
}

func TestKeys(t *testing.T) {
	keys := Keys()
	assert.Contains(t, keys, "api.url")
	assert.Contains(t, keys, "server.word_delay_ms")
	assert.Contains(t, keys, "storage.max_transcripts")

	cfg := Default()
	for _, k := range keys {
		_, err := cfg.Get(k)
		assert.NoError(t, err, k)
	}
}

func TestPaths(t *testing.T) {
	t.Setenv("HOME", t.TempDir())

	dir, err := Dir()
	require.NoError(t, err)
	assert.Equal(t, ".searchchat", filepath.Base(dir))

	cfg := Default()
	logFile, err := cfg.LogFile()
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "searchchat.log"), logFile)

	cfg.Storage.Dir = "/data/t"
	td, err := cfg.TranscriptDir()
	require.NoError(t, err)
	assert.Equal(t, "/data/t", td)
}

func TestLoad_NoFileUsesDefaults(t *testing.T) {
	t.Setenv("HOME", t.TempDir())
	t.Setenv("SEARCHCHAT_LOG_LEVEL", "error")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "error", cfg.Log.Level)
	assert.Equal(t, Default().API.URL, cfg.API.URL)
}

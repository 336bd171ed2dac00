package main

import (
	"bytes"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"

	"github.com/fatih/color"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"requestbin/internal/bin"
	"requestbin/internal/config"
	"requestbin/internal/storage"
)

func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetErr(&out)
	rootCmd.SetArgs(args)
	err := rootCmd.Execute()
	return out.String(), err
}

func TestCLI_CreateInspectCurl(t *testing.T) {
	color.NoColor = true
	path := filepath.Join(t.TempDir(), "bins.db")
	t.Setenv("STORAGE_BACKEND", "bolt")
	t.Setenv("STORAGE_PATH", path)

	out, err := run(t, "create", "--name", "clibin", "--private")
	require.NoError(t, err)
	assert.Contains(t, out, "clibin [private]")
	assert.Contains(t, out, "secret: ")

	cfg, err := config.Load("")
	require.NoError(t, err)
	store, err := storage.Open(cfg.Storage.Backend, cfg.Storage.Path, cfg.StorageOptions())
	require.NoError(t, err)
	in, err := bin.FromHTTP(httptest.NewRequest("POST", "/clibin/hook", strings.NewReader("hi")))
	require.NoError(t, err)
	r, err := store.CreateRequest("clibin", in)
	require.NoError(t, err)
	require.NoError(t, store.Close())

	out, err = run(t, "inspect", "clibin")
	require.NoError(t, err)
	assert.Contains(t, out, "requests: 1")
	assert.Contains(t, out, "POST http://example.com/clibin/hook")

	out, err = run(t, "inspect", "-v", "clibin")
	require.NoError(t, err)
	assert.Contains(t, out, "clibin [private]")
	assert.Contains(t, out, "requests: 1")
	assert.Contains(t, out, "Host: example.com")

	out, err = run(t, "curl", "clibin", r.ID)
	require.NoError(t, err)
	assert.Equal(t, r.ToCurl()+"\n", out)

	_, err = run(t, "curl", "clibin", "nope")
	assert.Error(t, err)

	_, err = run(t, "create", "--name", "healthz")
	assert.ErrorContains(t, err, "reserved")
}

func TestCLI_MemoryBackendRejected(t *testing.T) {
	t.Setenv("STORAGE_BACKEND", "memory")
	_, err := run(t, "inspect", "x")
	assert.ErrorIs(t, err, errEphemeralStore)
}

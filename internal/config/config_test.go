package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeProfile(t *testing.T, body string) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "profile.hcl")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func TestLoad_FillsOmittedFieldsFromDefault(t *testing.T) {
	path := writeProfile(t, `
loop {
  thread_count = 4
}
`)
	profile, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, 4, profile.ThreadCount)
	assert.True(t, profile.SmartWaiter)
	assert.Equal(t, Default().PredictorFastAlpha, profile.PredictorFastAlpha)
	assert.Equal(t, Default().PredictorSlowAlpha, profile.PredictorSlowAlpha)
}

func TestLoad_ExplicitFalseOverridesDefaultTrue(t *testing.T) {
	path := writeProfile(t, `
loop {
  smart_waiter = false
}
`)
	profile, err := Load(path)
	require.NoError(t, err)
	assert.False(t, profile.SmartWaiter)
}

func TestLoad_MissingLoopBlockReturnsDefault(t *testing.T) {
	path := writeProfile(t, ``)
	profile, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, Default(), profile)
}

func TestLoad_ReturnsErrorOnMalformedHCL(t *testing.T) {
	path := writeProfile(t, `loop { thread_count = `)
	_, err := Load(path)
	assert.Error(t, err)
}

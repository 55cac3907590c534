// FILE: src/internal/daemonutil/daemonutil_test.go
package daemonutil

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/C4rr13rX/WSL2UbuntuSuddenShutDownPrevention/src/internal/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestResolveHMACKeyFromEnvValue(t *testing.T) {
	t.Setenv("WSLMON_TEST_HMAC_KEY", "00112233445566778899aabbccddeeff0011223344556677889900aabbccddee")
	cfg := config.JournalConfig{HMACKeyEnv: "WSLMON_TEST_HMAC_KEY"}

	key := ResolveHMACKey(cfg)
	require.Len(t, key, 32)
	assert.Equal(t, byte(0x00), key[0])
	assert.Equal(t, byte(0xee), key[31])
}

func TestResolveHMACKeyFromEnvFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "key.hex")
	require.NoError(t, os.WriteFile(path, []byte("aa\n"), 0o600))

	t.Setenv("WSLMON_TEST_HMAC_KEY_FILE", path)
	cfg := config.JournalConfig{HMACKeyFileEnv: "WSLMON_TEST_HMAC_KEY_FILE"}

	key := ResolveHMACKey(cfg)
	require.Len(t, key, 1)
	assert.Equal(t, byte(0xaa), key[0])
}

func TestResolveHMACKeyDisabledWhenUnset(t *testing.T) {
	cfg := config.JournalConfig{HMACKeyEnv: "WSLMON_TEST_UNSET_KEY"}
	assert.Nil(t, ResolveHMACKey(cfg))
}

func TestResolveHMACKeyDisabledOnMalformedHex(t *testing.T) {
	t.Setenv("WSLMON_TEST_HMAC_KEY", "not-hex")
	cfg := config.JournalConfig{HMACKeyEnv: "WSLMON_TEST_HMAC_KEY"}
	assert.Nil(t, ResolveHMACKey(cfg))
}

func TestInitLoggerRejectsUnknownLevel(t *testing.T) {
	cfg := config.LogConfig{Output: "none", Level: "verbose"}
	_, err := InitLogger(cfg)
	assert.Error(t, err)
}

func TestInitLoggerRejectsUnknownOutput(t *testing.T) {
	cfg := config.LogConfig{Output: "carrier-pigeon", Level: "info"}
	_, err := InitLogger(cfg)
	assert.Error(t, err)
}

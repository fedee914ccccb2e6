package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseServerFlagsDefaults(t *testing.T) {
	cfg, err := ParseServerFlags(nil)
	require.NoError(t, err)

	assert.Equal(t, DefaultAddr, cfg.Addr)
	assert.Equal(t, DefaultPort, cfg.Port)
	assert.Equal(t, DefaultStorageDir, cfg.StorageDir)
	assert.Equal(t, DefaultWorkers, cfg.Workers)
}

func TestParseServerFlagsOverride(t *testing.T) {
	cfg, err := ParseServerFlags([]string{"-H", "0.0.0.0", "-p", "9000", "-s", "/tmp/store", "-v"})
	require.NoError(t, err)

	assert.Equal(t, "0.0.0.0", cfg.Addr)
	assert.Equal(t, 9000, cfg.Port)
	assert.Equal(t, "/tmp/store", cfg.StorageDir)
	assert.True(t, cfg.Verbose)
}

func TestServerConfigRejectsVerboseAndQuiet(t *testing.T) {
	_, err := ParseServerFlags([]string{"-v", "-q"})
	assert.Error(t, err)
}

func TestServerConfigRejectsBadPort(t *testing.T) {
	cfg := &ServerConfig{Addr: "127.0.0.1", Port: 0, StorageDir: "x", Workers: 1}
	assert.Error(t, cfg.Validate())
}

func TestParseUploadFlagsRequiresSource(t *testing.T) {
	_, err := ParseUploadFlags([]string{"-n", "report.txt"})
	assert.Error(t, err)
}

func TestParseUploadFlagsRequiresName(t *testing.T) {
	_, err := ParseUploadFlags([]string{"-s", "/tmp/report.txt"})
	assert.Error(t, err)
}

func TestParseUploadFlagsOK(t *testing.T) {
	cfg, err := ParseUploadFlags([]string{"-s", "/tmp/report.txt", "-n", "report.txt", "-r", ProtoSelectiveRepeat})
	require.NoError(t, err)

	assert.Equal(t, "/tmp/report.txt", cfg.Path)
	assert.Equal(t, "report.txt", cfg.Name)
	assert.Equal(t, ProtoSelectiveRepeat, cfg.Protocol)
}

func TestParseUploadFlagsRejectsUnknownProtocol(t *testing.T) {
	_, err := ParseUploadFlags([]string{"-s", "/tmp/report.txt", "-n", "report.txt", "-r", "bogus"})
	assert.Error(t, err)
}

func TestParseDownloadFlagsDefaults(t *testing.T) {
	cfg, err := ParseDownloadFlags([]string{"-n", "report.txt"})
	require.NoError(t, err)

	assert.Equal(t, DefaultDownloadDir, cfg.Path)
	assert.Equal(t, "report.txt", cfg.Name)
	assert.Equal(t, ProtoStopAndWait, cfg.Protocol)
}

func TestParseDownloadFlagsRequiresName(t *testing.T) {
	_, err := ParseDownloadFlags(nil)
	assert.Error(t, err)
}

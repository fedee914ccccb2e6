package logging

import (
	"bytes"
	"encoding/json"
	"path/filepath"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"rdtxfer/internal/errors"
)

func testLogger() (*logrus.Logger, *bytes.Buffer) {
	buf := &bytes.Buffer{}
	log := logrus.New()
	log.SetFormatter(&logrus.JSONFormatter{})
	log.SetOutput(buf)
	log.SetLevel(logrus.TraceLevel)
	return log, buf
}

func decodeLastLine(t *testing.T, buf *bytes.Buffer) map[string]interface{} {
	lines := bytes.Split(bytes.TrimSpace(buf.Bytes()), []byte("\n"))
	require.NotEmpty(t, lines)
	var entry map[string]interface{}
	require.NoError(t, json.Unmarshal(lines[len(lines)-1], &entry))
	return entry
}

func TestSetupCreatesLogDirAndFile(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "logs")
	log, err := Setup(dir, Normal)
	require.NoError(t, err)
	assert.Equal(t, logrus.InfoLevel, log.GetLevel())
	assert.DirExists(t, dir)
	assert.FileExists(t, filepath.Join(dir, "rdtxfer.log"))
}

func TestLevelFor(t *testing.T) {
	assert.Equal(t, logrus.WarnLevel, levelFor(Quiet))
	assert.Equal(t, logrus.InfoLevel, levelFor(Normal))
	assert.Equal(t, logrus.TraceLevel, levelFor(Verbose))
}

func TestLogSessionEvent(t *testing.T) {
	log, buf := testLogger()
	LogSessionEvent(log, "sess-1", "127.0.0.1:9000", "SYN_SENT", "ESTABLISHED")

	entry := decodeLastLine(t, buf)
	assert.Equal(t, "sess-1", entry["session"])
	assert.Equal(t, "ESTABLISHED", entry["to"])
}

func TestLogTransferProgress(t *testing.T) {
	log, buf := testLogger()
	LogTransferProgress(log, "sess-1", "file.bin", 512, 1024)

	entry := decodeLastLine(t, buf)
	assert.Equal(t, float64(512), entry["transferred"])
	assert.Equal(t, float64(50), entry["percent"])
}

func TestLogTransferComplete(t *testing.T) {
	log, buf := testLogger()
	LogTransferComplete(log, "sess-1", "file.bin", 1024, time.Second)

	entry := decodeLastLine(t, buf)
	assert.Equal(t, float64(1024), entry["bytes"])
}

func TestLogDroppedDatagramIsTraceLevel(t *testing.T) {
	log, buf := testLogger()
	LogDroppedDatagram(log, "127.0.0.1:9000", errors.NewCodecError("decode", assert.AnError))

	entry := decodeLastLine(t, buf)
	assert.Equal(t, "trace", entry["level"])
}

func TestLogErrorDispatchesByKind(t *testing.T) {
	cases := []struct {
		name string
		err  error
		want string
	}{
		{"codec", errors.NewCodecError("decode", assert.AnError), "trace"},
		{"handshake", errors.NewHandshakeFailed("peer", 10), "error"},
		{"peer", errors.NewPeerError("peer", 1, "busy"), "warning"},
		{"peer_gone", errors.NewPeerGone("peer", "30s"), "warning"},
		{"local_io", errors.NewLocalIO("read", "path", assert.AnError), "error"},
		{"protocol_violation", errors.NewProtocolViolation("ESTABLISHED", "SYN", "bad flags"), "error"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			log, buf := testLogger()
			LogError(log, "ctx", tc.err)
			entry := decodeLastLine(t, buf)
			assert.Equal(t, tc.want, entry["level"])
			assert.Equal(t, "ctx", entry["context"])
		})
	}
}

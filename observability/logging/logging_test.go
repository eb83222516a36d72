package logging

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestSetupRenamesCoreKeys(t *testing.T) {
	var buf bytes.Buffer
	logger := Setup("rewardsd", "test", WithOutput(&buf))
	logger.Info("applied", slog.String("txHash", "0x01"))

	var line map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &line))
	require.Equal(t, "applied", line["message"])
	require.Equal(t, "INFO", line["severity"])
	require.Equal(t, "rewardsd", line["service"])
	require.Equal(t, "test", line["env"])
	require.Contains(t, line, "timestamp")
}

func TestSetupHonoursLevel(t *testing.T) {
	var buf bytes.Buffer
	logger := Setup("rewardsd", "", WithOutput(&buf), WithLevel(ParseLevel("warn")))
	logger.Info("dropped")
	require.Zero(t, buf.Len())
	logger.Warn("kept")
	require.NotZero(t, buf.Len())
}

func TestSetupMirrorsToFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "rewardsd.log")
	var buf bytes.Buffer
	logger := Setup("rewardsd", "", WithOutput(&buf), WithFile(FileOptions{Path: path, MaxSizeMB: 1}))
	logger.Info("to file")

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	require.Contains(t, string(data), "to file")
}

func TestMaskField(t *testing.T) {
	require.Equal(t, RedactedValue, MaskField("authorization", "Bearer abc").Value.String())
	require.Equal(t, "0xabc", MaskField("txHash", "0xabc").Value.String())
	require.Equal(t, "", MaskField("token", "").Value.String())
	require.Contains(t, RedactionAllowlist(), "sender")
}

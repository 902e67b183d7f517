package logging

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGetLevel(t *testing.T) {
	assert.Equal(t, logrus.DebugLevel, GetLevel("DEBUG"))
	assert.Equal(t, logrus.WarnLevel, GetLevel("warning"))
	assert.Equal(t, logrus.InfoLevel, GetLevel(""))
	assert.Equal(t, logrus.InfoLevel, GetLevel("chatty"))
}

func TestSetup_WritesToFile(t *testing.T) {
	std := logrus.StandardLogger()
	prevOut, prevLevel, prevFormatter := std.Out, std.GetLevel(), std.Formatter
	t.Cleanup(func() {
		std.SetOutput(prevOut)
		std.SetLevel(prevLevel)
		std.SetFormatter(prevFormatter)
	})

	base := filepath.Join(t.TempDir(), "server")
	logger := Setup(LoggerSetupParams{
		LogFileName:   base,
		LogLevel:      "warn",
		LogFormatJSON: true,
	})
	logger.Info("dropped")
	logger.Warn("kept")

	raw, err := os.ReadFile(base + ".log")
	require.NoError(t, err)
	assert.Contains(t, string(raw), `"msg":"kept"`)
	assert.NotContains(t, string(raw), "dropped")
}

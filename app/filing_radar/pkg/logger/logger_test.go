package logger

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCustomFormatter_Format(t *testing.T) {
	entry := &logrus.Entry{
		Logger:  logrus.New(),
		Time:    time.Date(2024, 5, 1, 8, 30, 0, 0, time.UTC),
		Level:   logrus.WarnLevel,
		Message: "reduce failed",
		Data:    logrus.Fields{"stage": "reduce", "filing_key": "0000320193-24-000123"},
	}

	out, err := (&CustomFormatter{}).Format(entry)
	require.NoError(t, err)
	assert.Equal(t, "[2024-05-01 08:30:00] [WARN] [] reduce failed filing_key=0000320193-24-000123 stage=reduce\n", string(out))
}

func TestInitLogger_WritesFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "logs", "radar.log")
	require.NoError(t, InitLogger("debug", path))
	t.Cleanup(func() { Log = newLogger() })

	assert.Equal(t, logrus.DebugLevel, Log.GetLevel())
	Stage("extract", "k1").Info("hello")

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "hello")
	assert.Contains(t, string(data), "stage=extract")
}

func TestInitLogger_BadLevelFallsBackToInfo(t *testing.T) {
	require.NoError(t, InitLogger("loud", ""))
	t.Cleanup(func() { Log = newLogger() })
	assert.Equal(t, logrus.InfoLevel, Log.GetLevel())
}

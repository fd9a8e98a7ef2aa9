package logger

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

func TestInitialize(t *testing.T) {
	err := Initialize(false)
	require.NoError(t, err)
	require.NotNil(t, Logger)
	assert.False(t, JSONOutput)

	err = Initialize(true)
	require.NoError(t, err)
	assert.True(t, JSONOutput)

	Cleanup()
}

func TestNilSafeWrappers(t *testing.T) {
	// Wrappers must not panic even if Initialize was never called
	saved := Logger
	Logger = nil
	defer func() { Logger = saved }()

	Info("info")
	Infof("info %d", 1)
	Infow("info", "k", "v")
	Warn("warn")
	Error("error")
	Debug("debug")
}

func TestVerbosityToLevel(t *testing.T) {
	assert.Equal(t, zapcore.WarnLevel, VerbosityToLevel(0))
	assert.Equal(t, zapcore.InfoLevel, VerbosityToLevel(1))
	assert.Equal(t, zapcore.DebugLevel, VerbosityToLevel(2))
	assert.Equal(t, zapcore.DebugLevel, VerbosityToLevel(7))
}

func TestMinimalEncoderFormat(t *testing.T) {
	enc := newMinimalEncoder()

	entry := zapcore.Entry{
		Level:      zapcore.InfoLevel,
		Time:       time.Date(2026, 3, 1, 13, 4, 35, 0, time.UTC),
		LoggerName: "split.monitor",
		Message:    "Split complete [artifact:lit_review]",
	}
	fields := []zapcore.Field{
		zap.String(FieldArtifact, "lit_review"),
		zap.Int(FieldLines, 2434),
		zap.Int(FieldParts, 2),
	}

	buf, err := enc.EncodeEntry(entry, fields)
	require.NoError(t, err)

	out := buf.String()
	assert.Contains(t, out, "13:04:35")
	assert.Contains(t, out, "s.monitor") // abbreviated component
	assert.Contains(t, out, "lit_review")
	assert.Contains(t, out, "2434")
	assert.True(t, strings.HasSuffix(out, "\n"))
	// INFO level marker is suppressed in minimal output
	assert.NotContains(t, out, "INFO")
}

func TestMinimalEncoderWarnLevel(t *testing.T) {
	enc := newMinimalEncoder()

	entry := zapcore.Entry{
		Level:   zapcore.WarnLevel,
		Time:    time.Now(),
		Message: "Artifact over budget",
	}

	buf, err := enc.EncodeEntry(entry, nil)
	require.NoError(t, err)
	assert.Contains(t, buf.String(), "WARN")
}

func TestAbbreviateName(t *testing.T) {
	assert.Equal(t, "engine", abbreviateName("engine"))
	assert.Equal(t, "s.monitor", abbreviateName("split.monitor"))
	assert.Equal(t, "a.gates", abbreviateName("assemble.gates"))
}

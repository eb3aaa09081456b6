package logging

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLogger_JSON(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLogger(LevelInfo, FormatJSON)
	logger.SetOutput(&buf)

	logger.WithComponent("worker:3").WithField("targetId", "t1").Info("target improved")

	var entry LogEntry
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, "info", entry.Level)
	assert.Equal(t, "worker:3", entry.Component)
	assert.Equal(t, "target improved", entry.Message)
	assert.Equal(t, "t1", entry.Fields["targetId"])
}

func TestLogger_Text(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLogger(LevelDebug, FormatText)
	logger.SetOutput(&buf)

	logger.WithComponent("worker:0").Infof("mining targets updated to %d targets", 4)

	line := buf.String()
	assert.Contains(t, line, "info: [worker:0] mining targets updated to 4 targets")
	assert.True(t, logger.TextFormat())
}

func TestLogger_LevelFiltering(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLogger(LevelWarn, FormatText)
	logger.SetOutput(&buf)

	logger.Debug("hidden")
	logger.Info("hidden")
	logger.Warn("shown")

	assert.Equal(t, 1, strings.Count(buf.String(), "\n"))
	assert.Contains(t, buf.String(), "shown")
	assert.False(t, logger.Enabled(LevelInfo))
}

func TestLogger_WithErrorAndCaller(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLogger(LevelInfo, FormatJSON)
	logger.SetOutput(&buf)

	logger.WithError(errors.New("connection refused")).Error("store unavailable")

	var entry LogEntry
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, "connection refused", entry.Fields["error"])
	assert.Contains(t, entry.Caller, "logger_test.go")
}

func TestLogger_DerivedLoggersDoNotShareFields(t *testing.T) {
	base := NewLogger(LevelInfo, FormatJSON)
	a := base.WithField("a", 1)
	b := a.WithField("b", 2)

	assert.Len(t, a.fields, 1)
	assert.Len(t, b.fields, 2)
	assert.Empty(t, base.fields)
}

func TestLogger_ConcurrentWrites(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLogger(LevelInfo, FormatText)
	logger.SetOutput(&buf)

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func(id int) {
			defer wg.Done()
			l := logger.WithField("worker", id)
			for j := 0; j < 50; j++ {
				l.Info("tick")
			}
		}(i)
	}
	wg.Wait()

	assert.Equal(t, 400, strings.Count(buf.String(), "\n"))
}

func TestFromContext(t *testing.T) {
	logger := NewLogger(LevelDebug, FormatText)
	ctx := WithLogger(context.Background(), logger)

	assert.Same(t, logger, FromContext(ctx))
	assert.NotNil(t, FromContext(context.Background()))
}

func TestParseLogLevelAndFormat(t *testing.T) {
	assert.Equal(t, LevelWarn, ParseLogLevel("warning"))
	assert.Equal(t, LevelInfo, ParseLogLevel("nonsense"))
	assert.Equal(t, FormatText, ParseLogFormat("text"))
	assert.Equal(t, FormatJSON, ParseLogFormat("yaml"))
}

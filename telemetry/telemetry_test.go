package telemetry

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
)

type recordingLogger struct {
	messages []string
}

func (l *recordingLogger) Debug(_ context.Context, msg string, _ ...any) { l.messages = append(l.messages, msg) }
func (l *recordingLogger) Info(_ context.Context, msg string, _ ...any)  { l.messages = append(l.messages, msg) }
func (l *recordingLogger) Warn(_ context.Context, msg string, _ ...any)  { l.messages = append(l.messages, msg) }
func (l *recordingLogger) Error(_ context.Context, msg string, _ ...any) { l.messages = append(l.messages, msg) }

func TestPrefixLoggerPrependsPluginID(t *testing.T) {
	t.Parallel()

	rec := &recordingLogger{}
	logger := NewPrefixLogger("weather", rec)

	logger.Info(context.Background(), "fetched forecast")
	logger.Error(context.Background(), "request failed")

	assert.Equal(t, []string{"[weather] fetched forecast", "[weather] request failed"}, rec.messages)
}

func TestPrefixLoggerFallsBackToNoopWithNilNext(t *testing.T) {
	t.Parallel()

	logger := NewPrefixLogger("weather", nil)
	assert.NotPanics(t, func() {
		logger.Info(context.Background(), "hello")
	})
}

func TestNoopLoggerDiscardsEverything(t *testing.T) {
	t.Parallel()

	logger := NewNoopLogger()
	assert.NotPanics(t, func() {
		logger.Debug(context.Background(), "x")
		logger.Info(context.Background(), "x")
		logger.Warn(context.Background(), "x")
		logger.Error(context.Background(), "x")
	})
}

package logger

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"strings"
	"testing"

	"github.com/go-telegram/bot"
	"github.com/go-telegram/bot/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseLevel(t *testing.T) {
	t.Parallel()

	tests := map[string]slog.Level{
		"debug":   slog.LevelDebug,
		"info":    slog.LevelInfo,
		"warn":    slog.LevelWarn,
		"error":   slog.LevelError,
		"verbose": slog.LevelInfo,
		"":        slog.LevelInfo,
	}
	for in, want := range tests {
		assert.Equal(t, want, ParseLevel(in), "level %q", in)
	}
}

func TestNewJSON(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	log := New(&buf, "warn", true)
	log.Info("hidden")
	log.Warn("shown", "k", "v")

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 1)

	var rec map[string]any
	require.NoError(t, json.Unmarshal([]byte(lines[0]), &rec))
	assert.Equal(t, "shown", rec["msg"])
	assert.Equal(t, "v", rec["k"])
}

func TestGocronLoggerDemotesInfo(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	gl := NewGocronLogger(New(&buf, "info", false))

	gl.Info("job started")
	gl.Debug("tick")
	assert.Empty(t, buf.String())

	gl.Warn("job late")
	gl.Error("job failed")
	out := buf.String()
	assert.Contains(t, out, "job late")
	assert.Contains(t, out, "job failed")
	assert.Contains(t, out, "component=gocron")
}

func TestMiddlewareCallsNext(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	mw := Middleware(New(&buf, "debug", false))

	updates := []*models.Update{
		{ID: 1, Message: &models.Message{ID: 10, Text: "/list", Chat: models.Chat{ID: 5}, From: &models.User{ID: 7}}},
		{ID: 2, CallbackQuery: &models.CallbackQuery{ID: "cb", Data: "del_3", From: models.User{ID: 7}}},
		{ID: 3},
	}

	calls := 0
	h := mw(func(ctx context.Context, b *bot.Bot, update *models.Update) { calls++ })
	for _, u := range updates {
		h(context.Background(), nil, u)
	}

	assert.Equal(t, len(updates), calls)
	out := buf.String()
	assert.Contains(t, out, "update_type=message")
	assert.Contains(t, out, "update_type=callback_query")
	assert.Contains(t, out, "update_type=other")
	assert.Contains(t, out, "owner_id=7")
}

func TestTruncateString(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "short", truncateString("short", 10))
	assert.Equal(t, "abcdefg...", truncateString("abcdefghijklmnop", 10))
	assert.Equal(t, "...", truncateString("abcdef", 3))
	assert.Equal(t, "ééé...", truncateString("ééééééé", 6))
}

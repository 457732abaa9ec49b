package log_test

import (
	"bytes"
	"context"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/Alia5/goxkb/internal/log"
)

func TestParseLevel(t *testing.T) {
	tests := []struct {
		in   string
		want slog.Level
	}{
		{"trace", log.LevelTrace},
		{"debug", slog.LevelDebug},
		{"", slog.LevelInfo},
		{"WARN", slog.LevelWarn},
		{"warning", slog.LevelWarn},
		{"error", slog.LevelError},
		{"bogus", slog.LevelInfo},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			assert.Equal(t, tt.want, log.ParseLevel(tt.in))
		})
	}
}

type line struct {
	level slog.Level
	msg   string
}

func TestFuncHandler(t *testing.T) {
	var got []line
	h := log.NewFuncHandler(func(level slog.Level, msg string) {
		got = append(got, line{level, msg})
	}, slog.LevelInfo)
	logger := slog.New(h).With("file", "symbols/us")

	logger.Debug("hidden")
	logger.Warn("unrecognized keysym", "name", "Foo Bar", "pos", 3)
	logger.WithGroup("key").Error("bad", "code", 38)

	assert.Equal(t, []line{
		{slog.LevelWarn, `unrecognized keysym file=symbols/us name="Foo Bar" pos=3`},
		{slog.LevelError, `bad file=symbols/us key.code=38`},
	}, got)
}

func TestFuncHandlerNilLevel(t *testing.T) {
	n := 0
	h := log.NewFuncHandler(func(slog.Level, string) { n++ }, nil)
	assert.True(t, h.Enabled(context.Background(), log.LevelTrace))
	slog.New(h).Log(context.Background(), log.LevelTrace, "x")
	assert.Equal(t, 1, n)
}

func TestMultiHandlerRespectsLevels(t *testing.T) {
	var quiet, loud bytes.Buffer
	h := log.NewMultiHandler(
		slog.NewTextHandler(&quiet, &slog.HandlerOptions{Level: slog.LevelError}),
		slog.NewTextHandler(&loud, &slog.HandlerOptions{Level: slog.LevelDebug}),
	)
	slog.New(h).Debug("detail")
	assert.Empty(t, quiet.String())
	assert.Contains(t, loud.String(), "msg=detail")
}

func TestRawLogger(t *testing.T) {
	var buf bytes.Buffer
	r := log.NewRaw(&buf)
	r.Log(true, []byte("seat/1/key 38 down\x00"))
	r.Log(false, nil)
	assert.Contains(t, buf.String(), `C->S 19 bytes: "seat/1/key 38 down\x00"`)
	assert.Equal(t, 1, bytes.Count(buf.Bytes(), []byte("\n")))

	log.NewRaw(nil).Log(true, []byte("ignored"))
}

package xkb_test

import (
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Alia5/goxkb/xkb"
)

func TestStateComponentString(t *testing.T) {
	tests := []struct {
		in   xkb.StateComponent
		want string
	}{
		{0, "0"},
		{xkb.ModsDepressed, "ModsDepressed"},
		{xkb.ModsLocked | xkb.LEDs, "ModsLocked|LEDs"},
		{xkb.LayoutEffective | 1<<12, "LayoutEffective|0x1000"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, tt.in.String())
	}

	c := xkb.ModsDepressed.Union(xkb.ModsLatched)
	assert.True(t, c.Has(xkb.ModsLatched))
	assert.False(t, c.Has(xkb.ModsLatched|xkb.ModsLocked))
	assert.Equal(t, xkb.ModsLatched, c.Intersect(xkb.ModsLatched|xkb.ModsLocked))
}

func TestStateMatchString(t *testing.T) {
	assert.Equal(t, "MatchAny|MatchNonExclusive", xkb.MatchAny.Union(xkb.MatchNonExclusive).String())
	assert.Equal(t, "MatchAll", xkb.MatchAll.String())
	assert.True(t, (xkb.MatchAll | xkb.MatchNonExclusive).Has(xkb.MatchNonExclusive))
}

func TestParseKeyDirection(t *testing.T) {
	tests := []struct {
		in     string
		want   xkb.KeyDirection
		wantOK bool
	}{
		{"down", xkb.KeyDown, true},
		{"Press", xkb.KeyDown, true},
		{"up", xkb.KeyUp, true},
		{"released", xkb.KeyUp, true},
		{"sideways", xkb.KeyUp, false},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			d, ok := xkb.ParseKeyDirection(tt.in)
			assert.Equal(t, tt.wantOK, ok)
			assert.Equal(t, tt.want, d)
		})
	}
	assert.Equal(t, "down", xkb.KeyDown.String())
}

func TestParseLogLevel(t *testing.T) {
	tests := []struct {
		in      string
		want    xkb.LogLevel
		wantErr bool
	}{
		{in: "critical", want: xkb.LogCritical},
		{in: "ERR", want: xkb.LogError},
		{in: "warning", want: xkb.LogWarning},
		{in: " info ", want: xkb.LogInfo},
		{in: "dbg", want: xkb.LogDebug},
		{in: "45", want: xkb.LogLevel(45)},
		{in: "chatty", wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			l, err := xkb.ParseLogLevel(tt.in)
			if tt.wantErr {
				assert.ErrorIs(t, err, xkb.ErrInvalidLogLevel)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, l)
		})
	}
}

func TestLogLevelSlog(t *testing.T) {
	assert.Equal(t, slog.LevelError, xkb.LogError.Slog())
	assert.Equal(t, slog.LevelWarn, xkb.LogWarning.Slog())
	assert.Equal(t, slog.LevelDebug, xkb.LogDebug.Slog())
	assert.Greater(t, xkb.LogCritical.Slog(), slog.LevelError)
	assert.Equal(t, "45", xkb.LogLevel(45).String())
}

package api_test

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Alia5/goxkb/apitypes"
	"github.com/Alia5/goxkb/internal/log"
	"github.com/Alia5/goxkb/internal/server/api"
	"github.com/Alia5/goxkb/internal/server/api/handler"
	th "github.com/Alia5/goxkb/internal/testing"
	"github.com/Alia5/goxkb/rules"
	"github.com/Alia5/goxkb/seat"
)

func TestRouterMatch(t *testing.T) {
	r := api.NewRouter()
	noop := func(*api.Request, *api.Response, *slog.Logger) error { return nil }
	r.Register("seat/list", noop)
	r.Register("seat/{id}/key", noop)
	r.RegisterStream("seat/{id}/events", func(context.Context, net.Conn, *seat.Seat, *slog.Logger) error { return nil })

	tests := []struct {
		name       string
		path       string
		wantMatch  bool
		wantParams map[string]string
	}{
		{name: "static", path: "seat/list", wantMatch: true, wantParams: map[string]string{}},
		{name: "case insensitive", path: "SEAT/List", wantMatch: true, wantParams: map[string]string{}},
		{name: "placeholder", path: "seat/12/key", wantMatch: true, wantParams: map[string]string{"id": "12"}},
		{name: "too short", path: "seat", wantMatch: false},
		{name: "too long", path: "seat/12/key/x", wantMatch: false},
		{name: "stream route is separate", path: "seat/1/events", wantMatch: false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h, params := r.Match(tt.path)
			if !tt.wantMatch {
				assert.Nil(t, h)
				return
			}
			require.NotNil(t, h)
			assert.Equal(t, tt.wantParams, params)
		})
	}

	sh, params := r.MatchStream("seat/3/EVENTS")
	require.NotNil(t, sh)
	assert.Equal(t, map[string]string{"id": "3"}, params)
}

func TestWrapError(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want *apitypes.ApiError
	}{
		{name: "nil", err: nil, want: nil},
		{name: "api error", err: api.ErrConflict("x"), want: &apitypes.ApiError{Status: 409, Title: "Conflict", Detail: "x"}},
		{name: "api error value", err: apitypes.ApiError{Status: 400, Title: "Bad Request"}, want: &apitypes.ApiError{Status: 400, Title: "Bad Request"}},
		{name: "wrapped api error", err: fmt.Errorf("ctx: %w", api.ErrNotFound("y")), want: api.ErrNotFound("y")},
		{name: "seat not found", err: fmt.Errorf("%w: 3", seat.ErrNotFound), want: api.ErrNotFound("seat not found: 3")},
		{name: "seat closed", err: seat.ErrClosed, want: api.ErrConflict("seat closed")},
		{name: "other", err: errors.New("boom"), want: api.ErrInternal("boom")},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, api.WrapError(tt.err))
		})
	}
}

func TestServerFraming(t *testing.T) {
	addr, _, done := th.StartAPIServer(t, func(r *api.Router, reg *seat.Registry, apiSrv *api.Server) {
		r.Register("echo", func(req *api.Request, res *api.Response, _ *slog.Logger) error {
			res.JSON = fmt.Sprintf("%q", req.Payload)
			return nil
		})
		r.Register("empty", func(*api.Request, *api.Response, *slog.Logger) error { return nil })
		r.Register("fail", func(*api.Request, *api.Response, *slog.Logger) error { return errors.New("boom") })
	})
	defer done()

	tests := []struct {
		name string
		cmd  string
		want string
	}{
		{name: "payload after first space", cmd: "echo a b", want: `"a b"`},
		{name: "payload after tab", cmd: "echo\tx", want: `"x"`},
		{name: "multi-line payload", cmd: "ECHO line1\nline2", want: `"line1\nline2"`},
		{name: "empty success", cmd: "empty", want: ""},
		{name: "handler error", cmd: "fail", want: `{"status":500,"title":"Internal Server Error","detail":"boom"}`},
		{name: "unknown path", cmd: "nope", want: `{"status":404,"title":"Not Found","detail":"unknown path: nope"}`},
		{name: "empty request", cmd: "", want: `{"status":400,"title":"Bad Request","detail":"empty request"}`},
		{name: "empty path", cmd: " x", want: `{"status":400,"title":"Bad Request","detail":"empty path"}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, th.ExecCmd(t, addr, tt.cmd))
		})
	}
}

func TestServerIncompleteRequest(t *testing.T) {
	addr, _, done := th.StartAPIServer(t, nil)
	defer done()

	c, err := net.Dial("tcp", addr)
	require.NoError(t, err)
	_, err = fmt.Fprint(c, "ping")
	require.NoError(t, err)
	require.NoError(t, c.(*net.TCPConn).CloseWrite())

	buf := make([]byte, 1)
	_ = c.SetReadDeadline(time.Now().Add(time.Second))
	_, readErr := c.Read(buf)
	assert.Error(t, readErr)
	_ = c.Close()
}

type frameRecorder struct {
	mu     sync.Mutex
	frames []string
}

func (f *frameRecorder) Log(in bool, data []byte) {
	f.mu.Lock()
	defer f.mu.Unlock()
	dir := "out"
	if in {
		dir = "in"
	}
	f.frames = append(f.frames, dir+":"+string(data))
}

func (f *frameRecorder) all() string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return strings.Join(f.frames, "|")
}

func TestServerRawLogger(t *testing.T) {
	reg := th.NewRegistry(t)
	defer reg.Close()
	rec := &frameRecorder{}
	srv := api.New(reg, api.ServerConfig{Addr: "127.0.0.1:0"}, slog.Default(), rec)
	srv.Router().Register("ping", handler.Ping("raw"))
	require.NoError(t, srv.Start())
	defer srv.Close()
	<-srv.Ready()

	resp := th.ExecCmd(t, srv.Addr().String(), "ping")
	assert.JSONEq(t, `{"server":"goxkb","version":"raw"}`, resp)

	require.Eventually(t, func() bool { return strings.Contains(rec.all(), "out:") }, time.Second, 10*time.Millisecond)
	assert.Contains(t, rec.all(), "in:ping\x00")
	assert.Contains(t, rec.all(), `"version":"raw"`)
}

func TestServerRawLoggerToWriter(t *testing.T) {
	reg := th.NewRegistry(t)
	defer reg.Close()
	var buf syncBuffer
	srv := api.New(reg, api.ServerConfig{Addr: "127.0.0.1:0"}, slog.Default(), log.NewRaw(&buf))
	srv.Router().Register("ping", handler.Ping("raw"))
	require.NoError(t, srv.Start())
	defer srv.Close()

	th.ExecCmd(t, srv.Addr().String(), "ping")
	require.Eventually(t, func() bool { return strings.Contains(buf.String(), "S->C") }, time.Second, 10*time.Millisecond)
	assert.Contains(t, buf.String(), "C->S")
}

type syncBuffer struct {
	mu sync.Mutex
	b  bytes.Buffer
}

func (s *syncBuffer) Write(p []byte) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.b.Write(p)
}

func (s *syncBuffer) String() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.b.String()
}

func TestStreamHandlerErrorClosesConn(t *testing.T) {
	addr, reg, done := th.StartAPIServer(t, func(r *api.Router, reg *seat.Registry, apiSrv *api.Server) {
		r.RegisterStream("seat/{id}/events", func(ctx context.Context, conn net.Conn, s *seat.Seat, l *slog.Logger) error {
			return errors.New("boom")
		})
	})
	defer done()
	_, err := reg.Create(&rules.Names{Layout: "us"}, "")
	require.NoError(t, err)

	c, err := net.Dial("tcp", addr)
	require.NoError(t, err)
	defer c.Close()
	_, err = fmt.Fprint(c, "seat/1/events\x00")
	require.NoError(t, err)

	buf := make([]byte, 1)
	_ = c.SetReadDeadline(time.Now().Add(500 * time.Millisecond))
	_, readErr := c.Read(buf)
	require.Error(t, readErr)
}

func TestStreamUnknownSeat(t *testing.T) {
	addr, _, done := th.StartAPIServer(t, func(r *api.Router, reg *seat.Registry, apiSrv *api.Server) {
		r.RegisterStream("seat/{id}/events", handler.SeatEvents(4))
	})
	defer done()

	assert.Equal(t, `{"status":404,"title":"Not Found","detail":"seat 5 not found"}`, th.ExecCmd(t, addr, "seat/5/events"))
	assert.Equal(t,
		`{"status":400,"title":"Bad Request","detail":"invalid seat id: strconv.ParseUint: parsing \"x\": invalid syntax"}`,
		th.ExecCmd(t, addr, "seat/x/events"))
}

func TestServerCloseEndsStreams(t *testing.T) {
	reg := th.NewRegistry(t)
	defer reg.Close()
	srv := api.New(reg, api.ServerConfig{Addr: "127.0.0.1:0"}, slog.Default(), nil)
	srv.Router().RegisterStream("seat/{id}/events", handler.SeatEvents(4))
	require.NoError(t, srv.Start())
	_, err := reg.Create(nil, "")
	require.NoError(t, err)

	c, err := net.Dial("tcp", srv.Addr().String())
	require.NoError(t, err)
	defer c.Close()
	_, err = fmt.Fprint(c, "seat/1/events\x00")
	require.NoError(t, err)

	r := bufio.NewReader(c)
	_ = c.SetReadDeadline(time.Now().Add(2 * time.Second))
	line, err := r.ReadString('\n')
	require.NoError(t, err)
	assert.Contains(t, line, `"serial":0`)

	srv.Close()
	_, err = r.ReadString('\n')
	assert.Error(t, err)
}

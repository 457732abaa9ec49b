package testing

import (
	"bufio"
	"encoding/json"
	"io"
	"log/slog"
	"net"
	"strings"
	"testing"
	"time"
	"unicode"

	"github.com/Alia5/goxkb/internal/server/api"
	"github.com/Alia5/goxkb/seat"
	"github.com/Alia5/goxkb/xkb"
)

// NewRegistry returns a seat registry compiling from the builtin data set
// only, so tests do not depend on the host's XKB files or environment.
func NewRegistry(t *testing.T) *seat.Registry {
	t.Helper()
	ctx, err := xkb.NewContext(xkb.NoDefaultIncludes | xkb.NoEnvironmentNames)
	if err != nil {
		t.Fatalf("new context failed: %v", err)
	}
	if err := ctx.IncludePathAppend(xkb.BuiltinIncludePath); err != nil {
		t.Fatalf("include builtin data failed: %v", err)
	}
	return seat.NewRegistry(ctx, slog.Default())
}

// StartAPIServer starts an API server on a free port and calls register to allow
// the caller to register the handlers needed for the test. Returns the address,
// the seat registry and a function to call when done.
func StartAPIServer(t *testing.T, register func(r *api.Router, reg *seat.Registry, apiSrv *api.Server)) (addr string, reg *seat.Registry, done func()) {
	t.Helper()
	reg = NewRegistry(t)
	apiSrv := api.New(reg, api.ServerConfig{
		Addr:              "127.0.0.1:0",
		StreamBuffer:      16,
		ConnectionTimeout: 5 * time.Second,
	}, slog.Default(), nil)
	if register != nil {
		register(apiSrv.Router(), reg, apiSrv)
	}
	if err := apiSrv.Start(); err != nil {
		t.Fatalf("api start failed: %v", err)
	}
	addr = apiSrv.Addr().String()

	done = func() {
		apiSrv.Close()
		reg.Close()
		time.Sleep(10 * time.Millisecond)
	}
	return addr, reg, done
}

// ExecCmd dials the API server, sends cmd and reads the full response.
// The command should not include a trailing newline. Returns the response
// without the trailing newline.
func ExecCmd(t *testing.T, addr string, cmd string) string {
	t.Helper()
	c, err := net.Dial("tcp", addr)
	if err != nil {
		t.Fatalf("dial failed: %v", err)
	}
	defer c.Close()

	_, _ = io.WriteString(c, cmd+"\x00")

	r := bufio.NewReader(c)
	line, err := r.ReadString('\n')
	if err != nil && err != io.EOF {
		t.Fatalf("read failed: %v", err)
	}

	result := strings.TrimSuffix(line, "\n")
	result = strings.TrimSuffix(result, "\r")
	return result
}

// ExecuteLine routes a command string through the provided router,
// emulating the server's request handling without network IO. Errors are
// rendered as the problem+json line the server would send.
func ExecuteLine(t *testing.T, r *api.Router, data string) string {
	t.Helper()
	if data == "" {
		return problem(api.ErrBadRequest("empty request"))
	}

	path, payload := data, ""
	if i := strings.IndexFunc(data, unicode.IsSpace); i >= 0 {
		path, payload = data[:i], data[i+1:]
	}
	if path == "" {
		return problem(api.ErrBadRequest("empty path"))
	}

	path = strings.ToLower(path)
	if h, params := r.Match(path); h != nil {
		req := &api.Request{Ctx: t.Context(), Params: params, Payload: payload}
		res := &api.Response{}
		if err := h(req, res, slog.Default()); err != nil {
			return problem(err)
		}
		return res.JSON
	}
	return problem(api.ErrNotFound("unknown path: " + path))
}

func problem(err error) string {
	b, _ := json.Marshal(api.WrapError(err))
	return string(b)
}

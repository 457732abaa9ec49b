package api

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"strconv"
	"strings"
	"sync"
	"time"
	"unicode"
	"unicode/utf8"

	"github.com/Alia5/goxkb/internal/log"
	"github.com/Alia5/goxkb/seat"
)

// Server implements a small TCP API for managing seats and following their
// state. A request is "<path>[ <payload>]" terminated by a NUL byte; the
// reply is one JSON line.
type Server struct {
	seats     *seat.Registry
	config    ServerConfig
	logger    *slog.Logger
	rawLogger log.RawLogger
	router    *Router

	ctx    context.Context
	cancel context.CancelFunc

	mu    sync.Mutex
	ln    net.Listener
	ready chan struct{}
}

// New creates an API server serving the seats of reg. rawLogger may be nil.
func New(reg *seat.Registry, config ServerConfig, logger *slog.Logger, rawLogger log.RawLogger) *Server {
	ctx, cancel := context.WithCancel(context.Background())
	return &Server{
		seats:     reg,
		config:    config,
		logger:    logger,
		rawLogger: rawLogger,
		router:    NewRouter(),
		ctx:       ctx,
		cancel:    cancel,
		ready:     make(chan struct{}),
	}
}

// Router returns the router used by the API server so callers can register handlers.
func (a *Server) Router() *Router { return a.router }

// Seats returns the seat registry.
func (a *Server) Seats() *seat.Registry { return a.seats }

// Config returns the server configuration.
func (a *Server) Config() ServerConfig { return a.config }

// Start listens on the configured address and serves incoming API commands.
func (a *Server) Start() error {
	ln, err := net.Listen("tcp", a.config.Addr)
	if err != nil {
		return err
	}
	a.mu.Lock()
	a.ln = ln
	a.mu.Unlock()
	close(a.ready)
	a.logger.Info("API listening", "addr", ln.Addr().String())
	go a.serve(ln)
	return nil
}

// Ready is closed once the server listens.
func (a *Server) Ready() <-chan struct{} { return a.ready }

// Addr returns the listen address, or nil before Start.
func (a *Server) Addr() net.Addr {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.ln == nil {
		return nil
	}
	return a.ln.Addr()
}

// Close stops the API server and ends every open stream.
func (a *Server) Close() {
	a.cancel()
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.ln != nil {
		_ = a.ln.Close()
	}
}

func (a *Server) serve(ln net.Listener) {
	for {
		c, err := ln.Accept()
		if err != nil {
			if errors.Is(err, net.ErrClosed) {
				a.logger.Info("API server stopped")
				return
			}
			a.logger.Info("API accept error", "error", err)
			return
		}
		go a.handleConn(c)
	}
}

func (a *Server) writeError(w io.Writer, err error) {
	problemJSON, _ := json.Marshal(WrapError(err))
	fmt.Fprintf(w, "%s\n", problemJSON)
}

func (a *Server) writeOK(w io.Writer, rest string) {
	if rest == "" {
		fmt.Fprintln(w)
	} else {
		fmt.Fprintf(w, "%s\n", rest)
	}
}

// splitRequest splits a request at its first whitespace character into
// path and payload.
func splitRequest(req string) (path, payload string) {
	i := strings.IndexFunc(req, unicode.IsSpace)
	if i < 0 {
		return req, ""
	}
	_, size := utf8.DecodeRuneInString(req[i:])
	return req[:i], req[i+size:]
}

func (a *Server) handleConn(c net.Conn) {
	var conn net.Conn = c
	if a.rawLogger != nil {
		conn = &logConn{Conn: c, raw: a.rawLogger}
	}
	defer conn.Close()

	connLogger := a.logger.With("remote", conn.RemoteAddr().String())
	if a.config.ConnectionTimeout > 0 {
		_ = conn.SetReadDeadline(time.Now().Add(a.config.ConnectionTimeout))
	}

	reqData, err := bufio.NewReader(conn).ReadString('\x00')
	if err != nil {
		if err == io.EOF {
			connLogger.Error("api incomplete request (no null terminator)")
		} else {
			connLogger.Error("read api data", "error", err)
		}
		return
	}
	_ = conn.SetReadDeadline(time.Time{})
	reqData = strings.TrimSuffix(reqData, "\x00")
	if reqData == "" {
		connLogger.Error("api empty command")
		a.writeError(conn, ErrBadRequest("empty request"))
		return
	}

	path, payload := splitRequest(reqData)
	if path == "" {
		connLogger.Error("api empty path")
		a.writeError(conn, ErrBadRequest("empty path"))
		return
	}
	path = strings.ToLower(path)
	connLogger.Info("api cmd", "path", path)

	if h, params := a.router.Match(path); h != nil {
		req := &Request{Ctx: a.ctx, Params: params, Payload: payload}
		res := &Response{}
		if err := h(req, res, connLogger); err != nil {
			connLogger.Error("api handler error", "path", path, "error", err)
			a.writeError(conn, err)
			return
		}
		connLogger.Debug("api handler success", "path", path)
		a.writeOK(conn, res.JSON)
		return
	}

	if sh, params := a.router.MatchStream(path); sh != nil {
		s, err := a.lookupSeat(params)
		if err != nil {
			a.writeError(conn, err)
			return
		}
		connLogger = connLogger.With("seat", s.ID())
		connLogger.Info("api stream begin", "path", path)
		if err := sh(a.ctx, conn, s, connLogger); err != nil {
			connLogger.Error("api stream handler error", "path", path, "error", err)
		}
		connLogger.Info("api stream end", "path", path)
		return
	}

	connLogger.Error("api unknown path", "path", path)
	a.writeError(conn, ErrNotFound(fmt.Sprintf("unknown path: %s", path)))
}

func (a *Server) lookupSeat(params map[string]string) (*seat.Seat, error) {
	return LookupSeat(a.seats, params)
}

// LookupSeat resolves the {id} route parameter to a seat.
func LookupSeat(reg *seat.Registry, params map[string]string) (*seat.Seat, error) {
	idStr, ok := params["id"]
	if !ok {
		return nil, ErrBadRequest("missing id parameter")
	}
	id, err := strconv.ParseUint(idStr, 10, 32)
	if err != nil {
		return nil, ErrBadRequest(fmt.Sprintf("invalid seat id: %v", err))
	}
	s, err := reg.Get(uint32(id))
	if err != nil {
		return nil, ErrNotFound(fmt.Sprintf("seat %d not found", id))
	}
	return s, nil
}

// logConn records every frame read or written on a connection.
type logConn struct {
	net.Conn
	raw log.RawLogger
}

func (lc *logConn) Read(p []byte) (int, error) {
	n, err := lc.Conn.Read(p)
	if n > 0 {
		lc.raw.Log(true, p[:n])
	}
	return n, err
}

func (lc *logConn) Write(p []byte) (int, error) {
	n, err := lc.Conn.Write(p)
	if n > 0 {
		lc.raw.Log(false, p[:n])
	}
	return n, err
}

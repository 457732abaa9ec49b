package api

import (
	"context"
	"log/slog"
	"net"
	"strings"

	"github.com/Alia5/goxkb/seat"
)

// Request contains route parameters and additional args from the command.
type Request struct {
	Ctx     context.Context
	Params  map[string]string
	Payload string
}

// Response holds the JSON string to return to the client.
type Response struct {
	JSON string
}

// HandlerFunc processes a request and populates the response.
// The logger is connection-scoped, enriched with the remote address.
type HandlerFunc func(req *Request, res *Response, logger *slog.Logger) error

// StreamHandlerFunc serves a long-lived connection bound to one seat. The
// handler owns conn and closes it when done. ctx is cancelled when the
// server shuts down.
type StreamHandlerFunc func(ctx context.Context, conn net.Conn, s *seat.Seat, logger *slog.Logger) error

// Router matches paths against patterns with {name} placeholders.
// Matching is case-insensitive; parameter names keep their case.
type Router struct {
	routes       []route[HandlerFunc]
	streamRoutes []route[StreamHandlerFunc]
}

type route[H any] struct {
	parts   []string
	params  map[int]string
	handler H
}

func newRoute[H any](pattern string, handler H) route[H] {
	orig := strings.Split(pattern, "/")
	rt := route[H]{parts: make([]string, len(orig)), params: map[int]string{}, handler: handler}
	for i, p := range orig {
		if strings.HasPrefix(p, "{") && strings.HasSuffix(p, "}") {
			rt.params[i] = p[1 : len(p)-1]
			continue
		}
		rt.parts[i] = strings.ToLower(p)
	}
	return rt
}

func (rt route[H]) match(parts []string) (map[string]string, bool) {
	if len(rt.parts) != len(parts) {
		return nil, false
	}
	params := map[string]string{}
	for i, p := range parts {
		if name, ok := rt.params[i]; ok {
			params[name] = p
			continue
		}
		if rt.parts[i] != p {
			return nil, false
		}
	}
	return params, true
}

func NewRouter() *Router { return &Router{} }

// Register registers a handler for a path pattern like "seat/{id}/key".
func (r *Router) Register(pattern string, handler HandlerFunc) {
	r.routes = append(r.routes, newRoute(pattern, handler))
}

// RegisterStream registers a stream handler. The pattern must contain an
// {id} placeholder naming the seat.
func (r *Router) RegisterStream(pattern string, handler StreamHandlerFunc) {
	r.streamRoutes = append(r.streamRoutes, newRoute(pattern, handler))
}

// Match returns the handler and params of the first route matching path,
// or nil.
func (r *Router) Match(path string) (HandlerFunc, map[string]string) {
	return matchRoutes(r.routes, path)
}

// MatchStream is Match for stream routes.
func (r *Router) MatchStream(path string) (StreamHandlerFunc, map[string]string) {
	return matchRoutes(r.streamRoutes, path)
}

func matchRoutes[H any](routes []route[H], path string) (H, map[string]string) {
	parts := strings.Split(strings.ToLower(path), "/")
	for _, rt := range routes {
		if params, ok := rt.match(parts); ok {
			return rt.handler, params
		}
	}
	var zero H
	return zero, nil
}

package handler

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/Alia5/goxkb/apitypes"
	"github.com/Alia5/goxkb/internal/server/api"
	"github.com/Alia5/goxkb/seat"
)

// SeatCreate returns a handler that compiles a keymap and registers a seat
// for it. The payload is a JSON SeatCreateRequest; a payload that is not
// JSON is taken as a layout list such as "us,de". No payload uses the
// server's default names.
func SeatCreate(reg *seat.Registry) api.HandlerFunc {
	return func(req *api.Request, res *api.Response, logger *slog.Logger) error {
		var body apitypes.SeatCreateRequest
		payload := strings.TrimSpace(req.Payload)
		switch {
		case payload == "":
		case payload[0] == '{' || payload[0] == '"':
			if err := json.Unmarshal([]byte(payload), &body); err != nil {
				return api.ErrBadRequest(fmt.Sprintf("invalid request: %v", err))
			}
		default:
			body.Names = &apitypes.Names{Layout: payload}
		}

		s, err := reg.Create(ruleNames(body.Names), body.Keymap)
		if err != nil {
			if errors.Is(err, seat.ErrAmbiguousSource) {
				return api.ErrBadRequest("names and keymap are mutually exclusive")
			}
			return api.ErrBadRequest(fmt.Sprintf("failed to create keymap: %v", err))
		}
		out, err := json.Marshal(seatInfo(s))
		if err != nil {
			return api.ErrInternal(fmt.Sprintf("failed to marshal response: %v", err))
		}
		res.JSON = string(out)
		return nil
	}
}

package handler

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"strconv"
	"strings"

	"github.com/Alia5/goxkb/apitypes"
	"github.com/Alia5/goxkb/internal/server/api"
	"github.com/Alia5/goxkb/seat"
)

// SeatRemove returns a handler that removes the seat named by the payload.
// Followers of the seat see their stream end.
func SeatRemove(reg *seat.Registry) api.HandlerFunc {
	return func(req *api.Request, res *api.Response, logger *slog.Logger) error {
		payload := strings.TrimSpace(req.Payload)
		if payload == "" {
			return api.ErrBadRequest("missing seat id")
		}
		id, err := strconv.ParseUint(payload, 10, 32)
		if err != nil {
			return api.ErrBadRequest(fmt.Sprintf("invalid seat id: %v", err))
		}
		if err := reg.Remove(uint32(id)); err != nil {
			return api.ErrNotFound(fmt.Sprintf("seat %d not found", id))
		}
		out, err := json.Marshal(apitypes.SeatRemoveResponse{ID: uint32(id)})
		if err != nil {
			return api.ErrInternal(fmt.Sprintf("failed to marshal response: %v", err))
		}
		res.JSON = string(out)
		return nil
	}
}

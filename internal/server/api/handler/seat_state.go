package handler

import (
	"encoding/json"
	"log/slog"

	"github.com/Alia5/goxkb/internal/server/api"
	"github.com/Alia5/goxkb/seat"
)

// SeatState returns a handler that sends the current state of a seat.
func SeatState(reg *seat.Registry) api.HandlerFunc {
	return func(req *api.Request, res *api.Response, logger *slog.Logger) error {
		s, err := api.LookupSeat(reg, req.Params)
		if err != nil {
			return err
		}
		out, err := json.Marshal(modifiersEvent(s.Snapshot()))
		if err != nil {
			return err
		}
		res.JSON = string(out)
		return nil
	}
}

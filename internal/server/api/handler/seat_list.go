package handler

import (
	"encoding/json"
	"log/slog"

	"github.com/Alia5/goxkb/apitypes"
	"github.com/Alia5/goxkb/internal/server/api"
	"github.com/Alia5/goxkb/seat"
)

// SeatList returns a handler that lists the seats ordered by ID.
func SeatList(reg *seat.Registry) api.HandlerFunc {
	return func(req *api.Request, res *api.Response, logger *slog.Logger) error {
		out := apitypes.SeatListResponse{Seats: []apitypes.Seat{}}
		for _, s := range reg.List() {
			out.Seats = append(out.Seats, seatInfo(s))
		}
		b, err := json.Marshal(out)
		if err != nil {
			return err
		}
		res.JSON = string(b)
		return nil
	}
}

package handler

import (
	"encoding/json"
	"log/slog"

	"github.com/Alia5/goxkb/apitypes"
	"github.com/Alia5/goxkb/internal/server/api"
	"github.com/Alia5/goxkb/seat"
)

// SeatKeymap returns a handler that sends a seat's keymap text and digest.
func SeatKeymap(reg *seat.Registry) api.HandlerFunc {
	return func(req *api.Request, res *api.Response, logger *slog.Logger) error {
		s, err := api.LookupSeat(reg, req.Params)
		if err != nil {
			return err
		}
		text, digest := s.Text()
		out, err := json.Marshal(apitypes.SeatKeymapResponse{ID: s.ID(), Keymap: text, Digest: digest})
		if err != nil {
			return err
		}
		res.JSON = string(out)
		return nil
	}
}

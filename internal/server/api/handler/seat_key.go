package handler

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/Alia5/goxkb/apitypes"
	"github.com/Alia5/goxkb/evdev"
	"github.com/Alia5/goxkb/internal/server/api"
	"github.com/Alia5/goxkb/seat"
	"github.com/Alia5/goxkb/xkb"
)

// SeatKey returns a handler that applies "<key> <down|up>" to a seat. The
// key is anything evdev.Parse accepts.
func SeatKey(reg *seat.Registry) api.HandlerFunc {
	return func(req *api.Request, res *api.Response, logger *slog.Logger) error {
		s, err := api.LookupSeat(reg, req.Params)
		if err != nil {
			return err
		}
		fields := strings.Fields(req.Payload)
		if len(fields) != 2 {
			return api.ErrBadRequest("expected \"<key> <down|up>\"")
		}
		kc, err := evdev.Parse(fields[0])
		if err != nil {
			return api.ErrBadRequest(err.Error())
		}
		dir, ok := xkb.ParseKeyDirection(fields[1])
		if !ok {
			return api.ErrBadRequest(fmt.Sprintf("invalid key direction %q", fields[1]))
		}

		ev, err := s.Key(kc, dir)
		switch {
		case errors.Is(err, seat.ErrUnknownKey):
			return api.ErrNotFound(fmt.Sprintf("keycode %d not in keymap of seat %d", kc, s.ID()))
		case err != nil:
			return err
		}
		logger.Debug("seat key", "seat", s.ID(), "keycode", uint32(kc), "direction", dir, "changed", ev.Changed)

		out, err := json.Marshal(apitypes.SeatKeyResponse{
			Keycode: uint32(kc),
			Changed: componentNames(ev.Changed),
			Event:   modifiersEvent(ev),
		})
		if err != nil {
			return err
		}
		res.JSON = string(out)
		return nil
	}
}

package handler

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net"

	"github.com/Alia5/goxkb/internal/server/api"
	"github.com/Alia5/goxkb/seat"
)

var ErrFollowerTooSlow = errors.New("follower fell behind and was dropped")

// SeatEvents returns a stream handler that writes the seat's current state
// and then every state change as JSON lines. The stream ends when the
// client hangs up, the seat is removed or the server stops. buffer is the
// number of events a follower may lag behind before it is dropped.
func SeatEvents(buffer int) api.StreamHandlerFunc {
	return func(ctx context.Context, conn net.Conn, s *seat.Seat, logger *slog.Logger) error {
		defer conn.Close()

		ctx, cancel := context.WithCancel(ctx)
		defer cancel()
		// Followers never send anything; a read returning means they left.
		go func() {
			_, _ = io.Copy(io.Discard, conn)
			cancel()
		}()

		events, unsubscribe := s.Subscribe(buffer)
		defer unsubscribe()

		enc := json.NewEncoder(conn)
		for {
			select {
			case <-ctx.Done():
				return nil
			case ev, ok := <-events:
				if !ok {
					if s.Closed() {
						return nil
					}
					return ErrFollowerTooSlow
				}
				if err := enc.Encode(modifiersEvent(ev)); err != nil {
					return err
				}
			}
		}
	}
}

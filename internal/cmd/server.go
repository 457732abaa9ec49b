package cmd

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/Alia5/goxkb/internal/log"
	"github.com/Alia5/goxkb/internal/server/api"
	"github.com/Alia5/goxkb/internal/server/api/handler"
	"github.com/Alia5/goxkb/rules"
	"github.com/Alia5/goxkb/seat"
)

// Version is reported by the ping endpoint. Set at build time.
var Version = "dev"

type Server struct {
	ApiServerConfig api.ServerConfig `embed:"" prefix:"api."`
	ContextFlags    `embed:""`
	Seats           []string `help:"Layout list to create a seat for at startup; repeat for more seats (e.g. --seats us,ru --seats de)" sep:"none"`
}

// Run is called by Kong when the server command is executed.
func (s *Server) Run(logger *slog.Logger, rawLogger log.RawLogger) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	return s.StartServer(ctx, logger, rawLogger)
}

// RegisterRoutes wires every API endpoint of the seat service into r.
func RegisterRoutes(r *api.Router, reg *seat.Registry, cfg api.ServerConfig) {
	r.Register("ping", handler.Ping(Version))
	r.Register("seat/list", handler.SeatList(reg))
	r.Register("seat/create", handler.SeatCreate(reg))
	r.Register("seat/remove", handler.SeatRemove(reg))
	r.Register("seat/{id}/keymap", handler.SeatKeymap(reg))
	r.Register("seat/{id}/key", handler.SeatKey(reg))
	r.Register("seat/{id}/state", handler.SeatState(reg))
	r.RegisterStream("seat/{id}/events", handler.SeatEvents(cfg.StreamBuffer))
}

// StartServer serves the API until ctx is cancelled.
func (s *Server) StartServer(ctx context.Context, logger *slog.Logger, rawLogger log.RawLogger) error {
	if s.ApiServerConfig.Addr == "" {
		return errors.New("API server address must be set (default :3242)")
	}

	xctx, err := s.NewContext(logger)
	if err != nil {
		return err
	}
	reg := seat.NewRegistry(xctx, logger)
	defer reg.Close()

	for _, layout := range s.Seats {
		st, err := reg.Create(&rules.Names{Layout: layout}, "")
		if err != nil {
			return fmt.Errorf("create seat for %q: %w", layout, err)
		}
		logger.Info("Startup seat ready", "id", st.ID(), "layouts", st.Layouts())
	}

	logger.Info("Starting xkb seat server", "addr", s.ApiServerConfig.Addr)
	apiSrv := api.New(reg, s.ApiServerConfig, logger, rawLogger)
	RegisterRoutes(apiSrv.Router(), reg, s.ApiServerConfig)

	if err := apiSrv.Start(); err != nil {
		logger.Error("failed to start API server", "error", err)
		return err
	}

	<-ctx.Done()
	apiSrv.Close()
	return nil
}

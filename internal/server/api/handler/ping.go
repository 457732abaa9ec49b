package handler

import (
	"encoding/json"
	"log/slog"

	"github.com/Alia5/goxkb/apitypes"
	"github.com/Alia5/goxkb/internal/server/api"
)

// ServerName identifies this server in ping responses.
const ServerName = "goxkb"

// Ping returns a handler answering with the server name and version.
func Ping(version string) api.HandlerFunc {
	return func(req *api.Request, res *api.Response, logger *slog.Logger) error {
		out, err := json.Marshal(apitypes.PingResponse{Server: ServerName, Version: version})
		if err != nil {
			return err
		}
		res.JSON = string(out)
		return nil
	}
}

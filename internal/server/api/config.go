package api

import "time"

// ServerConfig represents the server subcommand configuration.
type ServerConfig struct {
	Addr              string        `help:"API server listen address" default:":3242" env:"XKBCLI_API_ADDR"`
	StreamBuffer      int           `help:"Events buffered per follower before it is dropped as too slow" default:"64" env:"XKBCLI_API_STREAM_BUFFER"`
	ConnectionTimeout time.Duration `help:"Time a client has to send its request" default:"10s" env:"XKBCLI_API_CONNECTION_TIMEOUT"`
}

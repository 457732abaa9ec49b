// Package config holds the command line surface of xkbcli.
package config

import "github.com/Alia5/goxkb/internal/cmd"

// CLI is the root Kong model. Every command can also be configured from a
// JSON, YAML or TOML file; flags and environment variables take precedence.
type CLI struct {
	Config string `help:"Path to a configuration file (json, yaml or toml)" env:"XKBCLI_CONFIG" type:"path"`

	Log struct {
		Level   string `help:"Log level" default:"info" enum:"trace,debug,info,warn,error" env:"XKBCLI_LOG_LEVEL"`
		File    string `help:"Also write logs to this file" env:"XKBCLI_LOG_FILE"`
		RawFile string `help:"Write raw API traffic to this file" env:"XKBCLI_LOG_RAW_FILE"`
	} `embed:"" prefix:"log."`

	Compile cmd.Compile       `cmd:"" help:"Compile a keymap and print it in text form"`
	Dump    cmd.Dump          `cmd:"" help:"Print the key table of a keymap"`
	Keysym  cmd.Keysym        `cmd:"" help:"Look up keysyms by name, number or character"`
	State   cmd.State         `cmd:"" help:"Feed key events from stdin through a keyboard state"`
	Server  cmd.Server        `cmd:"" help:"Serve keyboard seats over TCP"`
	Cfg     cmd.ConfigCommand `cmd:"" name:"config" help:"Configuration file helpers"`
}

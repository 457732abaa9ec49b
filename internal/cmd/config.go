package cmd

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"reflect"
	"strconv"
	"strings"
	"time"

	"github.com/Alia5/goxkb/internal/configpaths"

	"github.com/alecthomas/kong"
	toml "github.com/pelletier/go-toml"
	yaml "gopkg.in/yaml.v3"
)

// ConfigCommand groups config-related subcommands.
type ConfigCommand struct {
	Init ConfigInit `cmd:"" help:"Generate a configuration template"`
}

// ConfigInit scaffolds a configuration file for a specific command.
type ConfigInit struct {
	Command string `arg:"" name:"command" help:"Command to generate config for" enum:"compile,dump,state,server"`
	Format  string `help:"Output format" enum:"json,yaml,toml" default:"json"`
	Output  string `help:"Destination file path (defaults to current directory)"`
	Force   bool   `help:"Overwrite if the file already exists"`
}

// Run generates the template from the command model Kong parsed.
func (c *ConfigInit) Run(kctx *kong.Context) error {
	return c.Generate(kctx.Model)
}

// Generate writes a template for c.Command holding every flag of that
// command with its default. Keys follow the Kong configuration loaders:
// dashes become underscores and dotted prefixes become nested tables.
func (c *ConfigInit) Generate(app *kong.Application) error {
	format := normalizeFormat(c.Format)
	if format == "" {
		return fmt.Errorf("unsupported format: %s", c.Format)
	}

	node := commandNode(app, c.Command)
	if node == nil {
		return fmt.Errorf("unknown command %q", c.Command)
	}
	root := templateFromFlags(node.Flags)

	dest := c.Output
	if dest == "" {
		ext := "json"
		if format == "yaml" {
			ext = "yaml"
		} else if format == "toml" {
			ext = "toml"
		}
		dest = c.Command + "." + ext
	}

	if !c.Force {
		if _, err := os.Stat(dest); err == nil {
			return errors.New("destination exists; use --force to overwrite")
		}
	}
	if err := configpaths.EnsureDir(dest); err != nil {
		return err
	}

	var data []byte
	var err error
	switch format {
	case "json":
		data, err = json.MarshalIndent(root, "", "  ")
	case "yaml":
		data, err = yaml.Marshal(root)
	case "toml":
		data, err = toml.Marshal(root)
	}
	if err != nil {
		return err
	}
	if err := os.WriteFile(dest, data, 0o644); err != nil {
		return err
	}
	return nil
}

func normalizeFormat(f string) string {
	switch strings.ToLower(f) {
	case "json":
		return "json"
	case "yaml", "yml":
		return "yaml"
	case "toml":
		return "toml"
	default:
		return ""
	}
}

func commandNode(app *kong.Application, name string) *kong.Node {
	if app == nil {
		return nil
	}
	for _, n := range app.Children {
		if n.Type == kong.CommandNode && n.Name == name {
			return n
		}
	}
	return nil
}

func templateFromFlags(flags []*kong.Flag) map[string]any {
	out := map[string]any{}
	for _, f := range flags {
		if f.Hidden {
			continue
		}
		parts := strings.Split(strings.ReplaceAll(f.Name, "-", "_"), ".")
		table := out
		for _, p := range parts[:len(parts)-1] {
			sub, ok := table[p].(map[string]any)
			if !ok {
				sub = map[string]any{}
				table[p] = sub
			}
			table = sub
		}
		if v := flagDefault(f); v != nil {
			table[parts[len(parts)-1]] = v
		}
	}
	return out
}

// flagDefault converts the default tag of f into the value a config file
// would hold for it. Lists without a default are left out.
func flagDefault(f *kong.Flag) any {
	def := f.Default
	t := f.Target.Type()
	switch {
	case t == reflect.TypeFor[time.Duration]():
		if def == "" {
			return "0s"
		}
		return def
	case f.IsBool():
		b, _ := strconv.ParseBool(def)
		return b
	case f.IsSlice():
		if def == "" {
			return nil
		}
		return []string{def}
	}
	switch t.Kind() {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		n, _ := strconv.ParseInt(def, 10, 64)
		return n
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		n, _ := strconv.ParseUint(def, 10, 64)
		return n
	case reflect.Float32, reflect.Float64:
		n, _ := strconv.ParseFloat(def, 64)
		return n
	}
	return def
}

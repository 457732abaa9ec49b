package rules

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"strings"

	"gopkg.in/yaml.v3"
)

var (
	ErrTooManyLayouts  = errors.New("too many layouts")
	ErrTooManyVariants = errors.New("more variants than layouts")
	ErrEmptyLayout     = errors.New("empty layout name")
	ErrUnknownModel    = errors.New("model not in rules")
	ErrInvalidTable    = errors.New("invalid rules table")
	ErrRulesNotFound   = errors.New("rules file not found")
)

// ModelRule gives the base components of a model.
type ModelRule struct {
	Keycodes string `yaml:"keycodes"`
	Types    string `yaml:"types"`
	Compat   string `yaml:"compat"`
	// Symbols precedes the layouts in the symbols include.
	Symbols string `yaml:"symbols"`
	// Extras follow the layouts.
	Extras []string `yaml:"extras,omitempty"`
}

// LayoutRule adjusts how a layout name is turned into includes.
type LayoutRule struct {
	// Symbols names the symbols file, defaulting to the layout name.
	Symbols string `yaml:"symbols,omitempty"`
	// Aliases replaces the table's keycode aliases when the layout is
	// the first one.
	Aliases string `yaml:"aliases,omitempty"`
}

// OptionRule lists the includes an option appends to each section.
type OptionRule struct {
	Keycodes string `yaml:"keycodes,omitempty"`
	Types    string `yaml:"types,omitempty"`
	Compat   string `yaml:"compat,omitempty"`
	Symbols  string `yaml:"symbols,omitempty"`
}

// Table is a rules file. The model "*" matches models without an entry of
// their own.
type Table struct {
	Aliases string                `yaml:"aliases,omitempty"`
	Models  map[string]ModelRule  `yaml:"models"`
	Layouts map[string]LayoutRule `yaml:"layouts,omitempty"`
	Options map[string]OptionRule `yaml:"options,omitempty"`
}

// Parse reads a YAML rules table.
func Parse(data []byte) (*Table, error) {
	return Load(bytes.NewReader(data))
}

// Load reads a YAML rules table from r. Unknown fields are rejected.
func Load(r io.Reader) (*Table, error) {
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	var t Table
	if err := dec.Decode(&t); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidTable, err)
	}
	if len(t.Models) == 0 {
		return nil, fmt.Errorf("%w: no models", ErrInvalidTable)
	}
	for name, m := range t.Models {
		if m.Keycodes == "" || m.Types == "" || m.Compat == "" || m.Symbols == "" {
			return nil, fmt.Errorf("%w: model %q lacks a component", ErrInvalidTable, name)
		}
	}
	return &t, nil
}

// Components are the include statements of the four keymap sections.
type Components struct {
	Keycodes string `json:"keycodes"`
	Types    string `json:"types"`
	Compat   string `json:"compat"`
	Symbols  string `json:"symbols"`
	// Unmatched lists the options the table has no rule for.
	Unmatched []string `json:"unmatched,omitempty"`
}

// Resolve turns names into components. Names are expected to carry their
// defaults already; see Names.WithDefaults.
func (t *Table) Resolve(names Names) (Components, error) {
	model, ok := t.Models[names.Model]
	if !ok {
		if model, ok = t.Models["*"]; !ok {
			return Components{}, fmt.Errorf("%w: %q", ErrUnknownModel, names.Model)
		}
	}
	layouts, err := names.Layouts()
	if err != nil {
		return Components{}, err
	}

	c := Components{
		Keycodes: model.Keycodes,
		Types:    model.Types,
		Compat:   model.Compat,
	}
	syms := []string{model.Symbols}
	aliases := t.Aliases
	for i, l := range layouts {
		if l.Name == "" {
			return Components{}, fmt.Errorf("%w: layout %d", ErrEmptyLayout, i+1)
		}
		rule := t.Layouts[l.Name]
		file := l.Name
		if rule.Symbols != "" {
			file = rule.Symbols
		}
		if l.Variant != "" {
			file += "(" + l.Variant + ")"
		}
		if i > 0 {
			file += fmt.Sprintf(":%d", i+1)
		} else if rule.Aliases != "" {
			aliases = rule.Aliases
		}
		syms = append(syms, file)
	}
	syms = append(syms, model.Extras...)
	if aliases != "" {
		c.Keycodes += "+" + aliases
	}

	for _, opt := range names.OptionList() {
		rule, ok := t.Options[opt]
		if !ok {
			c.Unmatched = append(c.Unmatched, opt)
			continue
		}
		c.Keycodes = appendInclude(c.Keycodes, rule.Keycodes)
		c.Types = appendInclude(c.Types, rule.Types)
		c.Compat = appendInclude(c.Compat, rule.Compat)
		if rule.Symbols != "" {
			syms = append(syms, rule.Symbols)
		}
	}
	c.Symbols = strings.Join(syms, "+")
	return c, nil
}

func appendInclude(base, inc string) string {
	if inc == "" {
		return base
	}
	return base + "+" + inc
}

// Keymap renders the components as keymap text made of include
// statements only.
func (c Components) Keymap() string {
	var b strings.Builder
	b.WriteString("xkb_keymap {\n")
	fmt.Fprintf(&b, "\txkb_keycodes { include %q };\n", c.Keycodes)
	fmt.Fprintf(&b, "\txkb_types { include %q };\n", c.Types)
	fmt.Fprintf(&b, "\txkb_compat { include %q };\n", c.Compat)
	fmt.Fprintf(&b, "\txkb_symbols { include %q };\n", c.Symbols)
	b.WriteString("};\n")
	return b.String()
}

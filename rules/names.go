// Package rules resolves rules/model/layout/variant/options names into
// the include statements of the four keymap sections.
package rules

import (
	"fmt"
	"strings"
)

// Built-in name defaults, used when neither the caller nor the
// environment provides a value.
const (
	DefaultRules  = "evdev"
	DefaultModel  = "pc105"
	DefaultLayout = "us"
)

// MaxLayouts is the number of layouts a keymap can hold.
const MaxLayouts = 4

// Environment variables consulted by WithDefaults.
const (
	EnvRules   = "XKB_DEFAULT_RULES"
	EnvModel   = "XKB_DEFAULT_MODEL"
	EnvLayout  = "XKB_DEFAULT_LAYOUT"
	EnvVariant = "XKB_DEFAULT_VARIANT"
	EnvOptions = "XKB_DEFAULT_OPTIONS"
)

// Names is an RMLVO tuple. Layout, Variant and Options are comma separated
// lists; the n-th variant belongs to the n-th layout.
type Names struct {
	Rules   string `json:"rules,omitempty" yaml:"rules,omitempty"`
	Model   string `json:"model,omitempty" yaml:"model,omitempty"`
	Layout  string `json:"layout,omitempty" yaml:"layout,omitempty"`
	Variant string `json:"variant,omitempty" yaml:"variant,omitempty"`
	Options string `json:"options,omitempty" yaml:"options,omitempty"`
}

// DefaultNames returns the names a keymap is built from when the caller
// gives none. getenv may be nil to ignore the environment.
func DefaultNames(getenv func(string) string) Names {
	return Names{}.WithDefaults(getenv)
}

// WithDefaults fills the empty fields of n from the environment, then from
// the built-in defaults. A variant is only taken from the environment when
// the layout is too, since a variant makes no sense for another layout.
func (n Names) WithDefaults(getenv func(string) string) Names {
	if getenv == nil {
		getenv = func(string) string { return "" }
	}
	pick := func(v, env, dflt string) string {
		if v != "" {
			return v
		}
		if e := getenv(env); e != "" {
			return e
		}
		return dflt
	}
	out := n
	out.Rules = pick(n.Rules, EnvRules, DefaultRules)
	out.Model = pick(n.Model, EnvModel, DefaultModel)
	if n.Layout == "" {
		out.Layout = pick("", EnvLayout, "")
		if out.Layout != "" && n.Variant == "" {
			out.Variant = getenv(EnvVariant)
		}
		if out.Layout == "" {
			out.Layout = DefaultLayout
		}
	}
	if n.Options == "" {
		out.Options = getenv(EnvOptions)
	}
	return out
}

// Layout is one layout of a Names tuple with its variant.
type Layout struct {
	Name    string
	Variant string
}

// Layouts splits the layout and variant lists.
func (n Names) Layouts() ([]Layout, error) {
	names := splitList(n.Layout)
	variants := splitList(n.Variant)
	if len(variants) > len(names) {
		return nil, fmt.Errorf("%w: %d variants for %d layouts", ErrTooManyVariants, len(variants), len(names))
	}
	if len(names) > MaxLayouts {
		return nil, fmt.Errorf("%w: %d layouts, at most %d", ErrTooManyLayouts, len(names), MaxLayouts)
	}
	out := make([]Layout, len(names))
	for i, name := range names {
		out[i].Name = name
		if i < len(variants) {
			out[i].Variant = variants[i]
		}
	}
	return out, nil
}

// OptionList splits the options list, dropping empty entries.
func (n Names) OptionList() []string {
	var out []string
	for _, o := range splitList(n.Options) {
		if o != "" {
			out = append(out, o)
		}
	}
	return out
}

func (n Names) String() string {
	return fmt.Sprintf("rules=%q model=%q layout=%q variant=%q options=%q", n.Rules, n.Model, n.Layout, n.Variant, n.Options)
}

func splitList(s string) []string {
	if s == "" {
		return nil
	}
	parts := strings.Split(s, ",")
	for i := range parts {
		parts[i] = strings.TrimSpace(parts[i])
	}
	return parts
}

package configpaths_test

import (
	"path/filepath"
	"runtime"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/Alia5/goxkb/internal/configpaths"
)

func TestDefaultIncludeDirs(t *testing.T) {
	env := map[string]string{
		"XDG_CONFIG_HOME":                "/cfg",
		"HOME":                           "/home/u",
		configpaths.EnvConfigExtraPath: "/opt/xkb-extra",
		configpaths.EnvConfigRoot:      "/usr/share/X11/xkb",
	}
	got := configpaths.DefaultIncludeDirs(func(k string) string { return env[k] })
	assert.Equal(t, []string{
		filepath.Join("/cfg", "xkb"),
		filepath.Join("/home/u", ".xkb"),
		"/opt/xkb-extra",
		"/usr/share/X11/xkb",
	}, got)
}

func TestDefaultIncludeDirsWithoutEnvironment(t *testing.T) {
	got := configpaths.DefaultIncludeDirs(nil)
	for _, d := range got {
		assert.NotEqual(t, "/usr/share/X11/xkb", d)
	}
	if runtime.GOOS != "windows" {
		assert.Contains(t, got, configpaths.DefaultExtraPath)
	}
}

func TestConfigCandidatePaths(t *testing.T) {
	tests := []struct {
		name     string
		user     string
		wantJSON bool
		wantYAML bool
		wantTOML bool
	}{
		{name: "json", user: "/tmp/x.json", wantJSON: true},
		{name: "yaml", user: "/tmp/x.yml", wantYAML: true},
		{name: "toml", user: "/tmp/x.toml", wantTOML: true},
		{name: "no extension", user: "/tmp/x", wantJSON: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			j, y, to := configpaths.ConfigCandidatePaths(tt.user)
			assert.Equal(t, tt.wantJSON, j[0] == tt.user)
			assert.Equal(t, tt.wantYAML, y[0] == tt.user)
			assert.Equal(t, tt.wantTOML, to[0] == tt.user)
		})
	}
}

func TestExt(t *testing.T) {
	assert.Equal(t, "yaml", configpaths.Ext("yml"))
	assert.Equal(t, "toml", configpaths.Ext("toml"))
	assert.Equal(t, "json", configpaths.Ext(""))
}

package cmd

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/Rorical/ragchat/internal/config"
)

func TestProfileNames_SortedAndSkipped(t *testing.T) {
	cfg := &config.Config{Profiles: map[string]config.Profile{
		"zeta": {}, "alpha": {}, "mid": {},
	}}

	assert.Equal(t, []string{"alpha", "mid", "zeta"}, profileNames(cfg, ""))
	assert.Equal(t, []string{"alpha", "zeta"}, profileNames(cfg, "mid"))
}

func TestRemoveProfile(t *testing.T) {
	cfg := &config.Config{
		ActiveProfile: "b",
		Profiles:      map[string]config.Profile{"a": {}, "b": {}, "c": {}},
	}

	removeProfile(cfg, "c")
	assert.Equal(t, "b", cfg.ActiveProfile)

	removeProfile(cfg, "b")
	assert.Equal(t, "a", cfg.ActiveProfile)
	assert.NotContains(t, cfg.Profiles, "b")

	removeProfile(cfg, "a")
	assert.Equal(t, "default", cfg.ActiveProfile)
	assert.Equal(t, config.DefaultProfile(), cfg.Profiles["default"])
}

func TestPickProfile_UsesArgument(t *testing.T) {
	name, err := pickProfile(&config.Config{}, []string{"lab"}, "", "")
	assert.NoError(t, err)
	assert.Equal(t, "lab", name)

	_, err = pickProfile(&config.Config{}, nil, "Select", "")
	assert.Error(t, err)
}

func TestCommandsRegistered(t *testing.T) {
	names := map[string]bool{}
	for _, c := range rootCmd.Commands() {
		names[c.Name()] = true
	}
	for _, want := range []string{"profile", "use", "status", "upload", "mock-backend"} {
		assert.True(t, names[want], want)
	}
}

package search

import (
	"strings"

	"akamaru/internal/app/core"
)

// Config aliases the shared core.Config for package methods.
type Config core.Config

func asConfig(cfg *core.Config) *Config {
	return (*Config)(cfg)
}

// engine resolves the configured engine against the keys actually loaded.
func (c *Config) engine() string {
	switch strings.ToLower(strings.TrimSpace(c.Engine)) {
	case EngineGoogle:
		if len(c.GoogleAPIKeys) > 0 {
			return EngineGoogle
		}
	case EngineBrave:
		if len(c.BraveAPIKeys) > 0 {
			return EngineBrave
		}
	case EngineHTML:
		return EngineHTML
	default:
		if len(c.GoogleAPIKeys) > 0 {
			return EngineGoogle
		}
		if len(c.BraveAPIKeys) > 0 {
			return EngineBrave
		}
	}
	return EngineHTML
}

func (c *Config) maxLinks() int {
	if c.MaxLinks > 0 {
		return c.MaxLinks
	}
	return core.DefaultMaxLinks
}

func (c *Config) googleCX() string {
	if c.GoogleCX != "" {
		return c.GoogleCX
	}
	return core.DefaultCX
}

package responder

import (
	"github.com/daniesso/chunkfault/config"
)

const (
	GoodName = "good"
	BadName  = "bad"
)

// OptionsFromConfig returns the well-formed and the truncated responder, in that order.
func OptionsFromConfig(cfg *config.Config) []Options {
	base := Options{
		Host:        cfg.Host,
		GraceDelay:  cfg.Responder.GraceDelay,
		ReadTimeout: cfg.Responder.ReadTimeout,
		MaxConns:    cfg.Responder.MaxConns,
	}

	good := base
	good.Name = GoodName
	good.Port = cfg.GoodPort
	good.Template = WellFormed

	bad := base
	bad.Name = BadName
	bad.Port = cfg.BadPort
	bad.Template = Truncated

	return []Options{good, bad}
}

package config

import "go.uber.org/fx"

// Module wires application config and the hot-reloadable program defaults.
var Module = fx.Module("config",
	fx.Provide(
		Load,
		NewProgramDefaultsHolder,
	),
)

package panel

import "go.uber.org/fx"

var Module = fx.Options(
	fx.Provide(NewClient),
	fx.Provide(NewServerAPI),
	fx.Provide(NewAccountAPI),
	fx.Provide(NewRegistrarAPI),
)

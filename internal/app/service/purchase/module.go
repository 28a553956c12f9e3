package purchase

import "go.uber.org/fx"

// Module exposes the purchase service via Fx.
var Module = fx.Options(
	fx.Provide(NewService),
)

package curtailment

import (
	"curtailment-controlplane/services/escrow"

	"go.uber.org/fx"
)

var Module = fx.Module("curtailment",
	fx.Provide(
		NewRepository,
		fx.Annotate(
			NewVerifier,
			fx.As(new(escrow.ParticipationVerifier), new(escrow.CreatorDirectory)),
		),
	),
)

package workorder

import (
	"github.com/smallbiznis/labdesk/internal/workorder/repository"
	"go.uber.org/fx"
)

var Module = fx.Module("workorder",
	fx.Provide(repository.Provide),
)

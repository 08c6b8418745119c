package statement

import (
	"github.com/smallbiznis/labdesk/internal/statement/service"
	"go.uber.org/fx"
)

var Module = fx.Module("statement",
	fx.Provide(service.NewService),
)

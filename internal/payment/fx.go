package payment

import (
	"github.com/smallbiznis/labdesk/internal/payment/repository"
	"github.com/smallbiznis/labdesk/internal/payment/service"
	"go.uber.org/fx"
)

var Module = fx.Module("payment",
	fx.Provide(
		repository.Provide,
		service.NewService,
	),
)

package cashback

import (
	"github.com/smallbiznis/rebata/internal/cashback/repository"
	"github.com/smallbiznis/rebata/internal/cashback/service"
	"go.uber.org/fx"
)

var Module = fx.Module("cashback.service",
	fx.Provide(repository.Provide),
	fx.Provide(service.New),
)

package shippinglabel

import (
	"github.com/smallbiznis/shiplabel/internal/shippinglabel/repository"
	"github.com/smallbiznis/shiplabel/internal/shippinglabel/service"
	"go.uber.org/fx"
)

var Module = fx.Module("shippinglabel.service",
	fx.Provide(repository.Provide),
	fx.Provide(service.New),
)

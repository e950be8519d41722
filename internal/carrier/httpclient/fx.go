package httpclient

import (
	"github.com/smallbiznis/shiplabel/internal/carrier"
	"github.com/smallbiznis/shiplabel/internal/config"
	"go.uber.org/fx"
)

var Module = fx.Module("carrier.http",
	fx.Provide(
		fx.Annotate(newFromConfig, fx.As(new(carrier.Client))),
	),
)

func newFromConfig(cfg config.Config) (*Client, error) {
	return New(Config{
		BaseURL:  cfg.Carrier.BaseURL,
		Username: cfg.Carrier.Username,
		APIKey:   cfg.Carrier.APIKey,
		Timeout:  cfg.Carrier.Timeout,
	})
}

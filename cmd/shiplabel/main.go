package main

import (
	"fmt"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/shiplabel/internal/carrier/httpclient"
	"github.com/smallbiznis/shiplabel/internal/clock"
	"github.com/smallbiznis/shiplabel/internal/config"
	"github.com/smallbiznis/shiplabel/internal/inflight"
	"github.com/smallbiznis/shiplabel/internal/migration"
	"github.com/smallbiznis/shiplabel/internal/observability"
	"github.com/smallbiznis/shiplabel/internal/server"
	"github.com/smallbiznis/shiplabel/internal/shippinglabel"
	"github.com/smallbiznis/shiplabel/internal/transaction"
	"github.com/smallbiznis/shiplabel/pkg/db"
	"go.uber.org/fx"
	"go.uber.org/fx/fxevent"
	"go.uber.org/zap"
)

func main() {
	app := fx.New(
		fx.WithLogger(func(log *zap.Logger) fxevent.Logger {
			return &fxevent.ZapLogger{Logger: log.Named("fx")}
		}),

		// Core Infrastructure
		config.Module,
		observability.Module,
		fx.Provide(RegisterSnowflake),
		db.Module,
		clock.Module,
		migration.Module,
		inflight.Module,

		// Functional Domains
		httpclient.Module,
		transaction.Module,
		shippinglabel.Module,

		server.Module,
	)
	app.Run()
}

func RegisterSnowflake(cfg config.Config) (*snowflake.Node, error) {
	node, err := snowflake.NewNode(cfg.SnowflakeNode)
	if err != nil {
		return nil, fmt.Errorf("snowflake node %d: %w", cfg.SnowflakeNode, err)
	}
	return node, nil
}

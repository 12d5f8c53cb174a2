//go:build wireinject
// +build wireinject

package main

import (
	"github.com/google/wire"

	"github.com/tborlee/points-verts-web/internal/bootstrap"
	"github.com/tborlee/points-verts-web/internal/domain/walks"
	"github.com/tborlee/points-verts-web/internal/infra/config"
	"github.com/tborlee/points-verts-web/internal/infra/odwb"
	httpiface "github.com/tborlee/points-verts-web/internal/interface/http"
	"github.com/tborlee/points-verts-web/pkg/logger"
)

func initializeApp() (*bootstrap.App, func(), error) {
	wire.Build(
		config.Load,
		logger.New,
		provideWalksConfig,
		provideUpstreamClient,
		provideCacheCounters,
		provideSnapshotStore,
		walks.NewCachedFetcher,
		walks.NewService,
		wire.Bind(new(walks.Source), new(*odwb.Client)),
		wire.Bind(new(walks.Fetcher), new(*walks.CachedFetcher)),
		httpiface.NewHandler,
		httpiface.NewRouter,
		bootstrap.NewApp,
	)
	return nil, nil, nil
}

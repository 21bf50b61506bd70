package fx

import (
	"osrs-tracker/internal/api"
	"osrs-tracker/internal/config"
	"osrs-tracker/internal/database"
	"osrs-tracker/internal/logger"
	"osrs-tracker/internal/repository"
	"osrs-tracker/internal/scheduler"
	"osrs-tracker/internal/server"
	"osrs-tracker/internal/service"

	"go.uber.org/fx"
)

func ProvideStatsProvider(client *api.HiscoresClient) api.StatsProvider {
	return client
}

var Module = fx.Options(
	fx.Provide(logger.New),
	fx.Provide(config.Load),
	fx.Provide(database.New),
	// repos
	fx.Provide(repository.NewPlayerRepository),
	fx.Provide(repository.NewGroupRepository),
	fx.Provide(repository.NewGainsRepository),
	// api client
	fx.Provide(api.NewHiscoresClient),
	fx.Provide(ProvideStatsProvider),
	// svc
	fx.Provide(service.NewGainsEngine),
	fx.Provide(service.NewPlayerService),
	fx.Provide(service.NewGroupService),
	// scheduler
	fx.Provide(scheduler.New),
	// server
	fx.Provide(server.NewTrackerServer),
)

//go:build wireinject
// +build wireinject

package app

import (
	"github.com/google/wire"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/sirupsen/logrus"

	storage "github.com/eslsoft/vocsync/internal/adapter/repository"
	"github.com/eslsoft/vocsync/internal/infrastructure/config"
	"github.com/eslsoft/vocsync/internal/infrastructure/database"
	"github.com/eslsoft/vocsync/internal/infrastructure/logging"
	"github.com/eslsoft/vocsync/internal/repository"
)

var configSet = wire.NewSet(
	config.Load,
)

var loggingSet = wire.NewSet(
	logging.NewLogger,
	wire.Bind(new(logrus.FieldLogger), new(*logrus.Logger)),
)

var databaseSet = wire.NewSet(
	database.NewConnection,
	wire.Bind(new(storage.DBTX), new(*pgxpool.Pool)),
	provideLocalDB,
)

var repositorySet = wire.NewSet(
	storage.NewLocalStore,
	wire.Bind(new(repository.LocalStore), new(*storage.LocalStore)),
	provideRemoteStore,
	provideSession,
)

var usecaseSet = wire.NewSet(
	provideEngine,
)

// Initialize builds the application container using Wire.
func Initialize() (*Container, func(), error) {
	wire.Build(
		configSet,
		loggingSet,
		databaseSet,
		repositorySet,
		usecaseSet,
		wire.Struct(new(Container), "Config", "Logger", "Pool", "Local", "Engine"),
	)
	return nil, nil, nil
}

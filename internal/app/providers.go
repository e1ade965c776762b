package app

import (
	"database/sql"

	"github.com/sirupsen/logrus"

	storage "github.com/eslsoft/vocsync/internal/adapter/repository"
	"github.com/eslsoft/vocsync/internal/adapter/session"
	"github.com/eslsoft/vocsync/internal/infrastructure/config"
	"github.com/eslsoft/vocsync/internal/infrastructure/database"
	"github.com/eslsoft/vocsync/internal/repository"
	"github.com/eslsoft/vocsync/internal/usecase/syncer"
)

func provideLocalDB(cfg *config.Config) (*sql.DB, func(), error) {
	return database.OpenLocal(cfg.Local.Path)
}

func provideRemoteStore(db storage.DBTX, cfg *config.Config) repository.RemoteStore {
	return storage.NewRemoteStore(db, cfg.Remote.RequestTimeout)
}

func provideSession(cfg *config.Config) repository.SessionProvider {
	return session.NewTokenSession(cfg.Session.Token, cfg.Session.Secret, cfg.Session.Issuer)
}

func provideEngine(local repository.LocalStore, remote repository.RemoteStore, sp repository.SessionProvider, logger logrus.FieldLogger, cfg *config.Config) *syncer.Engine {
	return syncer.NewEngine(local, remote, sp, logger, engineOptions(cfg)...)
}

func engineOptions(cfg *config.Config) []syncer.Option {
	return []syncer.Option{
		syncer.WithChunkSize(cfg.Sync.ChunkSize),
		syncer.WithRelationBatchSize(cfg.Sync.RelationBatchSize),
		syncer.WithConcurrency(cfg.Sync.Concurrency),
		syncer.WithHistoryEnabled(cfg.Sync.HistoryEnabled),
	}
}

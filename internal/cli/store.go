package cli

import (
	"context"

	"github.com/fastertools/devlaunch/internal/api"
	"github.com/fastertools/devlaunch/internal/apperr"
	"github.com/fastertools/devlaunch/internal/config"
	"github.com/fastertools/devlaunch/internal/project"
	"github.com/fastertools/devlaunch/internal/resolver"
	"github.com/fastertools/devlaunch/internal/storage"
)

// openStore builds the blob store selected by the storage settings.
func openStore(ctx context.Context, cfg config.Storage) (storage.Store, error) {
	var store storage.Store
	switch cfg.Backend {
	case config.BackendS3:
		s3, err := storage.NewS3Store(ctx, storage.S3Options{
			Bucket:          cfg.Bucket,
			Region:          cfg.Region,
			Endpoint:        cfg.Endpoint,
			AccessKeyID:     cfg.AccessKeyID,
			SecretAccessKey: cfg.SecretAccessKey,
			Timeout:         cfg.Timeout,
		})
		if err != nil {
			return nil, err
		}
		store = s3
	case config.BackendLocal:
		store = storage.NewFSStore(cfg.LocalRoot)
	default:
		return nil, apperr.Input("storage", "unknown storage backend %q", cfg.Backend).
			WithFix("set storage.backend to s3 or local")
	}

	if cfg.Prefix != "" {
		store = storage.Prefixed(store, cfg.Prefix)
	}
	return store, nil
}

// openCatalog returns the catalog the CLI reads from: a devlaunch server
// when api.url is set, the blob store otherwise.
func openCatalog(ctx context.Context, cfg *config.Config) (resolver.Catalog, error) {
	if cfg.APIURL != "" {
		Debug("Using catalog server %s", cfg.APIURL)
		client, err := api.NewClient(cfg.APIURL, api.WithUserAgent("devlaunch/"+version))
		if err != nil {
			return nil, err
		}
		if err := client.Health(ctx); err != nil {
			return nil, err
		}
		return client, nil
	}
	store, err := openStore(ctx, cfg.Storage)
	if err != nil {
		return nil, err
	}
	return resolver.New(store,
		resolver.WithTimeout(cfg.Storage.Timeout),
		resolver.WithLogger(newLogger(levelWarn)),
	), nil
}

func openWorkspace(cfg *config.Config) *project.Workspace {
	return project.NewWorkspace(cfg.TemplatesDir, cfg.ProjectsDir)
}

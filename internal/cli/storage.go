package cli

import (
	"context"
	"fmt"

	"github.com/jrsteele09/go-auth-session/internal/config"
	"github.com/jrsteele09/go-auth-session/storage"
)

func openRepo(ctx context.Context, cfg config.StorageConfig, backend config.StorageBackend, dir string) (storage.Repo, func() error, error) {
	noop := func() error { return nil }

	switch backend {
	case config.StorageMemory:
		return storage.NewMemoryRepo(), noop, nil
	case config.StorageFile:
		var opts []storage.FileOption
		if passphrase := cfg.GetStoragePassphrase(); passphrase != "" {
			opts = append(opts, storage.WithPassphrase(passphrase))
		}
		repo, err := storage.NewOSFileRepo(dir, opts...)
		if err != nil {
			return nil, nil, fmt.Errorf("open file storage in %s: %w", dir, err)
		}
		return repo, noop, nil
	case config.StorageRedis:
		repo := storage.NewRedisRepo(cfg.GetRedisAddr(), cfg.GetRedisPassword(), cfg.GetRedisDB(), cfg.GetRedisPrefix())
		if err := repo.Ping(ctx); err != nil {
			_ = repo.Close()
			return nil, nil, fmt.Errorf("connect to redis at %s: %w", cfg.GetRedisAddr(), err)
		}
		return repo, repo.Close, nil
	default:
		return nil, nil, fmt.Errorf("unknown storage backend %q", backend)
	}
}

package cli

import (
	"fmt"

	"github.com/aretw0/botlink/internal/adapters/bolt"
	"github.com/aretw0/botlink/internal/adapters/file"
	"github.com/aretw0/botlink/internal/adapters/redis"
	"github.com/aretw0/botlink/internal/config"
	"github.com/aretw0/botlink/pkg/adapters/memory"
	"github.com/aretw0/botlink/pkg/persistence/middleware"
	"github.com/aretw0/botlink/pkg/ports"
)

// backing is an opened program store with its optional name lock and cleanup.
type backing struct {
	store  ports.ProgramStore
	locker ports.Locker
	close  func() error
}

func openStore(cfg config.Store) (*backing, error) {
	b, err := openBacking(cfg)
	if err != nil {
		return nil, err
	}
	enc, err := cfg.Encryption()
	if err != nil {
		b.close()
		return nil, err
	}
	if enc != nil {
		b.store = middleware.NewEncryptionMiddleware(*enc)(b.store)
	}
	return b, nil
}

func openBacking(cfg config.Store) (*backing, error) {
	nothing := func() error { return nil }

	switch cfg.Kind {
	case config.StoreMemory:
		return &backing{store: memory.NewStore(), close: nothing}, nil
	case config.StoreFile:
		return &backing{store: file.New(cfg.Path), close: nothing}, nil
	case config.StoreBolt:
		s, err := bolt.Open(cfg.Path)
		if err != nil {
			return nil, fmt.Errorf("failed to open program database: %w", err)
		}
		return &backing{store: s, close: s.Close}, nil
	case config.StoreRedis:
		var opts []redis.Option
		if cfg.Redis.Prefix != "" {
			opts = append(opts, redis.WithPrefix(cfg.Redis.Prefix))
		}
		s := redis.New(cfg.Redis.Address, cfg.Redis.Password, cfg.Redis.DB, opts...)
		return &backing{
			store:  s,
			locker: redis.NewLocker(s.Client(), "botlink:"),
			close:  s.Close,
		}, nil
	}
	return nil, fmt.Errorf("%w: unknown store kind %q", config.ErrInvalid, cfg.Kind)
}

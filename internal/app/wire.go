package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/odyssey-erp/odyssey-console/internal/api"
	"github.com/odyssey-erp/odyssey-console/internal/bootstrap"
	"github.com/odyssey-erp/odyssey-console/internal/console"
	"github.com/odyssey-erp/odyssey-console/internal/observability"
	"github.com/odyssey-erp/odyssey-console/internal/platform/cache"
	"github.com/odyssey-erp/odyssey-console/internal/pricing"
	"github.com/odyssey-erp/odyssey-console/internal/querycache"
	"github.com/odyssey-erp/odyssey-console/internal/rbac"
	"github.com/odyssey-erp/odyssey-console/internal/session"
	"github.com/odyssey-erp/odyssey-console/internal/shared"
	"github.com/odyssey-erp/odyssey-console/internal/view"
)

// redisNamespace prefixes the token key in Redis.
const redisNamespace = "odyssey-console"

// Services is the object graph shared by the console and erpctl: one session
// store, one query cache and one client per process.
type Services struct {
	Config    *Config
	Logger    *slog.Logger
	Metrics   *observability.Metrics
	Redis     *redis.Client
	Storage   session.TokenStorage
	Session   *session.Store
	Cache     *querycache.Cache
	Client    *api.Client
	Resolver  *rbac.Resolver
	Bootstrap *bootstrap.Sequencer
	Gate      rbac.Gate
	Money     pricing.Formatter
	CSRF      *shared.CSRFManager
}

// Wire builds Services from cfg. metrics may be nil.
func Wire(ctx context.Context, cfg *Config, logger *slog.Logger, metrics *observability.Metrics) (*Services, error) {
	if cfg == nil {
		return nil, errors.New("app: config required")
	}
	if logger == nil {
		logger = slog.Default()
	}
	policy, err := cfg.UnwiredPolicy()
	if err != nil {
		return nil, err
	}

	s := &Services{
		Config:  cfg,
		Logger:  logger,
		Metrics: metrics,
		Gate:    rbac.Gate{Unwired: policy},
		Money:   pricing.NewFormatter(cfg.Language),
		CSRF:    shared.NewCSRFManager(cfg.CSRFSecret),
	}

	s.Storage, err = s.tokenStorage(ctx)
	if err != nil {
		return nil, err
	}
	s.Session = session.NewStore(s.Storage, logger)

	cacheOpts := []querycache.Option{querycache.WithKeepUnused(cfg.CacheKeepUnused)}
	if metrics != nil {
		cacheOpts = append(cacheOpts, querycache.WithObserver(metrics))
	}
	s.Cache = querycache.New(cacheOpts...)

	opts := api.Options{
		BaseURL:        cfg.APIBaseURL,
		Timeout:        cfg.APITimeout,
		Session:        s.Session,
		Cache:          s.Cache,
		Logger:         logger,
		PublishableKey: cfg.PaymentPublishableKey,
	}
	if metrics != nil {
		opts.Observer = metrics
	}
	s.Client, err = api.New(opts)
	if err != nil {
		_ = s.Close()
		return nil, err
	}
	s.Resolver = rbac.NewResolver(s.Client, s.Session, logger)
	s.Bootstrap = bootstrap.New(s.Session, s.Client, logger)
	return s, nil
}

func (s *Services) tokenStorage(ctx context.Context) (session.TokenStorage, error) {
	switch s.Config.TokenStore {
	case TokenStoreMemory:
		return session.NewMemoryStorage(), nil
	case TokenStoreRedis:
		client, err := cache.New(ctx, cache.Options{Addr: s.Config.RedisAddr})
		if err != nil {
			return nil, fmt.Errorf("app: token store: %w", err)
		}
		s.Redis = client
		return session.NewRedisStorage(client, redisNamespace, s.Config.RedisTokenTTL), nil
	default:
		path := s.Config.TokenFile
		if path == "" {
			var err error
			if path, err = session.DefaultTokenPath(); err != nil {
				return nil, err
			}
		}
		return session.NewFileStorage(path, s.Config.TokenSealKey), nil
	}
}

// NewConsole builds the console handler over s.
func (s *Services) NewConsole() (*console.Handler, error) {
	templates, err := view.NewEngine(s.Money)
	if err != nil {
		return nil, err
	}
	p := console.Params{
		Client:         s.Client,
		Store:          s.Session,
		Resolver:       s.Resolver,
		Gate:           s.Gate,
		Bootstrap:      s.Bootstrap,
		Templates:      templates,
		CSRF:           s.CSRF,
		Money:          s.Money,
		LoginRateLimit: s.Config.LoginRateLimit,
		Logger:         s.Logger,
	}
	if s.Metrics != nil {
		p.GuardObserver = s.Metrics
	}
	return console.NewHandler(p), nil
}

// RunCachePruner drops unused query cache entries once per keep-unused
// window until ctx ends.
func (s *Services) RunCachePruner(ctx context.Context) {
	ticker := time.NewTicker(s.Cache.KeepUnused())
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if removed := s.Cache.Prune(); len(removed) > 0 {
				s.Logger.Debug("query cache pruned", slog.Int("entries", len(removed)))
			}
		}
	}
}

// Close releases external connections.
func (s *Services) Close() error {
	if s.Redis != nil {
		return s.Redis.Close()
	}
	return nil
}

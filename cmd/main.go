package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/angeloszaimis/link-rotator/config"
	"github.com/angeloszaimis/link-rotator/internal/circuitbreaker"
	"github.com/angeloszaimis/link-rotator/internal/destination"
	"github.com/angeloszaimis/link-rotator/internal/handler"
	"github.com/angeloszaimis/link-rotator/internal/httpserver"
	"github.com/angeloszaimis/link-rotator/internal/linkcache"
	"github.com/angeloszaimis/link-rotator/internal/metrics"
	"github.com/angeloszaimis/link-rotator/internal/parser"
	"github.com/angeloszaimis/link-rotator/internal/refresher"
	"github.com/angeloszaimis/link-rotator/internal/rotator"
	"github.com/angeloszaimis/link-rotator/internal/source"
	"github.com/angeloszaimis/link-rotator/internal/strategy"
	"github.com/angeloszaimis/link-rotator/internal/tagger"
	"github.com/angeloszaimis/link-rotator/pkg/logger"
)

const metricsNamespace = "link_rotator"

// app holds everything main wires together.
type app struct {
	cfg       *config.Config
	log       *slog.Logger
	redis     redis.UniversalClient
	cache     *linkcache.Cache
	counter   strategy.Counter
	engine    *rotator.Engine
	collector *metrics.Collector
	prom      *metrics.Prometheus
	breakers  *circuitbreaker.Registry
	refresher *refresher.Refresher
}

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", slog.Any("err", err))
		os.Exit(1)
	}

	log := logger.New(cfg.Logging.Level, cfg.Server.Environment != config.EnvProd, cfg.Server.Environment)

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	a, err := newApp(cfg, log)
	if err != nil {
		log.Error("Failed to initialize", slog.Any("err", err))
		os.Exit(1)
	}
	defer a.Close()

	a.collector.Start(ctx)

	if a.refresher != nil {
		go func() { _ = a.refresher.RunOnce(ctx) }()
		a.refresher.Start(ctx)
	}

	srv, err := httpserver.New(cfg.Server.Address, setupRouter(a), httpserver.Options{
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	})
	if err != nil {
		log.Error("Failed to create server", slog.Any("err", err))
		os.Exit(1)
	}

	srvErrCh := make(chan error, 1)

	go func() {
		srvErrCh <- srv.Start()
	}()

	log.Info("Link rotator listening",
		slog.String("address", cfg.Server.Address),
		slog.String("source", cfg.Source.URL),
		slog.String("strategy", a.engine.Strategy().Name()),
		slog.String("store", cfg.Cache.Store),
		slog.Duration("ttl", cfg.Cache.TTL()))

	select {
	case <-ctx.Done():
		log.Info("Shutting down gracefully...")
		if err := srv.Shutdown(context.Background()); err != nil {
			log.Error("Error during shutdown", slog.Any("err", err))
		}
	case err := <-srvErrCh:
		if err != nil {
			log.Error("Error starting link rotator", slog.Any("err", err))
			os.Exit(1)
		}
	}
}

func newApp(cfg *config.Config, log *slog.Logger) (*app, error) {
	a := &app{cfg: cfg, log: log}

	if cfg.Cache.Store == config.StoreRedis || cfg.Strategy.Counter == config.CounterRedis {
		a.redis = newRedisClient(cfg.Redis, log)
	}

	dialect, err := parser.ParseDialect(cfg.Source.Format)
	if err != nil {
		return nil, err
	}

	fallback, err := destination.NewFallback(cfg.FallbackURL)
	if err != nil {
		return nil, err
	}

	store, err := createStore(cfg, a.redis)
	if err != nil {
		return nil, err
	}

	a.prom = metrics.NewPrometheus(metricsNamespace)
	a.collector = metrics.NewCollector(1000, log, a.prom)

	var fetcher source.Fetcher = source.NewHTTPFetcher(source.Options{
		Timeout:   cfg.Source.Timeout,
		UserAgent: cfg.Source.UserAgent,
		MaxRPS:    cfg.Source.MaxFetchRPS,
	})
	a.breakers = circuitbreaker.NewRegistry(cfg.Breaker.FailureThreshold, cfg.Breaker.ResetTimeout,
		circuitbreaker.WithTransitionHook(func(origin string, from, to circuitbreaker.State) {
			log.Warn("Source circuit breaker changed state",
				slog.String("origin", origin),
				slog.String("from", from.String()),
				slog.String("to", to.String()))
		}))
	fetcher = source.NewGuardedFetcher(fetcher, a.breakers)

	a.cache, err = linkcache.New(linkcache.Options{
		Origin:         cfg.Source.URL,
		Dialect:        dialect,
		TTL:            cfg.Cache.TTL(),
		Fetcher:        fetcher,
		Store:          store,
		Logger:         log,
		RefreshTimeout: 2 * cfg.Source.Timeout,
		OnRefresh: func(r linkcache.RefreshResult) {
			a.collector.Emit(metrics.MetricEvent{
				Type:       metrics.EventCacheRefreshed,
				Duration:   r.Duration,
				Candidates: r.Candidates,
				FromStore:  r.FromStore,
				Failed:     r.Err != nil,
			})
		},
	})
	if err != nil {
		_ = store.Close()
		return nil, err
	}

	a.counter = createCounter(cfg, a.redis, log)

	strat, err := createStrategy(log, cfg.Strategy, a.counter)
	if err != nil {
		return nil, err
	}

	var tg *tagger.Tagger
	if cfg.Tagging.Enabled {
		tg = tagger.New(cfg.Tagging.Param, tagRules(cfg.Tagging.Rules))
	}

	a.engine, err = rotator.New(rotator.Options{
		Source:   a.cache,
		Strategy: strat,
		Fallback: fallback,
		Tagger:   tg,
		Logger:   log,
	})
	if err != nil {
		return nil, err
	}

	if cfg.Cache.RefreshSchedule != "" {
		a.refresher, err = refresher.New(cfg.Cache.RefreshSchedule, a.cache, cfg.Source.Timeout+time.Second, log)
		if err != nil {
			return nil, err
		}
	}

	return a, nil
}

// Close flushes pending cache writes and releases the store and Redis client.
func (a *app) Close() {
	if a.cache != nil {
		if err := a.cache.Close(); err != nil {
			a.log.Warn("Failed to close cache store", slog.Any("err", err))
		}
	}

	if a.redis != nil {
		_ = a.redis.Close()
	}
}

func newRedisClient(cfg config.RedisConfig, log *slog.Logger) redis.UniversalClient {
	client := redis.NewClient(&redis.Options{
		Addr:                  cfg.Address,
		Password:              cfg.Password,
		DB:                    cfg.DB,
		ContextTimeoutEnabled: true,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	// Redis is best-effort for both the store and the counter.
	if err := client.Ping(ctx).Err(); err != nil {
		log.Warn("Redis unreachable at startup",
			slog.String("address", cfg.Address),
			slog.String("error", err.Error()))
	}

	return client
}

func createStore(cfg *config.Config, client redis.UniversalClient) (linkcache.Store, error) {
	switch cfg.Cache.Store {
	case config.StoreMemory, "":
		return linkcache.NewMemoryStore(), nil
	case config.StoreRedis:
		if client == nil {
			return nil, errors.New("redis store needs a redis client")
		}
		return linkcache.NewRedisStore(client, cfg.Redis.KeyPrefix), nil
	case config.StoreLevelDB:
		return linkcache.NewLevelDBStore(cfg.LevelDB.Path)
	default:
		return nil, fmt.Errorf("unknown cache store %q", cfg.Cache.Store)
	}
}

func createCounter(cfg *config.Config, client redis.UniversalClient, log *slog.Logger) strategy.Counter {
	if cfg.Strategy.Counter == config.CounterRedis && client != nil {
		key := "rotation"
		if cfg.Redis.KeyPrefix != "" {
			key = cfg.Redis.KeyPrefix + ":rotation"
		}
		return strategy.NewRedisCounter(client, key, log)
	}

	return strategy.NewLocalCounter()
}

func createStrategy(logger *slog.Logger, cfg config.StrategyConfig, counter strategy.Counter) (strategy.Strategy, error) {
	switch cfg.Type {
	case strategy.NameSequential:
		return strategy.NewSequentialStrategy(counter), nil
	case strategy.NameUniform:
		return strategy.NewUniformStrategy(nil), nil
	case strategy.NameWeighted:
		return strategy.NewWeightedStrategy(cfg.PrimaryChance, strategy.SubstringClassifier(cfg.PrimaryMatch), nil), nil
	default:
		logger.Warn("Unknown strategy, defaulting to sequential", slog.String("requested", cfg.Type))
		return strategy.NewSequentialStrategy(counter), nil
	}
}

func tagRules(rules []config.TagRule) []tagger.Rule {
	if len(rules) == 0 {
		return nil
	}

	out := make([]tagger.Rule, 0, len(rules))
	for _, r := range rules {
		out = append(out, tagger.Rule{Match: r.Match, Label: r.Label})
	}
	return out
}

func botPage(cfg config.BotConfig) handler.BotPage {
	return handler.BotPage{
		Title:       cfg.Title,
		Description: cfg.Description,
		Image:       cfg.Image,
	}
}

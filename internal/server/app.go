package server

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"go.mongodb.org/mongo-driver/v2/mongo/readpref"

	"natours/api/internal/cache"
	"natours/api/internal/config"
	"natours/api/internal/crud"
	"natours/api/internal/database"
	"natours/api/internal/handlers"
	"natours/api/internal/jobs"
	"natours/api/internal/metrics"
	"natours/api/internal/models"
	"natours/api/internal/queue"
	"natours/api/internal/repository"
	"natours/api/internal/security"
	"natours/api/internal/service"
	"natours/api/internal/storage"
	"natours/api/internal/tasks"
)

// App is the assembled API process.
type App struct {
	HTTP      *HTTPServer
	Scheduler *jobs.Scheduler
	closers   []func()
	log       zerolog.Logger
}

type stores struct {
	tours   repository.Repository
	users   repository.Repository
	checks  []handlers.HealthCheck
	closers []func()
}

func NewApp(ctx context.Context, cfg *config.AppConfig, log zerolog.Logger) (*App, error) {
	m := metrics.New()

	st, err := openStores(ctx, cfg, log)
	if err != nil {
		return nil, err
	}
	app := &App{closers: st.closers, log: log}

	tours := repository.WithMetrics(models.TourDescriptor.Name, m,
		repository.WithVisibility(models.TourDescriptor, st.tours))
	users := repository.WithMetrics(models.AccountDescriptor.Name, m,
		repository.WithVisibility(models.AccountDescriptor, st.users))
	accounts := repository.NewAccountRepository(users)

	notifier, check, closer, err := openNotifier(ctx, cfg, log)
	if err != nil {
		app.Close()
		return nil, err
	}
	if check != nil {
		st.checks = append(st.checks, *check)
	}
	if closer != nil {
		app.closers = append(app.closers, closer)
	}

	issuer := security.NewTokenIssuer(cfg.Security.JWTSecret, cfg.Security.JWTTTL, nil)
	tokenService := service.NewTokenService(accounts, notifier, log, service.WithMetrics(m))
	authService := service.NewAuthService(accounts, tokenService, issuer, log)

	var photoService *service.PhotoService
	if cfg.Storage.AccessKey != "" {
		objectStore, err := storage.NewObjectStore(cfg.Storage)
		if err != nil {
			app.Close()
			return nil, err
		}
		if err := objectStore.EnsureBucket(ctx); err != nil {
			log.Warn().Err(err).Msg("ensure photo bucket failed")
		}
		photoService = service.NewPhotoService(accounts, objectStore, log)
	} else {
		log.Warn().Msg("storage credentials not set, photo uploads disabled")
	}

	handlerSet := handlers.NewHandlerSet(handlers.Deps{
		Log:          log,
		Environment:  cfg.Environment,
		Tours:        crud.New(models.TourDescriptor, tours, crud.WithRelated(models.AccountDescriptor, users)),
		Users:        crud.New(models.AccountDescriptor, users),
		Auth:         authService,
		Photos:       photoService,
		HealthChecks: st.checks,
	})

	app.HTTP = NewHTTPServer(cfg, log, handlerSet, m)
	app.Scheduler = jobs.NewScheduler(tokenService, cfg.Jobs.PurgeSchedule, log)
	return app, nil
}

// Close releases store and queue connections.
func (a *App) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
	a.closers = nil
}

func openStores(ctx context.Context, cfg *config.AppConfig, log zerolog.Logger) (stores, error) {
	switch cfg.Store.Driver {
	case config.DriverPostgres:
		pool, err := database.NewPostgresPool(ctx, cfg.Postgres)
		if err != nil {
			return stores{}, err
		}
		tours := repository.NewPostgres(pool, models.TourDescriptor)
		users := repository.NewPostgres(pool, models.AccountDescriptor)
		for _, r := range []*repository.Postgres{tours, users} {
			if err := r.EnsureSchema(ctx); err != nil {
				pool.Close()
				return stores{}, err
			}
		}
		return stores{
			tours:   tours,
			users:   users,
			checks:  []handlers.HealthCheck{{Name: "postgres", Check: pool.Ping}},
			closers: []func(){pool.Close},
		}, nil

	case config.DriverMongo:
		client, err := database.NewMongoClient(ctx, cfg.Mongo)
		if err != nil {
			return stores{}, err
		}
		db := client.Database(cfg.Mongo.Database)
		tours := repository.NewMongo(db, models.TourDescriptor)
		users := repository.NewMongo(db, models.AccountDescriptor)
		for _, r := range []*repository.Mongo{tours, users} {
			if err := r.EnsureIndexes(ctx); err != nil {
				_ = client.Disconnect(context.Background())
				return stores{}, err
			}
		}
		return stores{
			tours: tours,
			users: users,
			checks: []handlers.HealthCheck{{Name: "mongo", Check: func(ctx context.Context) error {
				return client.Ping(ctx, readpref.Primary())
			}}},
			closers: []func(){func() {
				ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
				defer cancel()
				if err := client.Disconnect(ctx); err != nil {
					log.Error().Err(err).Msg("mongo disconnect error")
				}
			}},
		}, nil

	case config.DriverMemory:
		log.Warn().Msg("using the in-memory store, data is lost on exit")
		return stores{
			tours: repository.NewMemory(models.TourDescriptor),
			users: repository.NewMemory(models.AccountDescriptor),
		}, nil
	}
	return stores{}, fmt.Errorf("unknown store driver %q", cfg.Store.Driver)
}

// openNotifier prefers the redis stream. Outside production a missing redis
// falls back to logging reset messages in-process.
func openNotifier(ctx context.Context, cfg *config.AppConfig, log zerolog.Logger) (service.Notifier, *handlers.HealthCheck, func(), error) {
	client, err := cache.NewRedisClient(ctx, cfg.Redis)
	if err != nil {
		if cfg.Environment == "production" {
			return nil, nil, nil, fmt.Errorf("reset delivery queue: %w", err)
		}
		log.Warn().Err(err).Msg("redis unavailable, reset messages will be logged in-process")
		return tasks.NewDirectNotifier(tasks.NewLogSender(log), cfg.Reset.URLBase), nil, nil, nil
	}
	check := &handlers.HealthCheck{Name: "redis", Check: func(ctx context.Context) error {
		return client.Ping(ctx).Err()
	}}
	closer := func() {
		if err := client.Close(); err != nil {
			log.Error().Err(err).Msg("redis close error")
		}
	}
	return queue.NewPublisher(client, cfg.Reset.Stream), check, closer, nil
}

package app

import (
	"context"
	"net"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/Astemirdum/library-circulation/circulation/config"
	"github.com/Astemirdum/library-circulation/circulation/internal/handler"
	"github.com/Astemirdum/library-circulation/circulation/internal/repository"
	"github.com/Astemirdum/library-circulation/circulation/internal/server"
	"github.com/Astemirdum/library-circulation/circulation/internal/service"
	"github.com/Astemirdum/library-circulation/circulation/migrations"
	"github.com/Astemirdum/library-circulation/pkg/auth"
	"github.com/Astemirdum/library-circulation/pkg/circuit_breaker"
	"github.com/Astemirdum/library-circulation/pkg/idempotency"
	"github.com/Astemirdum/library-circulation/pkg/kafka"
	"github.com/Astemirdum/library-circulation/pkg/logger"
	"github.com/Astemirdum/library-circulation/pkg/postgres"
	"github.com/Astemirdum/library-circulation/pkg/tracing"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

const serviceName = "circulation"

func Run(cfg *config.Config) {
	log := logger.NewLogger(cfg.Log, serviceName)
	if cfg.Auth.Secret == "" {
		log.Fatal("AUTH_SECRET", zap.Error(auth.ErrEmptySecret))
	}
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	shutdownTracing, err := tracing.Init(ctx, cfg.Tracing, serviceName)
	if err != nil {
		log.Fatal("tracing.Init", zap.Error(err))
	}

	pool, err := postgres.NewPostgresDB(ctx, &cfg.Database, migrations.MigrationFiles)
	if err != nil {
		log.Fatal("db init", zap.Error(err))
	}
	db := postgres.NewSqlx(pool)
	repo := repository.NewRepository(pool, db, log)

	opts := []service.Option{service.WithSettings(service.NewStaticSettings(cfg.Library))}
	var publisher *kafka.Publisher
	if cfg.Kafka.Enabled() {
		producer, err := kafka.NewProducer(cfg.Kafka)
		if err != nil {
			log.Fatal("kafka.NewProducer", zap.Error(err))
		}
		cb := circuit_breaker.New(
			cfg.Publisher.RecordLength,
			cfg.Publisher.Timeout,
			cfg.Publisher.Percentile,
			cfg.Publisher.RecoveryRequests)
		publisher = kafka.NewPublisher(producer, kafka.CirculationTopic, cb)
		opts = append(opts, service.WithPublisher(publisher))
	} else {
		log.Warn("kafka is not configured, events are dropped")
	}
	svc := service.NewService(repo, log, opts...)

	g, gCtx := errgroup.WithContext(ctx)

	if cfg.Kafka.Enabled() {
		group, err := kafka.NewConsumer(cfg.Kafka, kafka.StatsConsumerGroup)
		if err != nil {
			log.Fatal("kafka.NewConsumer", zap.Error(err))
		}
		g.Go(func() error {
			kafka.Consume(gCtx, group, handler.NewConsumer(svc.RecordEvent, log), log, kafka.CirculationTopic)
			return nil
		})
		defer func() {
			if err := group.Close(); err != nil {
				log.Error("consumer group close", zap.Error(err))
			}
		}()
	}

	handlerOpts := []handler.Option{handler.WithAuthSecret([]byte(cfg.Auth.Secret))}
	var rdb *redis.Client
	if cfg.Redis.Addr != "" {
		rdb = redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		if err := rdb.Ping(ctx).Err(); err != nil {
			log.Fatal("redis ping", zap.Error(err))
		}
		handlerOpts = append(handlerOpts,
			handler.WithIdempotency(idempotency.NewRedisStore(rdb, cfg.Redis.IdempotencyTTL)))
	}

	h := handler.New(handler.Services{
		Transactions: svc,
		Fines:        svc,
		Reservations: svc,
		Catalog:      svc,
		Stats:        svc,
	}, log, handlerOpts...)

	srv := server.NewServer(cfg.Server, h.NewRouter())
	log.Info("http server start ON: ",
		zap.String("addr",
			net.JoinHostPort(cfg.Server.Host, cfg.Server.Port)))
	g.Go(srv.Run)

	g.Go(func() error {
		<-gCtx.Done()
		log.Debug("Graceful shutdown", zap.NamedError("cause", context.Cause(gCtx)))

		closeCtx, cancel := context.WithTimeout(context.Background(), time.Second*5)
		defer cancel()
		if err := srv.Stop(closeCtx); err != nil {
			log.DPanic("srv.Stop", zap.Error(err))
		}
		if err := shutdownTracing(closeCtx); err != nil {
			log.Error("tracing shutdown", zap.Error(err))
		}
		return nil
	})

	if err := g.Wait(); err != nil {
		log.Error("server run", zap.Error(err))
	}

	if publisher != nil {
		if err := publisher.Close(); err != nil {
			log.Error("publisher close", zap.Error(err))
		}
	}
	if rdb != nil {
		_ = rdb.Close()
	}
	_ = db.Close()
	pool.Close()
	log.Info("Graceful shutdown finished")
}

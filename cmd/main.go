package main

import (
	"context"
	"errors"
	"flag"
	"log"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/ecorescue/foodshare/internal/auth"
	"github.com/ecorescue/foodshare/internal/cache"
	"github.com/ecorescue/foodshare/internal/db"
	"github.com/ecorescue/foodshare/internal/kafka"
	"github.com/ecorescue/foodshare/internal/logger"
	"github.com/ecorescue/foodshare/internal/repository/postgresql"
	"github.com/ecorescue/foodshare/internal/server"
	"github.com/ecorescue/foodshare/internal/storage"
)

const sessionTTL = 24 * time.Hour

func main() {
	seed := flag.Bool("seed", false, "create demo accounts on startup")
	flag.Parse()

	zapLogger := logger.New()
	defer func() {
		_ = zapLogger.Sync()
	}()

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	database, err := db.NewDb(ctx)
	if err != nil {
		zapLogger.Fatal("database init failed", zap.Error(err))
	}
	defer database.GetPool().Close()

	donationRepo := postgresql.NewDonationRepo(database)
	historyRepo := postgresql.NewHistoryRepo(database)
	outboxRepo := postgresql.NewOutboxTaskRepo()
	userRepo := postgresql.NewUserRepo(database)

	donationCache := cache.NewDonationCache(donationRepo)
	if err := donationCache.LoadInitialData(ctx); err != nil {
		zapLogger.Fatal("cache warmup failed", zap.Error(err))
	}

	stg := storage.NewStorage(database, donationRepo, historyRepo, outboxRepo).WithCache(donationCache)

	sessions := auth.NewSessionStore(sessionTTL)
	authSvc := auth.NewService(userRepo, sessions)

	if *seed {
		seedAccounts(ctx, authSvc, zapLogger)
	}

	// The publisher owns the producer and closes it on shutdown.
	producer := newProducer(zapLogger)
	publisher := kafka.NewPublisher(database, outboxRepo, producer, kafka.PublisherConfig{
		PollInterval: 2 * time.Second,
		BatchSize:    50,
		MaxAttempts:  5,
	})

	auditManager := server.NewAuditManager(2, 10, 5*time.Second, producer)
	srv := server.New(stg, authSvc, sessions, auditManager)

	port := os.Getenv("SERVER_PORT")
	if port == "" {
		port = "9000"
	}

	group, groupCtx := errgroup.WithContext(ctx)
	group.Go(func() error {
		return srv.Run(groupCtx, port)
	})
	group.Go(func() error {
		publisher.Run(groupCtx)
		return nil
	})
	group.Go(func() error {
		<-groupCtx.Done()

		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer shutdownCancel()

		// Server first so the audit manager flushes before the producer
		// is closed by the publisher.
		err := srv.Shutdown(shutdownCtx)
		publisher.Shutdown()
		return err
	})

	if err := group.Wait(); err != nil {
		zapLogger.Fatal("shutdown failed", zap.Error(err))
	}
	log.Println("Server gracefully stopped")
}

// newProducer returns a Kafka producer when KAFKA_BROKERS is set and a
// console fallback otherwise, so local runs do not need a broker.
func newProducer(zapLogger *zap.Logger) kafka.Producer {
	brokers := os.Getenv("KAFKA_BROKERS")
	if brokers == "" {
		zapLogger.Info("KAFKA_BROKERS not set, events go to stdout")
		return kafka.NewConsoleProducer()
	}
	return kafka.NewWriterProducer(strings.Split(brokers, ","))
}

// seedAccounts registers the demo users. Re-running against an existing
// database is a no-op because duplicate emails are rejected.
func seedAccounts(ctx context.Context, authSvc *auth.Service, zapLogger *zap.Logger) {
	demo := []struct {
		name  string
		email string
		role  auth.Role
	}{
		{"Panadería Pepe", "pan@eco.com", auth.RoleDonor},
		{"Juan Voluntario", "juan@eco.com", auth.RoleVolunteer},
		{"Pedro Cliente", "pedro@eco.com", auth.RoleVolunteer},
	}

	for _, account := range demo {
		err := authSvc.Register(ctx, account.name, account.email, "123", account.role)
		switch {
		case errors.Is(err, auth.ErrEmailTaken):
			zapLogger.Info("demo account already exists", zap.String("email", account.email))
		case err != nil:
			zapLogger.Warn("failed to seed demo account", zap.String("email", account.email), zap.Error(err))
		default:
			zapLogger.Info("seeded demo account", zap.String("email", account.email))
		}
	}
}

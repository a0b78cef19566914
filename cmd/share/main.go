package main

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"share-service/internal/MinIO"
	"share-service/internal/config"
	"share-service/internal/events"
	"share-service/internal/handler"
	"share-service/internal/handler/authHandler"
	"share-service/internal/handler/fileHandler"
	"share-service/internal/handler/shareHandler"
	"share-service/internal/repository/auditRepo"
	"share-service/internal/repository/fileRepo"
	"share-service/internal/repository/grantCache"
	"share-service/internal/repository/grantRepo"
	"share-service/internal/repository/userRepo"
	"share-service/internal/service/accessService"
	"share-service/internal/service/auditService"
	"share-service/internal/service/authService"
	"share-service/internal/service/fileService"
	"share-service/internal/service/shareService"
	"share-service/pkg/database/postgres"
	"share-service/pkg/database/redis"
	"share-service/pkg/logger"
)

func main() {
	ctx := context.Background()
	ctx, err := logger.New(ctx)
	if err != nil {
		panic(err)
	}
	log := logger.GetLogger(ctx)

	cfg, err := config.Load()
	if err != nil {
		log.Fatal("Error loading config", zap.Error(err))
	}

	pool, err := postgres.New(ctx, cfg.Postgres)
	if err != nil {
		log.Fatal("Error connecting to postgres", zap.Error(err))
	}
	defer pool.Close()

	if err := postgres.InitSchema(ctx, pool); err != nil {
		log.Fatal("Error creating schema", zap.Error(err))
	}

	storage, err := MinIO.New(ctx, cfg.MinIO)
	if err != nil {
		log.Fatal("Error connecting to minio", zap.Error(err))
	}

	cache := grantCache.New(redis.New(cfg.Redis))

	var side auditService.SidePublisher
	publisher, err := events.Connect(cfg.NATS)
	if err != nil {
		// The durable audit trail lives in postgres; losing the side-channel
		// is survivable.
		log.Warn("audit side-channel unavailable", zap.Error(err))
	} else {
		side = publisher
		defer publisher.Close()
	}

	users := userRepo.New(pool)
	files := fileRepo.New(pool)
	grants := grantRepo.New(pool)
	audits := auditRepo.New(pool)

	audit := auditService.New(audits, side, log.Zap())
	defer audit.Close()

	auth := authService.New(users, cfg.JWTSecret, log.Zap())
	access := accessService.New(files, grants, cache, log.Zap())
	fileSvc := fileService.New(files, grants, storage, access, cache, audit, log.Zap())
	shareSvc := shareService.New(files, users, grants, cache, audit, log.Zap())

	go runGrantSweeper(ctx, grants, cfg.SweepInterval, log)

	router := handler.NewRouter(
		authHandler.New(auth),
		fileHandler.New(fileSvc, audit),
		shareHandler.New(shareSvc, fileSvc),
		auth,
	)

	log.Info("share service listening", zap.String("port", cfg.HTTPPort))
	if err := router.Run(fmt.Sprintf(":%s", cfg.HTTPPort)); err != nil {
		log.Fatal("Failed to serve", zap.Error(err))
	}
}

// runGrantSweeper periodically reclaims expired grant rows. Space
// reclamation only: validity is enforced by the read paths.
func runGrantSweeper(ctx context.Context, grants *grantRepo.GrantRepo, interval time.Duration, log *logger.Logger) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			reaped, err := grants.SweepExpired(ctx)
			if err != nil {
				log.Warn("expired grant sweep failed", zap.Error(err))
				continue
			}
			if reaped > 0 {
				log.Info("reclaimed expired grants", zap.Int64("count", reaped))
			}
		}
	}
}

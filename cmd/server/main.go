package main

import (
	"context"
	"log"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"

	"github.com/sally802528/grade-query-education-system/internal/auth"
	"github.com/sally802528/grade-query-education-system/internal/config"
	"github.com/sally802528/grade-query-education-system/internal/crypto"
	"github.com/sally802528/grade-query-education-system/internal/db"
	identitygrpc "github.com/sally802528/grade-query-education-system/internal/grpc"
	internalhttp "github.com/sally802528/grade-query-education-system/internal/http"
	"github.com/sally802528/grade-query-education-system/internal/model"
	"github.com/sally802528/grade-query-education-system/internal/repository"
	"github.com/sally802528/grade-query-education-system/internal/storage"
	"github.com/sally802528/grade-query-education-system/internal/throttle"
)

const (
	seedTeacherID   = "T999"
	seedTeacherName = "系統管理員"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config load failed: %v", err)
	}
	if err := cfg.Validate(); err != nil {
		log.Fatalf("invalid config: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	pool, err := db.NewPool(ctx, cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("db connection failed: %v", err)
	}
	defer pool.Close()

	if err := db.EnsureSchema(ctx, pool); err != nil {
		log.Fatalf("schema init failed: %v", err)
	}

	store := repository.NewStore(pool)
	if err := seedTeacher(ctx, store, cfg.SeedTeacherPassword); err != nil {
		log.Fatalf("seed teacher failed: %v", err)
	}

	var redisClient *redis.Client
	if cfg.RedisAddr != "" {
		redisClient = redis.NewClient(&redis.Options{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
		})
		pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
		if err := redisClient.Ping(pingCtx).Err(); err != nil {
			cancel()
			log.Fatalf("redis ping failed: %v", err)
		}
		cancel()
		defer func() {
			if err := redisClient.Close(); err != nil {
				log.Printf("redis close error: %v", err)
			}
		}()
	}

	files, err := openStorage(ctx, cfg)
	if err != nil {
		log.Fatalf("storage init failed: %v", err)
	}

	limiter := throttle.New(redisClient, cfg.LoginMaxAttempts, cfg.LoginLockout)
	guard := auth.NewGuard(auth.NewVerifier(cfg.JWTSecret, cfg.JWTIssuer))
	server := internalhttp.NewServer(cfg, guard, store, files, limiter)
	httpServer := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           server.Router(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	grpcServer := grpc.NewServer(grpc.UnaryInterceptor(identitygrpc.NewAuthUnaryInterceptor(guard)))
	identitygrpc.RegisterIdentityServer(grpcServer, identitygrpc.NewIdentityServer(store))
	healthpb.RegisterHealthServer(grpcServer, health.NewServer())

	go func() {
		log.Printf("classroom http listening on %s", cfg.HTTPAddr)
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("http server error: %v", err)
		}
	}()

	if cfg.GRPCAddr != "" {
		go func() {
			listener, err := net.Listen("tcp", cfg.GRPCAddr)
			if err != nil {
				log.Fatalf("grpc listen error: %v", err)
			}
			log.Printf("classroom grpc listening on %s", cfg.GRPCAddr)
			if err := grpcServer.Serve(listener); err != nil {
				log.Fatalf("grpc server error: %v", err)
			}
		}()
	}

	<-ctx.Done()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		log.Printf("shutdown error: %v", err)
	}
	grpcServer.GracefulStop()
}

func openStorage(ctx context.Context, cfg config.Config) (storage.Storage, error) {
	if cfg.StorageBackend == "s3" {
		s3Store, err := storage.NewS3(ctx, storage.S3Options{
			Bucket:          cfg.S3Bucket,
			Region:          cfg.S3Region,
			Endpoint:        cfg.S3Endpoint,
			AccessKeyID:     cfg.S3AccessKeyID,
			SecretAccessKey: cfg.S3SecretAccessKey,
		})
		if err != nil {
			return nil, err
		}
		return s3Store, nil
	}
	local, err := storage.NewLocal(cfg.StorageDir)
	if err != nil {
		return nil, err
	}
	return local, nil
}

// seedTeacher creates the bootstrap teacher account on an empty database.
func seedTeacher(ctx context.Context, store *repository.Store, password string) error {
	if password == "" {
		return nil
	}
	count, err := store.CountUsers(ctx)
	if err != nil {
		return err
	}
	if count > 0 {
		return nil
	}
	hash, err := crypto.HashPassword(password)
	if err != nil {
		return err
	}
	now := time.Now().UTC()
	err = store.CreateUser(ctx, model.User{
		UserID:       seedTeacherID,
		PasswordHash: hash,
		Role:         model.RoleTeacher,
		Name:         seedTeacherName,
		CreatedAt:    now,
		UpdatedAt:    now,
	})
	if err != nil {
		return err
	}
	log.Printf("seeded teacher account %s", seedTeacherID)
	return nil
}

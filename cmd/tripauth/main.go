package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-contrib/gzip"
	"github.com/gin-gonic/gin"
	"github.com/spf13/cobra"
	"github.com/xxxsen/common/logger"
	"github.com/xxxsen/common/logutil"
	"github.com/xxxsen/common/webapi"
	"go.uber.org/zap"

	"github.com/xxxsen/tripauth/internal/alert"
	"github.com/xxxsen/tripauth/internal/config"
	"github.com/xxxsen/tripauth/internal/db"
	"github.com/xxxsen/tripauth/internal/handler"
	"github.com/xxxsen/tripauth/internal/job"
	"github.com/xxxsen/tripauth/internal/mailer"
	"github.com/xxxsen/tripauth/internal/middleware"
	"github.com/xxxsen/tripauth/internal/repo"
	"github.com/xxxsen/tripauth/internal/schedule"
	"github.com/xxxsen/tripauth/internal/service"
)

const shutdownTimeout = 10 * time.Second

func main() {
	var configPath string

	rootCmd := &cobra.Command{
		Use:   "tripauth",
		Short: "trip builder account and password recovery service",
	}
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "path to config.json")

	runCmd := &cobra.Command{
		Use:   "run",
		Short: "run the http server",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(configPath)
			if err != nil {
				return err
			}
			return runServer(cfg)
		},
	}

	migrateCmd := &cobra.Command{
		Use:   "migrate",
		Short: "apply database migrations and exit",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(configPath)
			if err != nil {
				return err
			}
			if err := requirePersistent(cfg, "migrate"); err != nil {
				return err
			}
			b, err := openBackend(cmd.Context(), cfg)
			if err != nil {
				return err
			}
			defer b.close()
			logutil.GetLogger(cmd.Context()).Info("migrations applied", zap.String("storage", cfg.Storage.Type))
			return nil
		},
	}

	purgeCmd := &cobra.Command{
		Use:   "purge",
		Short: "delete expired verification secrets once and exit",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(configPath)
			if err != nil {
				return err
			}
			if err := requirePersistent(cfg, "purge"); err != nil {
				return err
			}
			b, err := openBackend(cmd.Context(), cfg)
			if err != nil {
				return err
			}
			defer b.close()
			store := service.NewSecretStore(b.secrets, b.tx, cfg.Recovery.HashCost)
			return schedule.RunOnce(cmd.Context(), job.NewSecretPurgeJob(store, purgeRetention(cfg)))
		},
	}

	rootCmd.AddCommand(runCmd, migrateCmd, purgeCmd)

	if err := rootCmd.ExecuteContext(context.Background()); err != nil {
		logutil.GetLogger(context.Background()).Fatal("startup error", zap.Error(err))
	}
}

func requirePersistent(cfg *config.Config, command string) error {
	if cfg.Storage.Type == "memory" {
		return fmt.Errorf("%s needs persistent storage", command)
	}
	return nil
}

func loadConfig(path string) (*config.Config, error) {
	if path == "" {
		return nil, fmt.Errorf("--config is required")
	}
	cfg, err := config.Load(path)
	if err != nil {
		return nil, err
	}
	logger.Init(
		cfg.LogConfig.File,
		cfg.LogConfig.Level,
		int(cfg.LogConfig.FileCount),
		int(cfg.LogConfig.FileSize),
		int(cfg.LogConfig.KeepDays),
		cfg.LogConfig.Console,
	)
	logutil.GetLogger(context.Background()).Info("config loaded", zap.String("config", path))
	return cfg, nil
}

func purgeRetention(cfg *config.Config) time.Duration {
	return time.Duration(cfg.Purge.RetentionMinutes) * time.Minute
}

type backend struct {
	users   service.UserRepo
	secrets service.SecretRepo
	tx      service.TxManager
	close   func() error
}

func openBackend(ctx context.Context, cfg *config.Config) (*backend, error) {
	if cfg.Storage.Type == "memory" {
		mem := repo.NewMemoryDB()
		return &backend{
			users:   mem.Users(),
			secrets: mem.Secrets(),
			tx:      mem,
			close:   func() error { return nil },
		}, nil
	}
	conn, err := db.Open(cfg.Database)
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}
	if err := db.ApplyMigrations(ctx, conn); err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("migrations: %w", err)
	}
	return &backend{
		users:   repo.NewUserRepo(conn),
		secrets: repo.NewVerificationSecretRepo(conn),
		tx:      repo.NewTxManager(conn),
		close:   conn.Close,
	}, nil
}

func runServer(cfg *config.Config) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	log := logutil.GetLogger(ctx)
	log.Info("starting server",
		zap.Int("port", cfg.Port),
		zap.String("storage", cfg.Storage.Type),
		zap.String("mail", cfg.Mail.Type),
		zap.String("alert", cfg.Alert.Type),
	)

	b, err := openBackend(ctx, cfg)
	if err != nil {
		return err
	}
	defer b.close()

	mail, err := mailer.New(cfg.Mail)
	if err != nil {
		return fmt.Errorf("init mailer: %w", err)
	}
	alerts, err := alert.New(cfg.Alert)
	if err != nil {
		return fmt.Errorf("init alerts: %w", err)
	}
	defer alerts.Close()

	secrets := service.NewSecretStore(b.secrets, b.tx, cfg.Recovery.HashCost)
	recoveryService := service.NewRecoveryService(b.users, secrets, b.tx, mail, alerts, service.RecoveryOptions{
		OTPExpireMinutes:        cfg.Recovery.OTPExpireMinutes,
		ResetTokenExpireMinutes: cfg.Recovery.ResetTokenExpireMinutes,
		HashCost:                cfg.Recovery.HashCost,
		PasswordPolicy:          cfg.Recovery.PasswordPolicy,
		ProductName:             cfg.Mail.ProductName,
	})
	authService := service.NewAuthService(b.users, cfg.Recovery.PasswordPolicy, cfg.Recovery.HashCost)

	scheduler := schedule.NewCronScheduler()
	if !cfg.Purge.Disabled {
		if err := scheduler.AddJob(job.NewSecretPurgeJob(secrets, purgeRetention(cfg)), cfg.Purge.Spec); err != nil {
			return fmt.Errorf("schedule purge: %w", err)
		}
	}
	scheduler.Start(ctx)
	defer scheduler.Stop()

	deps := handler.RouterDeps{
		Auth:     handler.NewAuthHandler(authService),
		Recovery: handler.NewRecoveryHandler(recoveryService),
	}
	addr := fmt.Sprintf("0.0.0.0:%d", cfg.Port)
	engine, err := webapi.NewEngine(
		"/api/v1",
		addr,
		webapi.WithRegister(func(group *gin.RouterGroup) {
			handler.RegisterRoutes(group, deps)
		}),
		webapi.WithExtraMiddlewares(
			middleware.RequestID(),
			middleware.CORS(cfg.CORSAllowlist),
			gzip.Gzip(gzip.DefaultCompression),
		),
	)
	if err != nil {
		return fmt.Errorf("init web engine: %w", err)
	}

	srv := &http.Server{Addr: addr, Handler: engine, ReadHeaderTimeout: 10 * time.Second}
	errCh := make(chan error, 1)
	go func() {
		log.Info("http server listening", zap.String("addr", addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("serve: %w", err)
		}
	case <-ctx.Done():
	}
	log.Info("server stopping...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}

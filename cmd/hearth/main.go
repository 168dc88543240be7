package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/samber/do"
	"github.com/urfave/cli/v2"
	"golang.org/x/sync/errgroup"

	"github.com/dukerupert/hearth/internal/auth"
	"github.com/dukerupert/hearth/internal/background"
	"github.com/dukerupert/hearth/internal/config"
	"github.com/dukerupert/hearth/internal/database"
	"github.com/dukerupert/hearth/internal/logging"
	"github.com/dukerupert/hearth/internal/scheduler"
	"github.com/dukerupert/hearth/internal/server"
	"github.com/dukerupert/hearth/internal/tracing"
)

var version = "dev"

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatal(err)
	}

	app := &cli.App{
		Name:    "hearth",
		Usage:   "household chores, points and late penalties",
		Version: version,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:  "db",
				Value: cfg.DBPath,
				Usage: "SQLite database path",
			},
		},
		Before: func(c *cli.Context) error {
			cfg.DBPath = c.String("db")
			return nil
		},
		Commands: []*cli.Command{
			commandServe(&cfg),
			commandMigrate(&cfg),
			commandToken(&cfg),
		},
	}

	if err := app.Run(os.Args); err != nil {
		log.Fatal(err)
	}
}

func commandServe(cfg *config.Config) *cli.Command {
	return &cli.Command{
		Name:  "serve",
		Usage: "start the API server",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:  "addr",
				Value: cfg.Addr,
				Usage: "serve address",
			},
		},
		Action: func(c *cli.Context) error {
			cfg.Addr = c.String("addr")
			if err := cfg.Validate(); err != nil {
				return fmt.Errorf("invalid configuration: %w", err)
			}
			return serve(*cfg)
		},
	}
}

func serve(cfg config.Config) error {
	logger := logging.Setup(cfg.LogLevel, cfg.LogFormat)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	shutdownTracing, err := tracing.Init(ctx, tracing.Config{
		Enabled:     cfg.OTelEnabled,
		ServiceName: "hearth",
		Version:     version,
		Endpoint:    cfg.OTelEndpoint,
		Insecure:    cfg.OTelInsecure,
		SampleRatio: cfg.OTelSampleRatio,
	}, logger.With("component", "tracing"))
	if err != nil {
		return fmt.Errorf("init tracing: %w", err)
	}

	container := NewContainer(cfg, logger)

	db, err := do.Invoke[*sql.DB](container)
	if err != nil {
		return fmt.Errorf("open database: %w", err)
	}
	srv, err := do.Invoke[*server.Server](container)
	if err != nil {
		return err
	}
	sched := do.MustInvoke[*scheduler.Scheduler](container)
	runner := do.MustInvoke[*background.Runner](container)

	if err := sched.Start(ctx, cfg.OverdueSweepSpec); err != nil {
		return fmt.Errorf("start scheduler: %w", err)
	}

	httpServer := srv.HTTPServer(cfg.Addr)

	errWg, errCtx := errgroup.WithContext(ctx)

	errWg.Go(func() error {
		logger.Info("hearth listening", "addr", cfg.Addr, "version", version)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})

	errWg.Go(func() error {
		<-errCtx.Done()
		logger.Info("shutting down")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
		defer cancel()

		var errs []error
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			errs = append(errs, fmt.Errorf("http shutdown: %w", err))
		}
		sched.Stop()
		if err := runner.Close(shutdownCtx); err != nil {
			errs = append(errs, fmt.Errorf("drain background tasks: %w", err))
		}
		if err := shutdownTracing(shutdownCtx); err != nil {
			errs = append(errs, fmt.Errorf("tracing shutdown: %w", err))
		}
		if cfg.RedisURL != "" {
			if client, err := do.Invoke[redis.UniversalClient](container); err == nil {
				client.Close()
			}
		}
		if err := db.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close database: %w", err))
		}
		return errors.Join(errs...)
	})

	return errWg.Wait()
}

func commandMigrate(cfg *config.Config) *cli.Command {
	return &cli.Command{
		Name:  "migrate",
		Usage: "apply database migrations and print the schema version",
		Action: func(c *cli.Context) error {
			db, err := database.Open(cfg.DBPath)
			if err != nil {
				return err
			}
			defer db.Close()

			v, err := database.Version(db)
			if err != nil {
				return err
			}
			fmt.Fprintf(c.App.Writer, "%s: schema version %d\n", cfg.DBPath, v)
			return nil
		},
	}
}

func commandToken(cfg *config.Config) *cli.Command {
	return &cli.Command{
		Name:  "token",
		Usage: "mint a development bearer token",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:     "user",
				Usage:    "user UUID (token subject)",
				Required: true,
			},
			&cli.StringFlag{
				Name:  "email",
				Usage: "email claim",
			},
			&cli.DurationFlag{
				Name:  "ttl",
				Value: 24 * time.Hour,
				Usage: "token lifetime",
			},
		},
		Action: func(c *cli.Context) error {
			if cfg.JWTSecret == "" {
				return errors.New("HEARTH_JWT_SECRET is required")
			}
			userID, err := uuid.Parse(c.String("user"))
			if err != nil {
				return fmt.Errorf("invalid --user: %w", err)
			}
			tok, err := auth.NewVerifier(cfg.JWTSecret, cfg.JWTAudience, cfg.JWTIssuer).Issue(userID, c.String("email"), c.Duration("ttl"))
			if err != nil {
				return err
			}
			fmt.Fprintln(c.App.Writer, tok)
			return nil
		},
	}
}

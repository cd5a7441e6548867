package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/urfave/cli/v3"
	"go.uber.org/zap"

	"github.com/Shreyansh0843/rfp-system/db"
	"github.com/Shreyansh0843/rfp-system/db/migrations"
	"github.com/Shreyansh0843/rfp-system/internal/config"
	"github.com/Shreyansh0843/rfp-system/internal/logger"
	"github.com/Shreyansh0843/rfp-system/internal/notify"
)

func main() {
	args := os.Args
	if len(args) == 1 {
		args = append(args, "--help")
	}

	root := &cli.Command{
		Name:  "rfpctl",
		Usage: "RFP management operator tool",
		Commands: []*cli.Command{
			migrateCommand(),
			seedCommand(),
			deadLettersCommand(),
		},
	}

	if err := root.Run(context.Background(), args); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// env конфигурация и логгер, общие для всех команд
type env struct {
	cfg *config.Config
	log *zap.Logger
}

func loadEnv() (*env, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}
	log, err := logger.New(cfg.Log)
	if err != nil {
		return nil, err
	}
	return &env{cfg: cfg, log: log}, nil
}

func withDB(ctx context.Context, fn func(e *env, conn *sqlx.DB) error) error {
	e, err := loadEnv()
	if err != nil {
		return err
	}
	defer func() { _ = e.log.Sync() }()

	conn, err := db.Connect(ctx, e.cfg.Database)
	if err != nil {
		return err
	}
	defer conn.Close()
	return fn(e, conn)
}

func migrateCommand() *cli.Command {
	return &cli.Command{
		Name:  "migrate",
		Usage: "Manage database schema",
		Commands: []*cli.Command{
			{
				Name:  "up",
				Usage: "Apply all pending migrations",
				Action: func(ctx context.Context, c *cli.Command) error {
					return withDB(ctx, func(e *env, conn *sqlx.DB) error {
						return migrations.Run(ctx, conn.DB, e.log)
					})
				},
			},
			{
				Name:  "down",
				Usage: "Roll back the latest migration",
				Action: func(ctx context.Context, c *cli.Command) error {
					return withDB(ctx, func(e *env, conn *sqlx.DB) error {
						return migrations.Down(ctx, conn.DB, e.log)
					})
				},
			},
			{
				Name:  "status",
				Usage: "Print applied and pending migrations",
				Action: func(ctx context.Context, c *cli.Command) error {
					return withDB(ctx, func(e *env, conn *sqlx.DB) error {
						return migrations.Status(ctx, conn.DB, e.log)
					})
				},
			},
		},
	}
}

func seedCommand() *cli.Command {
	return &cli.Command{
		Name:  "seed",
		Usage: "Insert demo vendors, RFPs and proposals",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "file", Usage: "YAML file to load instead of the built-in demo data"},
			&cli.BoolFlag{Name: "migrate", Value: true, Usage: "apply migrations before seeding"},
		},
		Action: func(ctx context.Context, c *cli.Command) error {
			raw := seedYAML
			if path := c.String("file"); path != "" {
				b, err := os.ReadFile(path)
				if err != nil {
					return err
				}
				raw = b
			}
			data, err := parseSeed(raw)
			if err != nil {
				return err
			}

			return withDB(ctx, func(e *env, conn *sqlx.DB) error {
				if c.Bool("migrate") {
					if err := migrations.Run(ctx, conn.DB, e.log); err != nil {
						return err
					}
				}
				report, err := runSeed(ctx, db.NewStorage(conn), data, time.Now(), e.log)
				if err != nil {
					return err
				}
				fmt.Printf("Seeded: %d vendors, %d RFPs, %d proposals (%d skipped)\n",
					report.Vendors, report.RFPs, report.Proposals, report.Skipped)
				return nil
			})
		},
	}
}

func deadLettersCommand() *cli.Command {
	return &cli.Command{
		Name:  "deadletters",
		Usage: "Inspect notifications that could not be delivered",
		Commands: []*cli.Command{
			{
				Name:  "list",
				Usage: "Print failed notifications as JSON lines",
				Flags: []cli.Flag{
					&cli.IntFlag{Name: "limit", Value: 50},
				},
				Action: func(ctx context.Context, c *cli.Command) error {
					return withDeadLetters(ctx, func(dl *notify.RedisDeadLetter) error {
						failures, err := dl.List(ctx, int64(c.Int("limit")))
						if err != nil {
							return err
						}
						enc := json.NewEncoder(os.Stdout)
						for _, f := range failures {
							if err := enc.Encode(f); err != nil {
								return err
							}
						}
						return nil
					})
				},
			},
			{
				Name:  "purge",
				Usage: "Remove all failed notifications",
				Action: func(ctx context.Context, c *cli.Command) error {
					return withDeadLetters(ctx, func(dl *notify.RedisDeadLetter) error {
						return dl.Purge(ctx)
					})
				},
			},
		},
	}
}

func withDeadLetters(ctx context.Context, fn func(dl *notify.RedisDeadLetter) error) error {
	e, err := loadEnv()
	if err != nil {
		return err
	}
	client, err := db.ConnectRedis(ctx, e.cfg.Redis)
	if err != nil {
		return err
	}
	if client == nil {
		return fmt.Errorf("redis is not configured (REDIS_ADDR)")
	}
	defer client.Close()
	return fn(notify.NewRedisDeadLetter(client, e.cfg.Redis.DeadLetterKey))
}

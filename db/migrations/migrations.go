package migrations

import (
	"context"
	"database/sql"
	"embed"
	"fmt"

	"github.com/pressly/goose/v3"
	"go.uber.org/zap"
)

//go:embed sql/*.sql
var embedded embed.FS

const dir = "sql"

// gooseLogger пишет вывод goose в zap
type gooseLogger struct {
	log *zap.SugaredLogger
}

func (l gooseLogger) Printf(format string, v ...any) { l.log.Infof(format, v...) }
func (l gooseLogger) Fatalf(format string, v ...any) { l.log.Fatalf(format, v...) }

func setup(log *zap.Logger) error {
	goose.SetBaseFS(embedded)
	goose.SetLogger(gooseLogger{log: log.Named("migrations").Sugar()})
	if err := goose.SetDialect("postgres"); err != nil {
		return fmt.Errorf("failed to set dialect: %w", err)
	}
	return nil
}

// Run применяет все миграции, вшитые в бинарник
func Run(ctx context.Context, db *sql.DB, log *zap.Logger) error {
	if err := setup(log); err != nil {
		return err
	}
	if err := goose.UpContext(ctx, db, dir); err != nil {
		return fmt.Errorf("failed to run migrations: %w", err)
	}
	return nil
}

// Down откатывает последнюю миграцию
func Down(ctx context.Context, db *sql.DB, log *zap.Logger) error {
	if err := setup(log); err != nil {
		return err
	}
	if err := goose.DownContext(ctx, db, dir); err != nil {
		return fmt.Errorf("failed to roll back migration: %w", err)
	}
	return nil
}

func Status(ctx context.Context, db *sql.DB, log *zap.Logger) error {
	if err := setup(log); err != nil {
		return err
	}
	return goose.StatusContext(ctx, db, dir)
}

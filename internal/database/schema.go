package database

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"gatehouse/internal/config"
	"gatehouse/internal/middleware"

	"gorm.io/gorm"
)

// DB_SCHEMA_MODE values.
const (
	SchemaModeHybrid = "hybrid"
	SchemaModeSQL    = "sql"
	SchemaModeAuto   = "auto"
)

// IsProdLikeEnv reports whether env names a production or staging deployment.
func IsProdLikeEnv(env string) bool {
	switch strings.ToLower(strings.TrimSpace(env)) {
	case "production", "prod", "staging", "stage":
		return true
	}
	return false
}

// SchemaPlan is what ApplySchema will do for one configuration.
//
// The embedded SQL files target Postgres, so SQLite always AutoMigrates.
// On Postgres, hybrid runs the SQL files and also AutoMigrates outside
// production; auto is refused in production.
type SchemaPlan struct {
	Mode    string
	Env     string
	Driver  string
	RunSQL  bool
	RunAuto bool
}

// PlanSchema resolves cfg into a SchemaPlan.
func PlanSchema(cfg *config.Config) (SchemaPlan, error) {
	plan := SchemaPlan{
		Mode:   strings.ToLower(strings.TrimSpace(cfg.DBSchemaMode)),
		Env:    cfg.Env,
		Driver: driverName(cfg),
	}
	if plan.Mode == "" {
		plan.Mode = SchemaModeHybrid
	}
	prodLike := IsProdLikeEnv(cfg.Env)

	if plan.Driver == DriverSQLite {
		if plan.Mode == SchemaModeSQL {
			return plan, fmt.Errorf("DB_SCHEMA_MODE=sql requires the postgres driver")
		}
		plan.RunAuto = true
		return plan, nil
	}

	switch plan.Mode {
	case SchemaModeSQL:
		plan.RunSQL = true
	case SchemaModeAuto:
		if prodLike {
			return plan, fmt.Errorf("refusing DB_SCHEMA_MODE=auto in %q; use sql or hybrid", cfg.Env)
		}
		plan.RunAuto = true
	case SchemaModeHybrid:
		plan.RunSQL, plan.RunAuto = true, !prodLike
	default:
		return plan, fmt.Errorf("unsupported DB_SCHEMA_MODE %q", plan.Mode)
	}
	return plan, nil
}

// ApplySchema runs the migrations the plan for cfg selects.
func ApplySchema(ctx context.Context, db *gorm.DB, cfg *config.Config) error {
	plan, err := PlanSchema(cfg)
	if err != nil {
		return err
	}
	if plan.RunSQL {
		if err := RunMigrations(ctx, db); err != nil {
			return fmt.Errorf("sql migrations: %w", err)
		}
	}
	if plan.RunAuto {
		middleware.Logger.Info("auto-migrating visitor schema",
			slog.String("mode", plan.Mode),
			slog.String("env", plan.Env),
			slog.String("driver", plan.Driver),
		)
		if err := db.WithContext(ctx).AutoMigrate(PersistentModels()...); err != nil {
			return fmt.Errorf("auto-migrate: %w", err)
		}
	}
	return nil
}

// SchemaStatus is a SchemaPlan plus the migration state when SQL runs.
type SchemaStatus struct {
	SchemaPlan
	AppliedVersions   []int
	PendingMigrations []Migration
}

// GetSchemaStatus reports the plan for cfg and, when SQL migrations run,
// which versions are applied and pending.
func GetSchemaStatus(ctx context.Context, db *gorm.DB, cfg *config.Config) (*SchemaStatus, error) {
	plan, err := PlanSchema(cfg)
	if err != nil {
		return nil, err
	}
	status := &SchemaStatus{SchemaPlan: plan}
	if !plan.RunSQL {
		return status, nil
	}

	m, err := NewMigrator(db)
	if err != nil {
		return nil, err
	}
	if status.AppliedVersions, err = m.Applied(ctx); err != nil {
		return nil, err
	}
	if status.PendingMigrations, err = m.Pending(ctx); err != nil {
		return nil, err
	}
	return status, nil
}

// Package bootstrap wires the database and Redis for the command-line tools.
package bootstrap

import (
	"context"
	"errors"
	"fmt"
	"log"

	"gatehouse/internal/cache"
	"gatehouse/internal/config"
	"gatehouse/internal/database"
	"gatehouse/internal/models"
	"gatehouse/internal/seed"

	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"
)

// Options control runtime initialization behavior.
type Options struct {
	// FixturePath seeds the societies of a YAML fixture once connected.
	FixturePath string
	// RequireRedis fails instead of continuing without a cache.
	RequireRedis bool
}

// ErrProductionFixture is returned when fixture seeding is requested in a
// production-like environment.
var ErrProductionFixture = errors.New("refusing to seed a fixture in a production environment")

// InitRuntime connects to DB and Redis and optionally seeds a fixture.
func InitRuntime(ctx context.Context, cfg *config.Config, opts Options) (*gorm.DB, *redis.Client, error) {
	db, err := database.Connect(cfg)
	if err != nil {
		return nil, nil, fmt.Errorf("database connection failed: %w", err)
	}

	// Init Redis (may result in nil client if unreachable)
	cache.InitRedis(cfg.RedisURL)
	r := cache.GetClient()
	if r == nil && opts.RequireRedis {
		return nil, nil, fmt.Errorf("redis at %q is unreachable", cfg.RedisURL)
	}

	if opts.FixturePath != "" {
		if err := SeedFixture(ctx, cfg, db, opts.FixturePath); err != nil {
			return nil, nil, err
		}
	}

	return db, r, nil
}

// SeedFixture applies a fixture unless one of its societies already has
// users, so repeated starts do not duplicate people.
func SeedFixture(ctx context.Context, cfg *config.Config, db *gorm.DB, path string) error {
	if database.IsProdLikeEnv(cfg.Env) {
		return ErrProductionFixture
	}
	fx, err := seed.LoadFixture(path)
	if err != nil {
		return err
	}

	names := make([]string, 0, len(fx.Societies))
	for _, s := range fx.Societies {
		names = append(names, s.Name)
	}
	var existing int64
	if err := db.WithContext(ctx).Model(&models.User{}).Where("society_name IN ?", names).Count(&existing).Error; err != nil {
		return fmt.Errorf("check fixture societies: %w", err)
	}
	if existing > 0 {
		log.Printf("fixture %s already applied (%d users present), skipping", path, existing)
		return nil
	}

	sum, err := seed.NewSeeder(db, seed.DefaultOptions).ApplyFixture(ctx, fx)
	if err != nil {
		return fmt.Errorf("apply fixture: %w", err)
	}
	log.Printf("fixture %s applied: %s", path, sum)
	return nil
}

// Command seed fills the database with demo societies and visits.
package main

import (
	"context"
	"flag"
	"log"

	"gatehouse/internal/bootstrap"
	"gatehouse/internal/config"
	"gatehouse/internal/database"
	"gatehouse/internal/seed"
)

func main() {
	opts := seed.DefaultOptions
	fixture := flag.String("fixture", "", "YAML fixture describing societies (random societies when empty)")
	flag.IntVar(&opts.Societies, "societies", opts.Societies, "Number of random societies")
	flag.IntVar(&opts.FlatsPerSociety, "flats", opts.FlatsPerSociety, "Flats per random society")
	flag.IntVar(&opts.GuardsPerSociety, "guards", opts.GuardsPerSociety, "Guards per random society")
	flag.IntVar(&opts.VisitorsPerFlat, "visitors", opts.VisitorsPerFlat, "Visits per flat")
	flag.IntVar(&opts.MaxDays, "days", opts.MaxDays, "Spread visits over this many past days")
	flag.Int64Var(&opts.RandSeed, "rand-seed", 0, "Fixed random seed for reproducible data")
	flag.BoolVar(&opts.DryRun, "dry-run", false, "Build everything but write nothing")
	shouldClean := flag.Bool("clean", false, "Delete all engine rows before seeding")
	flag.Parse()

	log.Println("🌱 Database Seeder")
	log.Println("==================")

	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}
	if database.IsProdLikeEnv(cfg.Env) {
		log.Fatalf("❌ Refusing to seed in %s", cfg.Env)
	}

	ctx := context.Background()
	db, _, err := bootstrap.InitRuntime(ctx, cfg, bootstrap.Options{})
	if err != nil {
		log.Fatalf("Failed to initialize runtime: %v", err)
	}

	s := seed.NewSeeder(db, opts)
	if *shouldClean {
		if err := s.ClearAll(); err != nil {
			log.Fatalf("❌ Cleanup failed: %v", err)
		}
	}

	var sum seed.Summary
	if *fixture != "" {
		fx, err := seed.LoadFixture(*fixture)
		if err != nil {
			log.Fatalf("❌ %v", err)
		}
		sum, err = s.ApplyFixture(ctx, fx)
		if err != nil {
			log.Fatalf("❌ Fixture seeding failed: %v", err)
		}
	} else {
		sum, err = s.SeedRandom(ctx)
		if err != nil {
			log.Fatalf("❌ Seeding failed: %v", err)
		}
	}

	log.Printf("✨ All done! Created %s.", sum)
	log.Println("🔑 Mint a token for any user with: go run ./cmd/admin token <user-id>")
}

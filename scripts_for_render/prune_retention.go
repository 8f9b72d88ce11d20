// Retention sweep for the Render cron job: prunes telemetry older than
// RETENTION_DAYS for every child, including children that stopped sending.
package main

import (
	"GuardianAI/config"
	"GuardianAI/repositories/impl"
	"GuardianAI/services"
	"context"
	"log"
	"os"
	"time"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	db, err := config.OpenDatabase(cfg)
	if err != nil {
		log.Fatalf("Database initialization failed: %v", err)
	}

	childRepo := impl.NewChildRepository(db)
	appRepo := impl.NewAppRepository(db)
	identity := services.NewIdentityService(childRepo)
	telemetry := services.NewTelemetryService(identity,
		services.NewCatalogService(appRepo, nil),
		impl.NewScreenTimeRepository(db),
		impl.NewLocationRepository(db),
		impl.NewSiteAccessRepository(db),
		appRepo)
	telemetry.RetentionDays = cfg.RetentionDays

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Minute)
	defer cancel()

	children, err := childRepo.FindAll(ctx)
	if err != nil {
		log.Fatalf("Failed to load children: %v", err)
	}
	log.Printf("[Retention] sweeping %d children with a %d day window", len(children), cfg.RetentionDays)

	if _, err := telemetry.SweepRetention(ctx, children); err != nil {
		log.Printf("[Retention] sweep failed: %v", err)
		os.Exit(1)
	}
}

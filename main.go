package main

import (
	"GuardianAI/config"
	"GuardianAI/controllers"
	"GuardianAI/repositories/impl"
	"GuardianAI/routes"
	"GuardianAI/services"
	"GuardianAI/websocket"
	"context"
	"log"

	"github.com/gin-gonic/gin"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	// Initialize database and Firebase
	db, err := config.OpenDatabase(cfg)
	if err != nil {
		log.Fatalf("Database initialization failed: %v", err)
	}
	fcmClient, err := config.InitFirebase(context.Background(), cfg)
	if err != nil {
		log.Printf("[FCM] push alerts disabled: %v", err)
	}

	// Initialize repositories
	childRepo := impl.NewChildRepository(db)
	guardianRepo := impl.NewGuardianRepository(db)
	appRepo := impl.NewAppRepository(db)
	screenTimeRepo := impl.NewScreenTimeRepository(db)
	locationRepo := impl.NewLocationRepository(db)
	siteAccessRepo := impl.NewSiteAccessRepository(db)

	// Initialize services
	hub := websocket.NewHub()
	identityService := services.NewIdentityService(childRepo)
	catalogService := services.NewCatalogService(appRepo, services.NewPlayStoreFetcher(cfg.CatalogBaseURL, cfg.CatalogTimeout))
	geocoder := services.NewGoogleGeocoder(cfg.GoogleMapsAPIKey, cfg.GeocodeBaseURL, cfg.GeocodeTimeout)

	telemetryService := services.NewTelemetryService(identityService, catalogService, screenTimeRepo, locationRepo, siteAccessRepo, appRepo)
	telemetryService.RetentionDays = cfg.RetentionDays
	if fcmClient != nil {
		notificationService := services.NewNotificationService(fcmClient, guardianRepo)
		telemetryService.Alerts = notificationService
		controllers.SetNotificationService(notificationService)
	}

	ingestService := services.NewIngestService(telemetryService, hub)
	aggregationService := services.NewAggregationService(identityService, screenTimeRepo, locationRepo, siteAccessRepo, appRepo, geocoder)
	aggregationService.DefaultDays = cfg.DashboardDays
	guardianService := services.NewGuardianService(identityService, guardianRepo)

	// Set services in controllers
	controllers.SetIngestService(ingestService)
	controllers.SetAggregationService(aggregationService)
	controllers.SetGuardianService(guardianService)
	controllers.SetWebSocketServer(websocket.NewServer(hub, ingestService, identityService, cfg.HandshakeTimeout))
	controllers.SetChannelCounter(hub)

	go hub.Run()

	gin.SetMode(cfg.GinMode)
	r := gin.Default()
	routes.RegisterRoutes(r, cfg.JWTSecret)

	log.Printf("Listening on :%s", cfg.Port)
	if err := r.Run(":" + cfg.Port); err != nil {
		log.Fatalf("Server stopped: %v", err)
	}
}

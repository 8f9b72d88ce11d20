package config

import (
	"GuardianAI/models"
	"context"
	"fmt"
	"log"
	"os"
	"strings"
	"time"

	firebase "firebase.google.com/go/v4"
	"firebase.google.com/go/v4/messaging"
	"github.com/caarlos0/env/v11"
	"github.com/google/uuid"
	"github.com/joho/godotenv"
	"google.golang.org/api/option"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

const (
	DriverPostgres = "postgres"
	DriverSQLite   = "sqlite"
)

// Config holds every setting read from the environment.
type Config struct {
	Port    string `env:"PORT" envDefault:"8000"`
	GinMode string `env:"GIN_MODE" envDefault:"debug"`

	DBDriver   string `env:"DB_DRIVER" envDefault:"postgres"`
	DBHost     string `env:"DB_HOST" envDefault:"localhost"`
	DBUser     string `env:"DB_USER" envDefault:"postgres"`
	DBPassword string `env:"DB_PASSWORD"`
	DBName     string `env:"DB_NAME" envDefault:"guardian"`
	DBPort     string `env:"DB_PORT" envDefault:"5432"`
	DBSSLMode  string `env:"DB_SSLMODE"`
	DBTimeZone string `env:"DB_TIMEZONE" envDefault:"UTC"`
	SQLitePath string `env:"SQLITE_PATH" envDefault:"guardian.db"`

	JWTSecret               string `env:"JWT_SECRET"`
	FirebaseCredentialsPath string `env:"FIREBASE_CREDENTIALS_PATH"`
	GoogleMapsAPIKey        string `env:"GOOGLE_MAPS_API_KEY"`

	CatalogBaseURL string        `env:"CATALOG_BASE_URL" envDefault:"https://play.google.com/store/apps/details"`
	CatalogTimeout time.Duration `env:"CATALOG_TIMEOUT" envDefault:"5s"`
	GeocodeBaseURL string        `env:"GEOCODE_BASE_URL" envDefault:"https://maps.googleapis.com/maps/api/geocode/json"`
	GeocodeTimeout time.Duration `env:"GEOCODE_TIMEOUT" envDefault:"5s"`

	RetentionDays    int           `env:"RETENTION_DAYS" envDefault:"365"`
	DashboardDays    int           `env:"DASHBOARD_DAYS" envDefault:"30"`
	HandshakeTimeout time.Duration `env:"HANDSHAKE_TIMEOUT" envDefault:"5s"`
}

// Load reads .env (if present) and parses the environment into a Config.
func Load() (Config, error) {
	if err := godotenv.Load(); err != nil {
		log.Println("Error loading .env file, using environment variables")
	}

	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return Config{}, fmt.Errorf("parse env: %w", err)
	}
	if cfg.RetentionDays <= 0 {
		return Config{}, fmt.Errorf("RETENTION_DAYS must be positive, got %d", cfg.RetentionDays)
	}
	if cfg.DashboardDays <= 0 {
		cfg.DashboardDays = 30
	}
	if cfg.DBSSLMode == "" {
		// Render-hosted databases only accept TLS
		if strings.Contains(cfg.DBHost, "render.com") {
			cfg.DBSSLMode = "require"
		} else {
			cfg.DBSSLMode = "disable"
		}
	}
	return cfg, nil
}

// InMemory is a private sqlite database per call, for local runs and tests.
func InMemory() Config {
	return Config{
		Port:             "8000",
		GinMode:          "test",
		DBDriver:         DriverSQLite,
		SQLitePath:       fmt.Sprintf("file:%s?mode=memory&cache=shared", uuid.NewString()),
		RetentionDays:    365,
		DashboardDays:    30,
		HandshakeTimeout: 5 * time.Second,
	}
}

// PostgresDSN builds the connection string for the postgres driver.
func (c Config) PostgresDSN() string {
	return fmt.Sprintf("host=%s user=%s password=%s dbname=%s port=%s sslmode=%s TimeZone=%s",
		c.DBHost, c.DBUser, c.DBPassword, c.DBName, c.DBPort, c.DBSSLMode, c.DBTimeZone)
}

// OpenDatabase connects with the configured driver and migrates every model.
func OpenDatabase(cfg Config) (*gorm.DB, error) {
	var dialector gorm.Dialector
	switch cfg.DBDriver {
	case DriverPostgres:
		log.Printf("Connecting to database: host=%s user=%s dbname=%s port=%s sslmode=%s",
			cfg.DBHost, cfg.DBUser, cfg.DBName, cfg.DBPort, cfg.DBSSLMode)
		dialector = postgres.Open(cfg.PostgresDSN())
	case DriverSQLite:
		log.Printf("Opening sqlite database at %s", cfg.SQLitePath)
		dialector = sqlite.Open(cfg.SQLitePath)
	default:
		return nil, fmt.Errorf("unsupported DB_DRIVER %q", cfg.DBDriver)
	}

	db, err := gorm.Open(dialector, &gorm.Config{
		Logger: logger.New(log.New(os.Stdout, "\r\n", log.LstdFlags), logger.Config{
			SlowThreshold:             200 * time.Millisecond,
			LogLevel:                  logger.Warn,
			IgnoreRecordNotFoundError: true,
		}),
		NowFunc: func() time.Time { return time.Now().UTC() },
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	if cfg.DBDriver == DriverSQLite {
		sqlDB, err := db.DB()
		if err != nil {
			return nil, err
		}
		// sqlite allows a single writer; in-memory databases also vanish per connection
		sqlDB.SetMaxOpenConns(1)
		if err := db.Exec("PRAGMA foreign_keys = ON").Error; err != nil {
			return nil, err
		}
	}

	if err := db.AutoMigrate(models.All()...); err != nil {
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}

	log.Println("Successfully connected to database!")
	return db, nil
}

// InitFirebase returns an FCM client, or nil when no credentials are configured.
func InitFirebase(ctx context.Context, cfg Config) (*messaging.Client, error) {
	if cfg.FirebaseCredentialsPath == "" {
		log.Println("[FCM] FIREBASE_CREDENTIALS_PATH not set, push alerts disabled")
		return nil, nil
	}

	opt := option.WithCredentialsFile(cfg.FirebaseCredentialsPath)
	app, err := firebase.NewApp(ctx, nil, opt)
	if err != nil {
		return nil, fmt.Errorf("error initializing Firebase app: %w", err)
	}

	client, err := app.Messaging(ctx)
	if err != nil {
		return nil, fmt.Errorf("error initializing FCM client: %w", err)
	}
	return client, nil
}

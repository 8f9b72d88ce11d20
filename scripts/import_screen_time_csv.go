// Imports legacy screen time exports into screen_times.
//
// The CSV header is child_hash,date,total_screen_time,app_wise_data where
// app_wise_data is the old {"<app>": {"<hour>": seconds}} JSON map. Rows are
// stored as-is; the dashboard reads the map for records without hour buckets.
// Days that already have a record are left untouched.
package main

import (
	"GuardianAI/config"
	"GuardianAI/models"
	"GuardianAI/repositories"
	"GuardianAI/repositories/impl"
	"GuardianAI/services"
	"context"
	"encoding/csv"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"gorm.io/datatypes"
	"gorm.io/gorm"
)

type importStats struct {
	Imported int
	Existing int
	Skipped  int
}

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	dir, err := os.Getwd()
	if err != nil {
		log.Fatalf("Failed to read working directory: %v", err)
	}
	csvPath := filepath.Join(dir, "screen_time.csv")
	if len(os.Args) > 1 {
		csvPath = os.Args[1]
	}

	file, err := os.Open(csvPath)
	if err != nil {
		// try the scripts directory
		csvPath = filepath.Join(dir, "scripts", "screen_time.csv")
		if file, err = os.Open(csvPath); err != nil {
			log.Fatalf("CSV file not found, pass its path as the first argument")
		}
	}
	defer file.Close()
	log.Printf("Importing %s", csvPath)

	db, err := config.OpenDatabase(cfg)
	if err != nil {
		log.Fatalf("Database initialization failed: %v", err)
	}

	stats, err := importScreenTime(context.Background(), file,
		impl.NewChildRepository(db),
		impl.NewScreenTimeRepository(db))
	if err != nil {
		log.Fatalf("Import failed: %v", err)
	}
	fmt.Printf("\nImport finished: %d imported, %d already present, %d skipped\n",
		stats.Imported, stats.Existing, stats.Skipped)
}

func importScreenTime(ctx context.Context, r io.Reader, children repositories.ChildRepository, screenTimes repositories.ScreenTimeRepository) (importStats, error) {
	reader := csv.NewReader(r)
	reader.LazyQuotes = true
	reader.FieldsPerRecord = -1
	reader.TrimLeadingSpace = true

	records, err := reader.ReadAll()
	if err != nil {
		return importStats{}, fmt.Errorf("read csv: %w", err)
	}

	var stats importStats
	resolved := make(map[string]models.Child)
	for i, row := range records {
		if i == 0 && len(row) > 0 && strings.EqualFold(strings.TrimSpace(row[0]), "child_hash") {
			continue
		}
		if len(row) < 4 {
			log.Printf("line %d: expected 4 columns, got %d", i+1, len(row))
			stats.Skipped++
			continue
		}

		childHash := strings.TrimSpace(row[0])
		child, ok := resolved[childHash]
		if !ok {
			child, err = children.FindByChildHash(ctx, childHash)
			if errors.Is(err, gorm.ErrRecordNotFound) {
				log.Printf("line %d: unknown child_hash %q", i+1, childHash)
				stats.Skipped++
				continue
			}
			if err != nil {
				return stats, err
			}
			resolved[childHash] = child
		}

		date, err := services.ParseDate(row[1])
		if err != nil {
			log.Printf("line %d: bad date %q", i+1, row[1])
			stats.Skipped++
			continue
		}
		total, err := strconv.ParseInt(strings.TrimSpace(row[2]), 10, 64)
		if err != nil || total < 0 {
			log.Printf("line %d: bad total_screen_time %q", i+1, row[2])
			stats.Skipped++
			continue
		}
		appWiseData := strings.TrimSpace(row[3])
		if !json.Valid([]byte(appWiseData)) {
			log.Printf("line %d: app_wise_data is not JSON", i+1)
			stats.Skipped++
			continue
		}

		if _, err := screenTimes.FindByDate(ctx, child.ID, date); err == nil {
			stats.Existing++
			continue
		} else if !errors.Is(err, gorm.ErrRecordNotFound) {
			return stats, err
		}

		record := models.ScreenTimeRecord{
			ChildID:         child.ID,
			Date:            date,
			TotalScreenTime: total,
			AppWiseData:     datatypes.JSON(appWiseData),
		}
		if err := screenTimes.Create(ctx, &record); err != nil {
			return stats, fmt.Errorf("line %d: %w", i+1, err)
		}
		stats.Imported++
	}
	return stats, nil
}

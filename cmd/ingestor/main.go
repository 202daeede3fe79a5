package main

import (
	"archive/zip"
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/samirrijal/murmur/internal/adapters/postgres"
	"github.com/samirrijal/murmur/internal/core/domain"
	"github.com/samirrijal/murmur/internal/core/usecases"
	"github.com/samirrijal/murmur/internal/pkg/config"
	"github.com/samirrijal/murmur/internal/pkg/geohash"
)

// Imports location pings exported from devices into the location log.
//
//	ingestor <file.csv|bundle.zip>...
//
// Each CSV needs user_id, lat and lon columns. timestamp (RFC 3339 or unix
// milliseconds) and id are optional. Rows that fail validation are skipped
// and counted; rows with an id already in the log are ignored.

const batchSize = 500

// batchSink is the part of the location log the importer writes to.
type batchSink interface {
	AppendBatch(ctx context.Context, pings []domain.LocationPing) error
}

// ---------------------------------------------------------------------------
// Main
// ---------------------------------------------------------------------------

func main() {
	if len(os.Args) < 2 {
		log.Fatal("usage: ingestor <file.csv|bundle.zip>...")
	}

	cfg, err := config.Load("murmur-ingestor")
	if err != nil {
		log.Fatalf("config: %v", err)
	}

	ctx := context.Background()

	db, err := postgres.New(ctx, cfg.Database.DSN())
	if err != nil {
		log.Fatalf("db: %v", err)
	}
	defer db.Close()

	repo := postgres.NewLocationRepo(db)
	log.Printf("Murmur ping ingestor: %d inputs, precision %d", len(os.Args)-1, cfg.Density.Precision)

	var wg sync.WaitGroup
	sem := make(chan struct{}, 4) // max 4 files in flight

	for _, path := range os.Args[1:] {
		wg.Add(1)
		go func(p string) {
			defer wg.Done()
			sem <- struct{}{}
			defer func() { <-sem }()

			if err := ingestPath(ctx, repo, p, cfg.Density.Precision); err != nil {
				log.Printf("ERROR [%s]: %v", p, err)
			}
		}(path)
	}

	wg.Wait()
	log.Println("ingestion complete")
}

// ---------------------------------------------------------------------------
// Per-input ingestion
// ---------------------------------------------------------------------------

func ingestPath(ctx context.Context, sink batchSink, path string, precision int) error {
	if strings.EqualFold(filepath.Ext(path), ".zip") {
		return ingestZip(ctx, sink, path, precision)
	}

	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()

	stats, err := importCSV(ctx, sink, f, precision)
	if err != nil {
		return err
	}
	log.Printf("[%s] pings: %d, skipped: %d", path, stats.imported, stats.skipped)
	return nil
}

func ingestZip(ctx context.Context, sink batchSink, path string, precision int) error {
	zr, err := zip.OpenReader(path)
	if err != nil {
		return fmt.Errorf("open zip: %w", err)
	}
	defer zr.Close()

	for _, f := range zr.File {
		if !strings.EqualFold(filepath.Ext(f.Name), ".csv") {
			continue
		}
		rc, err := f.Open()
		if err != nil {
			return fmt.Errorf("open %s: %w", f.Name, err)
		}
		stats, err := importCSV(ctx, sink, rc, precision)
		rc.Close()
		if err != nil {
			return fmt.Errorf("%s: %w", f.Name, err)
		}
		log.Printf("[%s/%s] pings: %d, skipped: %d", path, f.Name, stats.imported, stats.skipped)
	}
	return nil
}

// ---------------------------------------------------------------------------
// CSV rows
// ---------------------------------------------------------------------------

type importStats struct {
	imported int
	skipped  int
}

func importCSV(ctx context.Context, sink batchSink, r io.Reader, precision int) (importStats, error) {
	var stats importStats

	reader := csv.NewReader(r)
	reader.LazyQuotes = true
	reader.FieldsPerRecord = -1
	header, err := reader.Read()
	if err != nil {
		return stats, fmt.Errorf("read header: %w", err)
	}
	cols := indexColumns(header)
	for _, required := range []string{"user_id", "lat", "lon"} {
		if _, ok := cols[required]; !ok {
			return stats, fmt.Errorf("missing %s column", required)
		}
	}

	now := time.Now().UTC()
	batch := make([]domain.LocationPing, 0, batchSize)

	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			stats.skipped++
			continue
		}

		ping, err := parseRow(record, cols, precision, now)
		if err != nil {
			stats.skipped++
			continue
		}
		batch = append(batch, ping)

		if len(batch) >= batchSize {
			if err := sink.AppendBatch(ctx, batch); err != nil {
				return stats, err
			}
			stats.imported += len(batch)
			batch = batch[:0]
		}
	}

	if len(batch) > 0 {
		if err := sink.AppendBatch(ctx, batch); err != nil {
			return stats, err
		}
		stats.imported += len(batch)
	}
	return stats, nil
}

func parseRow(record []string, cols map[string]int, precision int, now time.Time) (domain.LocationPing, error) {
	userID := getField(record, cols, "user_id")
	if userID == "" {
		return domain.LocationPing{}, domain.ErrInvalidUser
	}
	lat, err := strconv.ParseFloat(getField(record, cols, "lat"), 64)
	if err != nil {
		return domain.LocationPing{}, fmt.Errorf("lat: %w", err)
	}
	lon, err := strconv.ParseFloat(getField(record, cols, "lon"), 64)
	if err != nil {
		return domain.LocationPing{}, fmt.Errorf("lon: %w", err)
	}
	cell, err := geohash.Encode(lat, lon, precision)
	if err != nil {
		return domain.LocationPing{}, err
	}

	at := now
	if raw := getField(record, cols, "timestamp"); raw != "" {
		if at, err = parseTimestamp(raw); err != nil {
			return domain.LocationPing{}, err
		}
		if at.After(now.Add(usecases.MaxClockSkew)) {
			return domain.LocationPing{}, domain.ErrFutureTimestamp
		}
	}

	id := getField(record, cols, "id")
	if id == "" {
		id = uuid.NewString()
	} else if _, err := uuid.Parse(id); err != nil {
		return domain.LocationPing{}, fmt.Errorf("id: %w", err)
	}

	return domain.LocationPing{
		ID:       id,
		UserID:   userID,
		Location: domain.GeoPoint{Lat: lat, Lon: lon},
		Cell:     cell,
		Time:     at,
	}, nil
}

// parseTimestamp accepts RFC 3339 or unix milliseconds.
func parseTimestamp(s string) (time.Time, error) {
	if ms, err := strconv.ParseInt(s, 10, 64); err == nil {
		return time.UnixMilli(ms).UTC(), nil
	}
	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("timestamp %q: %w", s, err)
	}
	return t.UTC(), nil
}

func indexColumns(header []string) map[string]int {
	m := make(map[string]int, len(header))
	for i, col := range header {
		// Strip BOM from first column
		col = strings.TrimPrefix(col, "\xef\xbb\xbf")
		m[strings.ToLower(strings.TrimSpace(col))] = i
	}
	return m
}

func getField(record []string, cols map[string]int, name string) string {
	idx, ok := cols[name]
	if !ok || idx >= len(record) {
		return ""
	}
	return strings.TrimSpace(record[idx])
}

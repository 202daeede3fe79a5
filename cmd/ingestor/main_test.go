package main

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/samirrijal/murmur/internal/core/domain"
)

type recordingSink struct {
	batches [][]domain.LocationPing
	err     error
}

func (s *recordingSink) AppendBatch(_ context.Context, pings []domain.LocationPing) error {
	if s.err != nil {
		return s.err
	}
	s.batches = append(s.batches, append([]domain.LocationPing(nil), pings...))
	return nil
}

func TestImportCSV(t *testing.T) {
	in := "\xef\xbb\xbfuser_id,lat,lon,timestamp\n" +
		"u1,37.5665,126.9780,2024-05-01T09:00:00Z\n" +
		"u2,37.5666,126.9781,1714554000000\n" +
		",37.5,126.9,\n" +
		"u3,95,0,\n" +
		"u4,abc,0,\n"

	sink := &recordingSink{}
	stats, err := importCSV(context.Background(), sink, strings.NewReader(in), 6)
	require.NoError(t, err)

	assert.Equal(t, 2, stats.imported)
	assert.Equal(t, 3, stats.skipped)
	require.Len(t, sink.batches, 1)

	got := sink.batches[0]
	assert.Equal(t, "wydm9q", got[0].Cell)
	assert.Equal(t, "wydm9q", got[1].Cell)
	assert.True(t, got[0].Time.Equal(time.Date(2024, 5, 1, 9, 0, 0, 0, time.UTC)))
	assert.True(t, got[1].Time.Equal(time.Date(2024, 5, 1, 9, 0, 0, 0, time.UTC)))
	assert.NotEmpty(t, got[0].ID)
}

func TestImportCSV_Batches(t *testing.T) {
	var b strings.Builder
	b.WriteString("user_id,lat,lon\n")
	for i := 0; i < batchSize+10; i++ {
		fmt.Fprintf(&b, "u%d,10.0,20.0\n", i)
	}

	sink := &recordingSink{}
	stats, err := importCSV(context.Background(), sink, strings.NewReader(b.String()), 5)
	require.NoError(t, err)

	assert.Equal(t, batchSize+10, stats.imported)
	require.Len(t, sink.batches, 2)
	assert.Len(t, sink.batches[0], batchSize)
	assert.Len(t, sink.batches[1], 10)
}

func TestImportCSV_MissingColumn(t *testing.T) {
	_, err := importCSV(context.Background(), &recordingSink{}, strings.NewReader("user_id,lat\nu1,1\n"), 6)
	assert.ErrorContains(t, err, "missing lon column")
}

func TestImportCSV_SinkError(t *testing.T) {
	sink := &recordingSink{err: errors.New("db down")}
	_, err := importCSV(context.Background(), sink, strings.NewReader("user_id,lat,lon\nu1,1,1\n"), 6)
	assert.EqualError(t, err, "db down")
}

func TestParseRow_ExplicitID(t *testing.T) {
	cols := indexColumns([]string{"id", "user_id", "lat", "lon"})
	now := time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC)

	p, err := parseRow([]string{"7f1c7a9e-2d2a-4c55-9a53-1b8c3e4f5a6b", "u1", "1", "1"}, cols, 6, now)
	require.NoError(t, err)
	assert.Equal(t, "7f1c7a9e-2d2a-4c55-9a53-1b8c3e4f5a6b", p.ID)
	assert.Equal(t, now, p.Time)

	_, err = parseRow([]string{"not-a-uuid", "u1", "1", "1"}, cols, 6, now)
	assert.Error(t, err)
}

func TestParseRow_FutureTimestamp(t *testing.T) {
	cols := map[string]int{"user_id": 0, "lat": 1, "lon": 2, "timestamp": 3}
	now := time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC)

	_, err := parseRow([]string{"u1", "1", "1", "2099-01-01T00:00:00Z"}, cols, 6, now)
	assert.ErrorIs(t, err, domain.ErrFutureTimestamp)

	p, err := parseRow([]string{"u1", "1", "1", "2024-05-01T00:04:00Z"}, cols, 6, now)
	require.NoError(t, err)
	assert.Equal(t, now.Add(4*time.Minute), p.Time)
}

package location_test

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/samirrijal/murmur/internal/adapters/location"
	"github.com/samirrijal/murmur/internal/core/domain"
	"github.com/samirrijal/murmur/internal/pkg/geohash"
)

func TestStatic(t *testing.T) {
	src, err := location.NewStatic(37.5665, 126.9780)
	require.NoError(t, err)

	p, err := src.Sample(context.Background())
	require.NoError(t, err)
	assert.Equal(t, domain.GeoPoint{Lat: 37.5665, Lon: 126.9780}, p)

	_, err = location.NewStatic(95, 0)
	require.ErrorIs(t, err, geohash.ErrInvalidCoordinate)
}

func TestStatic_Cancelled(t *testing.T) {
	src, err := location.NewStatic(0, 0)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = src.Sample(ctx)
	require.ErrorIs(t, err, domain.ErrLocationUnavailable)
	require.ErrorIs(t, err, context.Canceled)
}

func TestReplay(t *testing.T) {
	pts := []domain.GeoPoint{{Lat: 1, Lon: 2}, {Lat: 3, Lon: 4}}
	ctx := context.Background()

	once := location.NewReplay(pts, false)
	for _, want := range pts {
		got, err := once.Sample(ctx)
		require.NoError(t, err)
		assert.Equal(t, want, got)
	}
	_, err := once.Sample(ctx)
	var le *domain.LocationError
	require.True(t, errors.As(err, &le))
	assert.Equal(t, "track exhausted", le.Reason)

	looped := location.NewReplay(pts, true)
	for i := 0; i < 5; i++ {
		got, err := looped.Sample(ctx)
		require.NoError(t, err)
		assert.Equal(t, pts[i%2], got)
	}

	_, err = location.NewReplay(nil, true).Sample(ctx)
	require.ErrorIs(t, err, domain.ErrLocationUnavailable)
}

func TestParseTrack(t *testing.T) {
	in := "\xef\xbb\xbfname, lon, lat\n" +
		"city hall, 126.9780, 37.5665\n" +
		"gwanghwamun, 126.9769, 37.5759\n"

	pts, err := location.ParseTrack(strings.NewReader(in))
	require.NoError(t, err)
	require.Len(t, pts, 2)
	assert.Equal(t, domain.GeoPoint{Lat: 37.5665, Lon: 126.9780}, pts[0])
	assert.Equal(t, domain.GeoPoint{Lat: 37.5759, Lon: 126.9769}, pts[1])
}

func TestParseTrack_Errors(t *testing.T) {
	cases := map[string]string{
		"no header columns": "x,y\n1,2\n",
		"bad number":        "lat,lon\nabc,2\n",
		"out of range":      "lat,lon\n91,2\n",
		"short row":         "lat,lon\n1\n",
	}
	for name, in := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := location.ParseTrack(strings.NewReader(in))
			assert.Error(t, err)
		})
	}
}

package geohash_test

import (
	"errors"
	"math"
	"math/rand"
	"strings"
	"sync"
	"testing"

	refgeohash "github.com/mmcloughlin/geohash"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/samirrijal/murmur/internal/pkg/geohash"
)

func randomPoint(r *rand.Rand) (lat, lon float64) {
	return r.Float64()*180 - 90, r.Float64()*360 - 180
}

func TestEncode_KnownVectors(t *testing.T) {
	cases := []struct {
		name      string
		lat, lon  float64
		precision int
		want      string
	}{
		{"seoul city hall", 37.5665, 126.9780, 6, "wydm9q"},
		{"seoul full precision", 37.5665, 126.9780, 12, "wydm9qy89z5m"},
		{"seoul single char", 37.5665, 126.9780, 1, "w"},
		{"bilbao abando", 43.263, -2.935, 6, "eztyj5"},
		{"jutland", 57.64911, 10.40744, 11, "u4pruydqqvj"},
		{"tokyo", 35.6762, 139.6503, 5, "xn76c"},
		{"north east corner", 90, 180, 6, "zzzzzz"},
		{"south west corner", -90, -180, 6, "000000"},
		{"origin sits on midpoints", 0, 0, 6, "7zzzzz"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got, err := geohash.Encode(tc.lat, tc.lon, tc.precision)
			require.NoError(t, err)
			assert.Equal(t, tc.want, got)
		})
	}
}

func TestEncode_LengthAndAlphabet(t *testing.T) {
	r := rand.New(rand.NewSource(1))
	for i := 0; i < 2000; i++ {
		lat, lon := randomPoint(r)
		p := 1 + r.Intn(geohash.MaxPrecision)

		cell, err := geohash.Encode(lat, lon, p)
		require.NoError(t, err)
		require.Len(t, cell, p)
		for _, c := range cell {
			require.True(t, strings.ContainsRune(geohash.Alphabet, c), "char %q not in alphabet", c)
		}
	}
}

func TestEncode_Deterministic(t *testing.T) {
	a, err := geohash.Encode(37.5665, 126.9780, 9)
	require.NoError(t, err)
	b, err := geohash.Encode(37.5665, 126.9780, 9)
	require.NoError(t, err)
	assert.Equal(t, a, b)
}

func TestEncode_ConcurrentCallersAgree(t *testing.T) {
	want := geohash.MustEncode(43.263, -2.935, 8)

	var wg sync.WaitGroup
	results := make([]string, 32)
	for i := range results {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			results[i] = geohash.MustEncode(43.263, -2.935, 8)
		}(i)
	}
	wg.Wait()

	for _, got := range results {
		assert.Equal(t, want, got)
	}
}

func TestEncode_PrefixRefinement(t *testing.T) {
	r := rand.New(rand.NewSource(2))
	for i := 0; i < 500; i++ {
		lat, lon := randomPoint(r)
		prev := ""
		for p := 1; p <= geohash.MaxPrecision; p++ {
			cell := geohash.MustEncode(lat, lon, p)
			require.True(t, strings.HasPrefix(cell, prev), "%q is not a prefix of %q", prev, cell)
			prev = cell
		}
	}
}

func TestEncode_AgreesWithReferenceEncoder(t *testing.T) {
	r := rand.New(rand.NewSource(3))
	for i := 0; i < 2000; i++ {
		lat, lon := randomPoint(r)
		p := 1 + r.Intn(geohash.MaxPrecision)

		got := geohash.MustEncode(lat, lon, p)
		want := refgeohash.EncodeWithPrecision(lat, lon, uint(p))
		require.Equal(t, want, got, "lat=%v lon=%v precision=%d", lat, lon, p)
	}
}

func TestEncode_InvalidCoordinate(t *testing.T) {
	cases := []struct {
		name     string
		lat, lon float64
	}{
		{"lat too high", 90.0001, 0},
		{"lat too low", -91, 0},
		{"lon too high", 0, 180.5},
		{"lon too low", 0, -181},
		{"nan", math.NaN(), 0},
		{"inf", 0, math.Inf(1)},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			cell, err := geohash.Encode(tc.lat, tc.lon, 6)
			require.ErrorIs(t, err, geohash.ErrInvalidCoordinate)
			assert.Empty(t, cell)
		})
	}
}

func TestEncode_InvalidPrecision(t *testing.T) {
	for _, p := range []int{0, -1, geohash.MaxPrecision + 1} {
		_, err := geohash.Encode(10, 10, p)
		require.ErrorIs(t, err, geohash.ErrInvalidPrecision, "precision %d", p)
	}
}

func TestMustEncode_Panics(t *testing.T) {
	assert.Panics(t, func() { geohash.MustEncode(100, 0, 6) })
}

func TestDecode_RoundTripContainment(t *testing.T) {
	r := rand.New(rand.NewSource(4))
	for i := 0; i < 2000; i++ {
		lat, lon := randomPoint(r)
		p := 1 + r.Intn(geohash.MaxPrecision)

		box, err := geohash.Decode(geohash.MustEncode(lat, lon, p))
		require.NoError(t, err)
		require.True(t, box.Contains(lat, lon), "box %+v does not contain (%v, %v) at precision %d", box, lat, lon, p)
	}
}

func TestDecode_ExtremesContained(t *testing.T) {
	for _, pt := range [][2]float64{{90, 180}, {-90, -180}, {0, 0}, {90, -180}, {-90, 180}} {
		box, err := geohash.Decode(geohash.MustEncode(pt[0], pt[1], 6))
		require.NoError(t, err)
		assert.True(t, box.Contains(pt[0], pt[1]), "%v not contained in %+v", pt, box)
	}
}

func TestDecode_MatchesReferenceBounds(t *testing.T) {
	for _, cell := range []string{"wydm6", "wydm7", "wydm9q", "eztyj5", "u4pruydqqvj", "0", "z"} {
		box, err := geohash.Decode(cell)
		require.NoError(t, err)

		ref := refgeohash.BoundingBox(cell)
		assert.InDelta(t, ref.MinLat, box.MinLat, 1e-9, cell)
		assert.InDelta(t, ref.MaxLat, box.MaxLat, 1e-9, cell)
		assert.InDelta(t, ref.MinLng, box.MinLon, 1e-9, cell)
		assert.InDelta(t, ref.MaxLng, box.MaxLon, 1e-9, cell)
	}
}

func TestDecode_KnownBox(t *testing.T) {
	box, err := geohash.Decode("wydm6")
	require.NoError(t, err)
	assert.Equal(t, geohash.Box{MinLat: 37.4853515625, MaxLat: 37.529296875, MinLon: 127.001953125, MaxLon: 127.0458984375}, box)

	lat, lon := box.Center()
	assert.InDelta(t, 37.50732421875, lat, 1e-12)
	assert.InDelta(t, 127.02392578125, lon, 1e-12)
}

func TestDecode_Errors(t *testing.T) {
	_, err := geohash.Decode("")
	require.ErrorIs(t, err, geohash.ErrEmptyCell)

	for _, cell := range []string{"wydma", "WYDM6", "wy dm", "wydmi", "wydml", "wydmo", "ü"} {
		_, err := geohash.Decode(cell)
		require.ErrorIs(t, err, geohash.ErrInvalidCellCharacter, cell)

		var ce *geohash.CellError
		require.True(t, errors.As(err, &ce), cell)
		assert.Equal(t, cell, ce.Cell)
	}

	_, err = geohash.Decode("wydma")
	var ce *geohash.CellError
	require.True(t, errors.As(err, &ce))
	assert.Equal(t, 4, ce.Pos)
	assert.Equal(t, byte('a'), ce.Char)
}

func TestValid(t *testing.T) {
	assert.True(t, geohash.Valid("wydm9q"))
	assert.True(t, geohash.Valid("0"))
	assert.False(t, geohash.Valid(""))
	assert.False(t, geohash.Valid("wydm9a"))
	assert.False(t, geohash.Valid("wydm9qy89z5mz"))
}

func TestCellSize(t *testing.T) {
	w, h := geohash.CellSize(6)
	assert.InDelta(t, 1222.9, w, 1)
	assert.InDelta(t, 611.5, h, 1)

	w, h = geohash.CellSize(0)
	assert.Zero(t, w)
	assert.Zero(t, h)
}

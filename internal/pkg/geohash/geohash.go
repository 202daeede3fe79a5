// Package geohash encodes WGS84 coordinates into fixed-precision geohash
// cells and decodes cells back into their bounding boxes.
package geohash

import (
	"errors"
	"fmt"
	"math"
	"strings"
)

// Alphabet is the 32-symbol geohash alphabet. Value n maps to Alphabet[n].
const Alphabet = "0123456789bcdefghjkmnpqrstuvwxyz"

const (
	// DefaultPrecision is the cell length used for density buckets (~1.2km x 0.6km).
	DefaultPrecision = 6
	// MaxPrecision is the longest cell that still fits float64 bisection.
	MaxPrecision = 12

	bitsPerChar = 5
)

var (
	ErrInvalidCoordinate    = errors.New("invalid coordinate")
	ErrInvalidPrecision     = errors.New("invalid precision")
	ErrEmptyCell            = errors.New("empty geohash cell")
	ErrInvalidCellCharacter = errors.New("invalid geohash cell character")
)

// decodeTable maps an ASCII byte to its alphabet value, or -1.
var decodeTable [256]int8

func init() {
	for i := range decodeTable {
		decodeTable[i] = -1
	}
	for i := 0; i < len(Alphabet); i++ {
		decodeTable[Alphabet[i]] = int8(i)
	}
}

// CellError reports the first character of a cell outside the alphabet.
type CellError struct {
	Cell string
	Pos  int
	Char byte
}

func (e *CellError) Error() string {
	return fmt.Sprintf("geohash %q: character %q at position %d is not in the alphabet", e.Cell, e.Char, e.Pos)
}

func (e *CellError) Unwrap() error { return ErrInvalidCellCharacter }

// Box is the bounding rectangle of a cell. Bounds are inclusive.
type Box struct {
	MinLat float64 `json:"min_lat"`
	MaxLat float64 `json:"max_lat"`
	MinLon float64 `json:"min_lon"`
	MaxLon float64 `json:"max_lon"`
}

// Contains reports whether the point lies inside the box, edges included.
func (b Box) Contains(lat, lon float64) bool {
	return lat >= b.MinLat && lat <= b.MaxLat && lon >= b.MinLon && lon <= b.MaxLon
}

// Center returns the centroid of the box.
func (b Box) Center() (lat, lon float64) {
	return (b.MinLat + b.MaxLat) / 2, (b.MinLon + b.MaxLon) / 2
}

// ValidateCoordinate checks that lat/lon are finite WGS84 degrees.
func ValidateCoordinate(lat, lon float64) error {
	if math.IsNaN(lat) || math.IsNaN(lon) || math.IsInf(lat, 0) || math.IsInf(lon, 0) {
		return fmt.Errorf("%w: lat=%v lon=%v is not finite", ErrInvalidCoordinate, lat, lon)
	}
	if lat < -90 || lat > 90 {
		return fmt.Errorf("%w: latitude %v outside [-90, 90]", ErrInvalidCoordinate, lat)
	}
	if lon < -180 || lon > 180 {
		return fmt.Errorf("%w: longitude %v outside [-180, 180]", ErrInvalidCoordinate, lon)
	}
	return nil
}

// Encode returns the geohash cell of length precision containing (lat, lon).
//
// Bits alternate longitude/latitude starting with longitude. A bit is 1 when
// the value lies strictly above the midpoint of the active interval, so a
// value sitting exactly on a midpoint falls into the lower half.
func Encode(lat, lon float64, precision int) (string, error) {
	if precision < 1 || precision > MaxPrecision {
		return "", fmt.Errorf("%w: %d not in [1, %d]", ErrInvalidPrecision, precision, MaxPrecision)
	}
	if err := ValidateCoordinate(lat, lon); err != nil {
		return "", err
	}

	latMin, latMax := -90.0, 90.0
	lonMin, lonMax := -180.0, 180.0

	var sb strings.Builder
	sb.Grow(precision)

	even := true
	bit, ch := 0, 0
	for sb.Len() < precision {
		ch <<= 1
		if even {
			mid := (lonMin + lonMax) / 2
			if lon > mid {
				ch |= 1
				lonMin = mid
			} else {
				lonMax = mid
			}
		} else {
			mid := (latMin + latMax) / 2
			if lat > mid {
				ch |= 1
				latMin = mid
			} else {
				latMax = mid
			}
		}
		even = !even

		bit++
		if bit == bitsPerChar {
			sb.WriteByte(Alphabet[ch])
			bit, ch = 0, 0
		}
	}

	return sb.String(), nil
}

// EncodeDefault encodes at DefaultPrecision.
func EncodeDefault(lat, lon float64) (string, error) {
	return Encode(lat, lon, DefaultPrecision)
}

// MustEncode is like Encode but panics on error.
func MustEncode(lat, lon float64, precision int) string {
	cell, err := Encode(lat, lon, precision)
	if err != nil {
		panic(err)
	}
	return cell
}

// Decode returns the bounding box of every coordinate that encodes to cell
// at len(cell) precision. Characters outside Alphabet are rejected; upper
// case is not folded.
func Decode(cell string) (Box, error) {
	if cell == "" {
		return Box{}, ErrEmptyCell
	}

	b := Box{MinLat: -90, MaxLat: 90, MinLon: -180, MaxLon: 180}
	even := true
	for i := 0; i < len(cell); i++ {
		v := decodeTable[cell[i]]
		if v < 0 {
			return Box{}, &CellError{Cell: cell, Pos: i, Char: cell[i]}
		}
		for shift := bitsPerChar - 1; shift >= 0; shift-- {
			set := (v>>shift)&1 == 1
			if even {
				mid := (b.MinLon + b.MaxLon) / 2
				if set {
					b.MinLon = mid
				} else {
					b.MaxLon = mid
				}
			} else {
				mid := (b.MinLat + b.MaxLat) / 2
				if set {
					b.MinLat = mid
				} else {
					b.MaxLat = mid
				}
			}
			even = !even
		}
	}
	return b, nil
}

// Valid reports whether cell is a non-empty string over Alphabet no longer
// than MaxPrecision.
func Valid(cell string) bool {
	if cell == "" || len(cell) > MaxPrecision {
		return false
	}
	for i := 0; i < len(cell); i++ {
		if decodeTable[cell[i]] < 0 {
			return false
		}
	}
	return true
}

// CellSize returns the approximate width and height in metres of a cell of
// the given precision at the equator.
func CellSize(precision int) (widthMeters, heightMeters float64) {
	if precision < 1 {
		return 0, 0
	}
	bits := precision * bitsPerChar
	lonBits := (bits + 1) / 2
	latBits := bits / 2

	const metersPerDegree = 111320.0
	widthMeters = 360 / math.Pow(2, float64(lonBits)) * metersPerDegree
	heightMeters = 180 / math.Pow(2, float64(latBits)) * metersPerDegree
	return widthMeters, heightMeters
}

package http

import (
	"strconv"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/samirrijal/murmur/internal/core/domain"
	"github.com/samirrijal/murmur/internal/core/usecases"
	"github.com/samirrijal/murmur/internal/pkg/geohash"
)

// RecordPingRequest is the body of POST /v1/pings.
type RecordPingRequest struct {
	Lat       *float64   `json:"lat"`
	Lon       *float64   `json:"lon"`
	Timestamp *time.Time `json:"timestamp,omitempty"`
}

// RecordPingHandler appends a location ping for the session user.
func RecordPingHandler(deps *Dependencies) fiber.Handler {
	return func(c *fiber.Ctx) error {
		session, ok := SessionFromCtx(c.UserContext())
		if !ok {
			return errBadRequest(c, HeaderUser+" header is required")
		}

		var req RecordPingRequest
		if err := c.BodyParser(&req); err != nil {
			return errBadRequest(c, "invalid request body")
		}
		if req.Lat == nil || req.Lon == nil {
			return errBadRequest(c, "lat and lon are required")
		}

		var at time.Time
		if req.Timestamp != nil {
			at = *req.Timestamp
		}

		ping, err := deps.Density.Record(c.UserContext(), session.UserID, domain.GeoPoint{Lat: *req.Lat, Lon: *req.Lon}, at)
		if err != nil {
			return errFromDomain(c, err)
		}

		return c.Status(fiber.StatusCreated).JSON(ping)
	}
}

// GetDensityHandler returns the ping count of one exact cell.
func GetDensityHandler(deps *Dependencies) fiber.Handler {
	return func(c *fiber.Ctx) error {
		cell := c.Params("cell")
		if cell == "" {
			return errBadRequest(c, "geohash cell is required")
		}

		d, err := deps.Density.QueryDensity(c.UserContext(), cell, time.Time{})
		if err != nil {
			return errFromDomain(c, err)
		}

		c.Set("Cache-Control", "public, max-age=30")
		return c.JSON(d)
	}
}

// ListDensitiesHandler returns densities for a comma-separated list of cells,
// in the order given.
func ListDensitiesHandler(deps *Dependencies) fiber.Handler {
	return func(c *fiber.Ctx) error {
		raw := c.Query("cells")
		if raw == "" {
			return errBadRequest(c, "cells query parameter is required")
		}

		var cells []string
		for _, s := range strings.Split(raw, ",") {
			if s = strings.TrimSpace(s); s != "" {
				cells = append(cells, s)
			}
		}
		if len(cells) == 0 {
			return errBadRequest(c, "at least one cell is required")
		}

		ds, err := deps.Density.QueryMany(c.UserContext(), cells, time.Time{})
		if err != nil {
			return errFromDomain(c, err)
		}

		c.Set("Cache-Control", "public, max-age=30")
		return c.JSON(ds)
	}
}

// DensityAtHandler returns the density of the cell containing lat/lon.
func DensityAtHandler(deps *Dependencies) fiber.Handler {
	return func(c *fiber.Ctx) error {
		lat, lon, err := parseLatLon(c)
		if err != nil {
			return errBadRequest(c, err.Error())
		}

		d, err := deps.Density.QueryAt(c.UserContext(), domain.GeoPoint{Lat: lat, Lon: lon}, time.Time{})
		if err != nil {
			return errFromDomain(c, err)
		}

		c.Set("Cache-Control", "public, max-age=30")
		return c.JSON(d)
	}
}

// EncodeResponse is the body of GET /v1/geohash/encode.
type EncodeResponse struct {
	Geohash   string  `json:"geohash"`
	Precision int     `json:"precision"`
	Lat       float64 `json:"lat"`
	Lon       float64 `json:"lon"`
}

// EncodeHandler encodes a coordinate at the requested precision (default 6).
func EncodeHandler(deps *Dependencies) fiber.Handler {
	return func(c *fiber.Ctx) error {
		lat, lon, err := parseLatLon(c)
		if err != nil {
			return errBadRequest(c, err.Error())
		}
		var cell string
		precision := geohash.DefaultPrecision
		if c.Query("precision") == "" {
			cell, err = geohash.EncodeDefault(lat, lon)
		} else {
			precision = c.QueryInt("precision")
			cell, err = geohash.Encode(lat, lon, precision)
		}
		if err != nil {
			return errFromDomain(c, err)
		}

		c.Set("Cache-Control", "public, max-age=86400, immutable")
		return c.JSON(EncodeResponse{Geohash: cell, Precision: precision, Lat: lat, Lon: lon})
	}
}

// CellResponse describes a decoded cell.
type CellResponse struct {
	Geohash      string          `json:"geohash"`
	Precision    int             `json:"precision"`
	Bounds       domain.Bounds   `json:"bounds"`
	Center       domain.GeoPoint `json:"center"`
	WidthMeters  float64         `json:"width_m"`
	HeightMeters float64         `json:"height_m"`
}

func newCellResponse(cell string, box geohash.Box) CellResponse {
	lat, lon := box.Center()
	w, h := geohash.CellSize(len(cell))
	return CellResponse{
		Geohash:   cell,
		Precision: len(cell),
		Bounds: domain.Bounds{
			MinLat: box.MinLat,
			MinLon: box.MinLon,
			MaxLat: box.MaxLat,
			MaxLon: box.MaxLon,
		},
		Center:       domain.GeoPoint{Lat: lat, Lon: lon},
		WidthMeters:  w,
		HeightMeters: h,
	}
}

// DecodeHandler returns the bounding box and centroid of a cell.
func DecodeHandler(deps *Dependencies) fiber.Handler {
	return func(c *fiber.Ctx) error {
		cell := c.Params("cell")
		if len(cell) > geohash.MaxPrecision {
			return errBadRequest(c, "geohash longer than 12 characters")
		}

		box, err := geohash.Decode(cell)
		if err != nil {
			return errFromDomain(c, err)
		}

		c.Set("Cache-Control", "public, max-age=86400, immutable")
		return c.JSON(newCellResponse(cell, box))
	}
}

// UserPathHandler returns the footprint trail of the session user for one
// day. date defaults to today. Other users' paths are not readable.
func UserPathHandler(deps *Dependencies) fiber.Handler {
	return func(c *fiber.Ctx) error {
		userID := c.Params("id")
		if userID == "" {
			return errBadRequest(c, "user id is required")
		}
		session, ok := SessionFromCtx(c.UserContext())
		if !ok {
			return errBadRequest(c, HeaderUser+" header is required")
		}
		if session.UserID != userID {
			return errForbidden(c, "path belongs to another user")
		}

		loc := deps.Location
		if loc == nil {
			loc = time.UTC
		}
		now := deps.Density.Now()
		day := c.Query("date", now.In(loc).Format(usecases.DayLayout))
		if _, err := time.ParseInLocation(usecases.DayLayout, day, loc); err != nil {
			return errBadRequest(c, "date must be YYYY-MM-DD")
		}

		path, err := deps.Paths.DailyPath(c.UserContext(), userID, day, loc, now)
		if err != nil {
			return errFromDomain(c, err)
		}

		c.Set("Cache-Control", "private, no-store")
		return c.JSON(path)
	}
}

func parseLatLon(c *fiber.Ctx) (lat, lon float64, err error) {
	rawLat, rawLon := c.Query("lat"), c.Query("lon")
	if rawLat == "" || rawLon == "" {
		return 0, 0, fiber.NewError(fiber.StatusBadRequest, "lat and lon are required")
	}
	lat, err = strconv.ParseFloat(rawLat, 64)
	if err != nil {
		return 0, 0, fiber.NewError(fiber.StatusBadRequest, "lat must be a number")
	}
	lon, err = strconv.ParseFloat(rawLon, 64)
	if err != nil {
		return 0, 0, fiber.NewError(fiber.StatusBadRequest, "lon must be a number")
	}
	return lat, lon, nil
}

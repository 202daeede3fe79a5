package domain

import (
	"time"
)

// LocationPing is one position sample of a user, bucketed into a geohash cell.
// Pings are immutable once recorded.
type LocationPing struct {
	ID       string    `json:"id"`
	UserID   string    `json:"user_id"`
	Location GeoPoint  `json:"location"`
	Cell     string    `json:"geohash"`
	Time     time.Time `json:"timestamp"`
}

// Density is the number of pings recorded in one exact cell during the
// trailing window ending at QueriedAt. It is recomputed on every query.
type Density struct {
	Cell      string    `json:"geohash"`
	Count     int       `json:"count"`
	QueriedAt time.Time `json:"timestamp"`
	Center    GeoPoint  `json:"center"`
	Bounds    Bounds    `json:"bounds"`
}

// Session identifies the caller of a request. It travels in the request
// context instead of being looked up from ambient storage.
type Session struct {
	UserID   string `json:"user_id"`
	Nickname string `json:"nickname,omitempty"`
}

// PathPoint is a ping on a user's daily path.
type PathPoint struct {
	Location  GeoPoint  `json:"location"`
	Cell      string    `json:"geohash"`
	Time      time.Time `json:"timestamp"`
	Freshness float64   `json:"freshness"` // 1 when just recorded, 0 once older than the window
}

// UserPath is the ordered set of pings a user left during one day.
type UserPath struct {
	UserID         string      `json:"user_id"`
	Day            string      `json:"day"` // YYYY-MM-DD
	Points         []PathPoint `json:"points"`
	DistanceMeters float64     `json:"distance_meters"`
}

// Package kiosk defines the dashboard configuration document and its public
// projection.
package kiosk

import (
	"encoding/json"
	"fmt"
)

// Config is the full dashboard configuration. It contains API keys and OAuth
// credentials and is only ever persisted encrypted.
type Config struct {
	Location    Location    `json:"location"`
	APIKeys     APIKeys     `json:"apiKeys"`
	Electricity Electricity `json:"electricity"`
	Photos      Photos      `json:"photos"`
	Calendar    Calendar    `json:"calendar"`
}

// Location holds coordinates for weather and the public transport stops to show.
type Location struct {
	Latitude     float64  `json:"latitude"`
	Longitude    float64  `json:"longitude"`
	StopPlaceIDs []string `json:"stopPlaceIds"`
}

// APIKeys holds third-party API credentials.
type APIKeys struct {
	Tibber string `json:"tibber"`
}

// Electricity holds the tariff used to compute the displayed price.
type Electricity struct {
	GridFee GridFee `json:"gridFee"`
}

// GridFee is the grid fee per kWh for day (06-22) and night (22-06).
type GridFee struct {
	Day   float64 `json:"day"`
	Night float64 `json:"night"`
}

// UnmarshalJSON accepts either {"day":x,"night":y} or a bare number, which
// sets both periods to the same value.
func (g *GridFee) UnmarshalJSON(data []byte) error {
	var flat float64
	if err := json.Unmarshal(data, &flat); err == nil {
		g.Day, g.Night = flat, flat
		return nil
	}

	type plain GridFee
	var p plain
	if err := json.Unmarshal(data, &p); err != nil {
		return fmt.Errorf("gridFee must be a number or {day, night}: %w", err)
	}
	*g = GridFee(p)
	return nil
}

// Photos configures the slideshow.
type Photos struct {
	SharedAlbumURL string `json:"sharedAlbumUrl"`
	Interval       int    `json:"interval"`
}

// Calendar holds Google Calendar OAuth credentials and the calendars to show.
type Calendar struct {
	ClientID     string           `json:"clientId,omitempty"`
	ClientSecret string           `json:"clientSecret,omitempty"`
	RefreshToken string           `json:"refreshToken,omitempty"`
	Calendars    []CalendarSource `json:"calendars,omitempty"`
}

// CalendarSource is a single calendar displayed on the dashboard.
type CalendarSource struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Color string `json:"color,omitempty"`
	Icon  string `json:"icon,omitempty"`
}

// DefaultPhotoInterval is the slideshow interval in seconds when none is set.
const DefaultPhotoInterval = 30

// Default returns the configuration used before setup (Trondheim area).
func Default() *Config {
	return &Config{
		Location: Location{
			Latitude:     63.4305,
			Longitude:    10.3951,
			StopPlaceIDs: []string{},
		},
		Photos: Photos{Interval: DefaultPhotoInterval},
	}
}

// Normalize fills zero values that have a sensible default.
func (c *Config) Normalize() {
	if c.Location.StopPlaceIDs == nil {
		c.Location.StopPlaceIDs = []string{}
	}
	if c.Photos.Interval == 0 {
		c.Photos.Interval = DefaultPhotoInterval
	}
}

// Clone returns a deep copy of the configuration.
func (c *Config) Clone() *Config {
	if c == nil {
		return nil
	}
	out := *c
	if c.Location.StopPlaceIDs != nil {
		out.Location.StopPlaceIDs = append([]string(nil), c.Location.StopPlaceIDs...)
	}
	if c.Calendar.Calendars != nil {
		out.Calendar.Calendars = append([]CalendarSource(nil), c.Calendar.Calendars...)
	}
	return &out
}

// Package validation provides input validation functions.
package validation

import (
	"errors"
	"fmt"
	"net/url"
	"regexp"
	"strings"

	"github.com/abdul-hamid-achik/kiosk/internal/kiosk"
)

var (
	// ErrPINFormat is returned when a PIN is not 4-8 ASCII digits.
	ErrPINFormat = errors.New("PIN must be 4-8 digits")

	// ErrLatitudeRange is returned when latitude is outside [-90, 90].
	ErrLatitudeRange = errors.New("latitude must be between -90 and 90")
	// ErrLongitudeRange is returned when longitude is outside [-180, 180].
	ErrLongitudeRange = errors.New("longitude must be between -180 and 180")
	// ErrTooManyStops is returned when more than MaxStopPlaces stops are configured.
	ErrTooManyStops = fmt.Errorf("at most %d stop places are allowed", MaxStopPlaces)
	// ErrStopPlaceEmpty is returned for a blank stop place id.
	ErrStopPlaceEmpty = errors.New("stop place id is required")

	// ErrPhotoInterval is returned when the slideshow interval is out of range.
	ErrPhotoInterval = fmt.Errorf("photo interval must be between %d and %d seconds", MinPhotoInterval, MaxPhotoInterval)
	// ErrAlbumURL is returned when the shared album URL is not an http(s) URL.
	ErrAlbumURL = errors.New("shared album URL must be an http or https URL")

	// ErrGridFeeNegative is returned when a grid fee is below zero.
	ErrGridFeeNegative = errors.New("grid fee must not be negative")

	// ErrCalendarInvalid is returned when a calendar entry lacks an id or name.
	ErrCalendarInvalid = errors.New("calendar entries need an id and a name")
)

// Limits applied by Config.
const (
	MaxStopPlaces    = 20
	MinPhotoInterval = 5
	MaxPhotoInterval = 3600
)

var pinRegex = regexp.MustCompile(`^[0-9]{4,8}$`)

// PIN validates an admin PIN.
// Rules: 4-8 ASCII digits.
func PIN(pin string) error {
	if !pinRegex.MatchString(pin) {
		return ErrPINFormat
	}
	return nil
}

// Config validates a dashboard configuration. A zero photo interval is
// accepted and means the default.
func Config(cfg *kiosk.Config) error {
	loc := cfg.Location
	if loc.Latitude < -90 || loc.Latitude > 90 {
		return ErrLatitudeRange
	}
	if loc.Longitude < -180 || loc.Longitude > 180 {
		return ErrLongitudeRange
	}
	if len(loc.StopPlaceIDs) > MaxStopPlaces {
		return ErrTooManyStops
	}
	for _, id := range loc.StopPlaceIDs {
		if strings.TrimSpace(id) == "" {
			return ErrStopPlaceEmpty
		}
	}

	if fee := cfg.Electricity.GridFee; fee.Day < 0 || fee.Night < 0 {
		return ErrGridFeeNegative
	}

	if iv := cfg.Photos.Interval; iv != 0 && (iv < MinPhotoInterval || iv > MaxPhotoInterval) {
		return ErrPhotoInterval
	}
	if raw := cfg.Photos.SharedAlbumURL; raw != "" {
		u, err := url.Parse(raw)
		if err != nil || (u.Scheme != "https" && u.Scheme != "http") || u.Host == "" {
			return ErrAlbumURL
		}
	}

	for _, c := range cfg.Calendar.Calendars {
		if strings.TrimSpace(c.ID) == "" || strings.TrimSpace(c.Name) == "" {
			return ErrCalendarInvalid
		}
	}
	return nil
}

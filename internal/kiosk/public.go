package kiosk

// PublicConfig is the subset of Config the dashboard may read without
// authentication.
type PublicConfig struct {
	Location PublicLocation `json:"location"`
	Photos   PublicPhotos   `json:"photos"`
	Calendar PublicCalendar `json:"calendar"`
}

// PublicLocation mirrors Location.
type PublicLocation struct {
	Latitude     float64  `json:"latitude"`
	Longitude    float64  `json:"longitude"`
	StopPlaceIDs []string `json:"stopPlaceIds"`
}

// PublicPhotos exposes only the slideshow interval. The album URL grants
// access to the photos and stays private.
type PublicPhotos struct {
	Interval int `json:"interval"`
}

// PublicCalendar exposes only the OAuth client id.
type PublicCalendar struct {
	ClientID string `json:"clientId,omitempty"`
}

// Public derives the public projection. Fields are copied one by one so that
// a field added to Config is private until it is listed here.
func (c *Config) Public() *PublicConfig {
	stops := make([]string, len(c.Location.StopPlaceIDs))
	copy(stops, c.Location.StopPlaceIDs)

	return &PublicConfig{
		Location: PublicLocation{
			Latitude:     c.Location.Latitude,
			Longitude:    c.Location.Longitude,
			StopPlaceIDs: stops,
		},
		Photos: PublicPhotos{
			Interval: c.Photos.Interval,
		},
		Calendar: PublicCalendar{
			ClientID: c.Calendar.ClientID,
		},
	}
}

// DefaultPublic returns the projection of Default.
func DefaultPublic() *PublicConfig {
	return Default().Public()
}

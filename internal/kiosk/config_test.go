package kiosk

import (
	"encoding/json"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func fullConfig() *Config {
	return &Config{
		Location: Location{
			Latitude:     63.4305,
			Longitude:    10.3951,
			StopPlaceIDs: []string{"NSR:StopPlace:42660"},
		},
		APIKeys:     APIKeys{Tibber: "tibber-token-5b1f0c7e"},
		Electricity: Electricity{GridFee: GridFee{Day: 0.4612, Night: 0.3587}},
		Photos: Photos{
			SharedAlbumURL: "https://www.icloud.com/sharedalbum/#B0aGWZuqDGGkdPz",
			Interval:       45,
		},
		Calendar: Calendar{
			ClientID:     "1234-abc.apps.googleusercontent.com",
			ClientSecret: "GOCSPX-clientsecret-9f8e7d",
			RefreshToken: "1//refresh-token-a1b2c3d4",
			Calendars:    []CalendarSource{{ID: "family@group.calendar.google.com", Name: "Family", Color: "#ff0000"}},
		},
	}
}

func TestGridFee_UnmarshalJSON(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		want    GridFee
		wantErr bool
	}{
		{name: "number", input: `0.36`, want: GridFee{Day: 0.36, Night: 0.36}},
		{name: "object", input: `{"day":0.5,"night":0.25}`, want: GridFee{Day: 0.5, Night: 0.25}},
		{name: "partial object", input: `{"day":0.5}`, want: GridFee{Day: 0.5}},
		{name: "string", input: `"cheap"`, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var g GridFee
			err := json.Unmarshal([]byte(tt.input), &g)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, g)
		})
	}
}

func TestConfig_UnmarshalSetupWizardPayload(t *testing.T) {
	payload := `{
		"location": {"latitude": 63.43, "longitude": 10.39, "stopPlaceIds": []},
		"apiKeys": {"tibber": ""},
		"electricity": {"gridFee": 0.36},
		"photos": {"sharedAlbumUrl": "", "interval": 30},
		"calendar": {"calendars": []}
	}`

	var cfg Config
	require.NoError(t, json.Unmarshal([]byte(payload), &cfg))
	assert.Equal(t, 63.43, cfg.Location.Latitude)
	assert.Equal(t, GridFee{Day: 0.36, Night: 0.36}, cfg.Electricity.GridFee)
	assert.Equal(t, 30, cfg.Photos.Interval)
}

func TestConfig_Normalize(t *testing.T) {
	cfg := &Config{}
	cfg.Normalize()

	assert.NotNil(t, cfg.Location.StopPlaceIDs)
	assert.Equal(t, DefaultPhotoInterval, cfg.Photos.Interval)
}

func TestConfig_Clone(t *testing.T) {
	orig := fullConfig()
	clone := orig.Clone()
	require.Equal(t, orig, clone)

	clone.Location.StopPlaceIDs[0] = "changed"
	clone.Calendar.Calendars[0].Name = "changed"
	clone.APIKeys.Tibber = "changed"

	assert.Equal(t, "NSR:StopPlace:42660", orig.Location.StopPlaceIDs[0])
	assert.Equal(t, "Family", orig.Calendar.Calendars[0].Name)
	assert.Equal(t, "tibber-token-5b1f0c7e", orig.APIKeys.Tibber)

	var nilCfg *Config
	assert.Nil(t, nilCfg.Clone())
}

func TestConfig_Public_OmitsSecrets(t *testing.T) {
	cfg := fullConfig()

	data, err := json.Marshal(cfg.Public())
	require.NoError(t, err)
	out := string(data)

	for _, secret := range []string{
		cfg.APIKeys.Tibber,
		cfg.Calendar.ClientSecret,
		cfg.Calendar.RefreshToken,
		cfg.Photos.SharedAlbumURL,
		"0.4612",
		"0.3587",
	} {
		assert.NotContains(t, out, secret)
		// No recognisable fragment of a secret may leak either.
		assert.NotContains(t, out, secret[len(secret)/2:])
	}
	for _, field := range []string{"tibber", "clientSecret", "refreshToken", "gridFee", "apiKeys", "sharedAlbumUrl"} {
		assert.False(t, strings.Contains(out, field), "public projection contains %q", field)
	}
}

func TestConfig_Public_KeepsDashboardFields(t *testing.T) {
	cfg := fullConfig()
	pub := cfg.Public()

	assert.Equal(t, cfg.Location.Latitude, pub.Location.Latitude)
	assert.Equal(t, cfg.Location.Longitude, pub.Location.Longitude)
	assert.Equal(t, cfg.Location.StopPlaceIDs, pub.Location.StopPlaceIDs)
	assert.Equal(t, cfg.Photos.Interval, pub.Photos.Interval)
	assert.Equal(t, cfg.Calendar.ClientID, pub.Calendar.ClientID)

	pub.Location.StopPlaceIDs[0] = "changed"
	assert.Equal(t, "NSR:StopPlace:42660", cfg.Location.StopPlaceIDs[0])
}

func TestDefaultPublic(t *testing.T) {
	pub := DefaultPublic()
	assert.Equal(t, DefaultPhotoInterval, pub.Photos.Interval)
	assert.NotNil(t, pub.Location.StopPlaceIDs)
}

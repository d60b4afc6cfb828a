package handlers

import (
	"net/http"
	"reflect"
	"strings"
	"testing"

	"github.com/abdul-hamid-achik/kiosk/internal/kiosk"
)

func getConfig(t *testing.T, ts *testServer) *kiosk.Config {
	t.Helper()
	rec := ts.do(http.MethodGet, "/api/config", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("GET /api/config: expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	var cfg kiosk.Config
	decodeBody(t, rec, &cfg)
	return &cfg
}

func TestConfigLifecycle(t *testing.T) {
	ts := newTestServer(t)
	want := sampleConfig()
	ts.setup("1234", want)

	if got := getConfig(t, ts); !reflect.DeepEqual(got, want) {
		t.Fatalf("GET /api/config = %+v, want %+v", got, want)
	}

	before, err := ts.store.GetConfigBlob()
	if err != nil {
		t.Fatalf("GetConfigBlob: %v", err)
	}

	changed := sampleConfig()
	changed.APIKeys.Tibber = "rotated-token"
	rec := ts.do(http.MethodPut, "/api/config", map[string]any{"config": changed, "pin": "9999"})
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("PUT with wrong PIN: expected 401, got %d", rec.Code)
	}
	if got := errorBody(t, rec).Error; got != "Invalid PIN" {
		t.Errorf("error = %q", got)
	}

	after, err := ts.store.GetConfigBlob()
	if err != nil {
		t.Fatalf("GetConfigBlob: %v", err)
	}
	if after != before {
		t.Error("encrypted config changed after a rejected update")
	}
	if got := getConfig(t, ts); got.APIKeys.Tibber != want.APIKeys.Tibber {
		t.Errorf("cached config changed after a rejected update: %q", got.APIKeys.Tibber)
	}
}

func TestUpdateConfig(t *testing.T) {
	ts := newTestServer(t)
	ts.setup("1234", sampleConfig())

	changed := sampleConfig()
	changed.APIKeys.Tibber = "rotated-token"
	changed.Location.StopPlaceIDs = append(changed.Location.StopPlaceIDs, "NSR:StopPlace:6505")
	changed.Photos.Interval = 0

	rec := ts.do(http.MethodPut, "/api/config", map[string]any{"config": changed, "pin": "1234"})
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}

	got := getConfig(t, ts)
	if got.APIKeys.Tibber != "rotated-token" {
		t.Errorf("session cache not refreshed: tibber = %q", got.APIKeys.Tibber)
	}
	if got.Photos.Interval != kiosk.DefaultPhotoInterval {
		t.Errorf("interval = %d, want default %d", got.Photos.Interval, kiosk.DefaultPhotoInterval)
	}

	// A fresh login decrypts the stored copy, not the cache.
	ts.cookie = nil
	if rec := ts.do(http.MethodPost, "/api/auth/login", map[string]string{"pin": "1234"}); rec.Code != http.StatusOK {
		t.Fatalf("login: %d", rec.Code)
	}
	got = getConfig(t, ts)
	if got.APIKeys.Tibber != "rotated-token" || len(got.Location.StopPlaceIDs) != 2 {
		t.Errorf("stored config = %+v", got)
	}
}

func TestUpdateConfig_BadRequest(t *testing.T) {
	ts := newTestServer(t)
	ts.setup("1234", sampleConfig())

	rec := ts.do(http.MethodPut, "/api/config", map[string]any{"pin": "1234"})
	if rec.Code != http.StatusBadRequest {
		t.Errorf("missing config: expected 400, got %d", rec.Code)
	}
	if got := errorBody(t, rec).Error; got != "Config and PIN required" {
		t.Errorf("error = %q", got)
	}

	rec = ts.do(http.MethodPut, "/api/config", map[string]any{"config": sampleConfig()})
	if rec.Code != http.StatusBadRequest {
		t.Errorf("missing PIN: expected 400, got %d", rec.Code)
	}

	bad := sampleConfig()
	bad.Photos.SharedAlbumURL = "javascript:alert(1)"
	rec = ts.do(http.MethodPut, "/api/config", map[string]any{"config": bad, "pin": "1234"})
	if rec.Code != http.StatusBadRequest {
		t.Errorf("invalid config: expected 400, got %d", rec.Code)
	}
}

func TestGetConfig_NotCached(t *testing.T) {
	ts := newTestServer(t)
	ts.setup("1234", sampleConfig())

	id, err := ts.sessions.Create("192.0.2.10")
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	ts.cookie = &http.Cookie{Name: ts.cookie.Name, Value: id}

	rec := ts.do(http.MethodGet, "/api/config", nil)
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", rec.Code)
	}
	if got := errorBody(t, rec).Error; got != "Config not found in session" {
		t.Errorf("error = %q", got)
	}
	if ts.sessions.Validate(id) {
		t.Error("session without config was kept")
	}
}

func TestGetPublicConfig(t *testing.T) {
	ts := newTestServer(t)

	rec := ts.do(http.MethodGet, "/api/config/public", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("before setup: expected 200, got %d", rec.Code)
	}
	var pub kiosk.PublicConfig
	decodeBody(t, rec, &pub)
	if !reflect.DeepEqual(&pub, kiosk.DefaultPublic()) {
		t.Errorf("before setup = %+v, want defaults", pub)
	}

	cfg := sampleConfig()
	ts.setup("1234", cfg)
	ts.cookie = nil

	rec = ts.do(http.MethodGet, "/api/config/public", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("after setup: expected 200, got %d", rec.Code)
	}
	body := rec.Body.String()
	for _, secret := range []string{cfg.APIKeys.Tibber, cfg.Photos.SharedAlbumURL, "gridFee"} {
		if strings.Contains(body, secret) {
			t.Errorf("public config leaks %q", secret)
		}
	}

	pub = kiosk.PublicConfig{}
	decodeBody(t, rec, &pub)
	if pub.Location.Latitude != cfg.Location.Latitude || pub.Photos.Interval != cfg.Photos.Interval {
		t.Errorf("public config = %+v", pub)
	}
}

func TestFactoryReset(t *testing.T) {
	ts := newTestServer(t)
	ts.setup("1234", sampleConfig())

	rec := ts.do(http.MethodPost, "/api/config/factory-reset", map[string]string{})
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("missing PIN: expected 400, got %d", rec.Code)
	}

	rec = ts.do(http.MethodPost, "/api/config/factory-reset", map[string]string{"pin": "4321"})
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("wrong PIN: expected 401, got %d", rec.Code)
	}
	if status := statusOf(t, ts); status["setupComplete"] != true {
		t.Fatal("data deleted by a rejected reset")
	}

	rec = ts.do(http.MethodPost, "/api/config/factory-reset", map[string]string{"pin": "1234"})
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	if ts.cookie != nil {
		t.Error("cookie not cleared")
	}
	if ts.sessions.Count() != 0 {
		t.Errorf("sessions = %d after reset", ts.sessions.Count())
	}

	status := statusOf(t, ts)
	if status["setupComplete"] != false || status["requiresFirstTimeCode"] != false {
		t.Errorf("status after reset = %v", status)
	}

	rec = ts.do(http.MethodGet, "/api/config/public", nil)
	var pub kiosk.PublicConfig
	decodeBody(t, rec, &pub)
	if !reflect.DeepEqual(&pub, kiosk.DefaultPublic()) {
		t.Errorf("public config after reset = %+v, want defaults", pub)
	}

	// The kiosk can be set up again on the same machine.
	ts.setup("2468", sampleConfig())
}

func TestStepUpFailuresCountTowardLockout(t *testing.T) {
	ts := newTestServer(t)
	ts.setup("1234", sampleConfig())

	for i := 0; i < 5; i++ {
		rec := ts.do(http.MethodPut, "/api/config", map[string]any{"config": sampleConfig(), "pin": "0000"})
		if rec.Code != http.StatusUnauthorized {
			t.Fatalf("attempt %d: expected 401, got %d", i+1, rec.Code)
		}
	}

	rec := ts.do(http.MethodPost, "/api/config/factory-reset", map[string]string{"pin": "1234"})
	if rec.Code != http.StatusTooManyRequests {
		t.Fatalf("expected 429, got %d", rec.Code)
	}
	if status := statusOf(t, ts); status["setupComplete"] != true {
		t.Error("reset went through while locked out")
	}
}

package mcp

import "github.com/abdul-hamid-achik/kiosk/internal/kiosk"

// redactConfig returns a copy of cfg with every credential replaced by
// [REDACTED:field]. Empty fields stay empty.
func redactConfig(cfg *kiosk.Config) *kiosk.Config {
	out := cfg.Clone()
	redact := func(value *string, name string) {
		if *value != "" {
			*value = "[REDACTED:" + name + "]"
		}
	}
	redact(&out.APIKeys.Tibber, "tibber")
	redact(&out.Calendar.ClientSecret, "clientSecret")
	redact(&out.Calendar.RefreshToken, "refreshToken")
	redact(&out.Photos.SharedAlbumURL, "sharedAlbumUrl")
	return out
}

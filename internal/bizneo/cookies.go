package bizneo

import (
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"

	"clockbot/internal/store"
)

// exportedCookie is one element of a cookie-editor JSON export. Only the
// fields we read are declared; extensions add plenty of others.
type exportedCookie struct {
	Name           string  `json:"name"`
	Value          string  `json:"value"`
	Domain         string  `json:"domain"`
	ExpirationDate float64 `json:"expirationDate"` // unix seconds, fractional
}

var ErrNoSessionCookie = errors.New("bizneo: cookie export has no _hcmex_key cookie")

// ParseCookieExport extracts the session-relevant cookies from a browser
// cookie export (a JSON array). The _hcmex_key cookie is required; geo and
// device_id are picked up when present.
func ParseCookieExport(raw []byte) (store.Cookies, error) {
	var arr []exportedCookie
	if err := json.Unmarshal(raw, &arr); err != nil {
		return store.Cookies{}, fmt.Errorf("bizneo: cookie export is not a JSON array: %w", err)
	}

	var out store.Cookies
	for _, c := range arr {
		switch c.Name {
		case "geo":
			out.Geo = c.Value
		case "_hcmex_key":
			out.Hcmex = c.Value
			out.Domain = c.Domain
			out.Expires = int64(c.ExpirationDate * 1000)
		case "device_id":
			out.DeviceID = c.Value
		}
	}
	if out.Hcmex == "" {
		return store.Cookies{}, ErrNoSessionCookie
	}
	return out, nil
}

// DecodeGeoBlob decodes the base64 geolocation cookie value into its JSON
// payload. Standard alphabet first, URL-safe-no-pad as fallback, matching
// how the site encodes it.
func DecodeGeoBlob(value string) (store.GeoData, error) {
	raw, err := base64.StdEncoding.DecodeString(value)
	if err != nil {
		raw, err = base64.RawURLEncoding.DecodeString(value)
		if err != nil {
			return store.GeoData{}, fmt.Errorf("bizneo: geo cookie is not base64: %w", err)
		}
	}
	var geo store.GeoData
	if err := json.Unmarshal(raw, &geo); err != nil {
		return store.GeoData{}, fmt.Errorf("bizneo: geo cookie payload: %w", err)
	}
	return geo, nil
}

// EncodeGeoBlob is the inverse of DecodeGeoBlob, used when the user shares
// a new location through the chat.
func EncodeGeoBlob(geo store.GeoData) (string, error) {
	raw, err := json.Marshal(geo)
	if err != nil {
		return "", err
	}
	return base64.StdEncoding.EncodeToString(raw), nil
}

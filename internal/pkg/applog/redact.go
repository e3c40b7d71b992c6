package applog

import "net/url"

// RedactURL masks the password of an endpoint URL for logging. Values that do
// not parse as URLs are fully masked.
func RedactURL(raw string) string {
	u, err := url.Parse(raw)
	if err != nil || u.Scheme == "" {
		return "***"
	}
	return u.Redacted()
}

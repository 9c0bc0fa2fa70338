package relay

import (
	"errors"
	"net/http"
	"strings"
)

// ErrNoCredential indicates that no API key could be resolved from a
// request.
var ErrNoCredential = errors.New("relay: no API key in request")

const bearerPrefix = "Bearer "

// ResolveAPIKey extracts the caller's API key from a request. Resolution
// order: explicit key from the JSON body, then the Authorization bearer
// header, then the legacy X-API-Key header. Each candidate is trimmed and
// an empty-after-trim value counts as absent.
func ResolveAPIKey(bodyKey string, r *http.Request) (string, error) {
	if key := strings.TrimSpace(bodyKey); key != "" {
		return key, nil
	}

	auth := strings.TrimSpace(r.Header.Get("Authorization"))
	if strings.HasPrefix(auth, bearerPrefix) {
		if key := strings.TrimSpace(strings.TrimPrefix(auth, bearerPrefix)); key != "" {
			return key, nil
		}
	}

	if key := strings.TrimSpace(r.Header.Get("X-API-Key")); key != "" {
		return key, nil
	}

	return "", ErrNoCredential
}

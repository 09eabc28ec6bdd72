package middleware

import (
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"golang.org/x/crypto/bcrypt"
)

// HeaderAPIKey carries the dashboard key; the api_key query parameter is
// accepted too so links from a browser work.
const HeaderAPIKey = "X-API-Key"

const ctxKeyAPIKeyID = "apikey.id"

// APIKeyOptions configures APIKey. With neither field set every request is
// refused with 503: the dashboard is disabled.
type APIKeyOptions struct {
	// Keys are accepted plaintext keys.
	Keys []string
	// Hashes are accepted bcrypt hashes of keys.
	Hashes []string
}

// APIKeyID returns a short fingerprint of the key that authenticated the
// request, or "" when APIKey did not run.
func APIKeyID(c *gin.Context) string {
	v, _ := c.Get(ctxKeyAPIKeyID)
	return asString(v)
}

func fingerprint(d [sha256.Size]byte) string { return hex.EncodeToString(d[:6]) }

// APIKey guards the dashboard and JSON API. Plaintext keys are compared in
// constant time over their SHA-256 digests so length is not leaked.
func APIKey(opts APIKeyOptions) gin.HandlerFunc {
	var digests [][sha256.Size]byte
	for _, k := range opts.Keys {
		if k = strings.TrimSpace(k); k != "" {
			digests = append(digests, sha256.Sum256([]byte(k)))
		}
	}
	var hashes [][]byte
	for _, h := range opts.Hashes {
		if h = strings.TrimSpace(h); h != "" {
			hashes = append(hashes, []byte(h))
		}
	}
	disabled := len(digests) == 0 && len(hashes) == 0

	return func(c *gin.Context) {
		if disabled {
			authRejected.WithLabelValues("api_key", "disabled").Inc()
			c.AbortWithStatusJSON(http.StatusServiceUnavailable, gin.H{
				"request_id": RequestIDFrom(c),
				"code":       "dashboard_disabled",
				"message":    "dashboard is disabled: no API key configured",
			})
			return
		}

		key := c.GetHeader(HeaderAPIKey)
		if key == "" {
			key = c.Query("api_key")
		}
		if key == "" {
			authRejected.WithLabelValues("api_key", "missing").Inc()
			abortUnauthorized(c, "missing API key")
			return
		}

		sum := sha256.Sum256([]byte(key))
		ok := false
		for _, d := range digests {
			if subtle.ConstantTimeCompare(sum[:], d[:]) == 1 {
				ok = true
			}
		}
		if !ok {
			for _, h := range hashes {
				if bcrypt.CompareHashAndPassword(h, []byte(key)) == nil {
					ok = true
					break
				}
			}
		}
		if !ok {
			authRejected.WithLabelValues("api_key", "invalid").Inc()
			LoggerFrom(c).Warn().Msg("invalid dashboard API key")
			abortUnauthorized(c, "invalid API key")
			return
		}
		c.Set(ctxKeyAPIKeyID, fingerprint(sum))
		c.Next()
	}
}

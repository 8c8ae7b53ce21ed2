package crypto

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/alanyoungcy/limitorder/internal/domain"
)

// RequestAuth signs and verifies API requests with
// HMAC-SHA256(secret, timestamp+method+path+body), base64 encoded.
type RequestAuth struct {
	Secret  []byte
	MaxSkew time.Duration
}

// Sign returns the signature of a request made at unixTS.
func (a RequestAuth) Sign(unixTS int64, method, path string, body []byte) string {
	mac := hmac.New(sha256.New, a.Secret)
	mac.Write([]byte(strconv.FormatInt(unixTS, 10) + method + path))
	mac.Write(body)
	return base64.StdEncoding.EncodeToString(mac.Sum(nil))
}

// Verify checks signature and that timestamp lies within MaxSkew of now.
func (a RequestAuth) Verify(timestamp, method, path string, body []byte, signature string, now time.Time) error {
	ts, err := strconv.ParseInt(timestamp, 10, 64)
	if err != nil {
		return fmt.Errorf("crypto/hmac: bad timestamp %q: %w", timestamp, domain.ErrUnauthorized)
	}
	if skew := now.Sub(time.Unix(ts, 0)).Abs(); a.MaxSkew > 0 && skew > a.MaxSkew {
		return fmt.Errorf("crypto/hmac: timestamp skew %s: %w", skew, domain.ErrUnauthorized)
	}
	got, err := base64.StdEncoding.DecodeString(signature)
	if err != nil {
		return errors.Join(domain.ErrUnauthorized, err)
	}
	want, _ := base64.StdEncoding.DecodeString(a.Sign(ts, method, path, body))
	if !hmac.Equal(got, want) {
		return fmt.Errorf("crypto/hmac: signature mismatch: %w", domain.ErrUnauthorized)
	}
	return nil
}

// Package signing issues and verifies time-limited signed download URLs.
//
// Signatures are HMAC-SHA256 over a canonical "{request_id}:{filename}:{exp}"
// message, so verification is stateless: any process holding the secret can
// check a URL without a session store. Expiry is whole seconds since the Unix
// epoch measured on the server clock; client/server drift beyond ~30s will
// produce spurious Expired failures near the boundary.
package signing

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"
	"time"
)

var (
	ErrExpired          = errors.New("signed url expired")
	ErrInvalidSignature = errors.New("invalid signature")
)

// Sign computes the hex HMAC-SHA256 digest of message keyed by secret.
// Deterministic: identical inputs always yield byte-identical digests.
func Sign(secret, message string) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte(message))
	return hex.EncodeToString(mac.Sum(nil))
}

// Verify compares two digests in constant time with respect to length,
// never short-circuiting on the first mismatched byte.
func Verify(a, b string) bool {
	return hmac.Equal([]byte(a), []byte(b))
}

// BuildMessage returns the canonical signing message. Signer and verifier
// must agree on this exact format and field order; changing it invalidates
// every outstanding URL at once.
func BuildMessage(requestID, filename string, exp int64) string {
	return fmt.Sprintf("%s:%s:%d", requestID, filename, exp)
}

// Service issues download URLs for stored artifacts. When Secret is empty the
// service runs in explicit unsigned mode: URLs carry no query parameters and
// CheckURL always succeeds. Intended only for trusted internal deployments.
type Service struct {
	Secret  string
	BaseURL string
	TTL     time.Duration

	// now is overridable in tests.
	now func() time.Time
}

// New creates a Service. baseURL may be empty, in which case issued URLs are
// root-relative paths.
func New(secret, baseURL string, ttl time.Duration) *Service {
	return &Service{
		Secret:  secret,
		BaseURL: strings.TrimRight(baseURL, "/"),
		TTL:     ttl,
		now:     time.Now,
	}
}

// Enabled reports whether URL signing is configured.
func (s *Service) Enabled() bool {
	return s.Secret != ""
}

// IssueURL returns the download URL for filename under requestID, appending
// ?exp=<epoch>&sig=<hex> when signing is enabled.
func (s *Service) IssueURL(requestID, filename string) string {
	path := fmt.Sprintf("%s/api/v1/results/%s/%s", s.BaseURL, requestID, filename)
	if !s.Enabled() {
		return path
	}
	exp := s.clock().Add(s.TTL).Unix()
	sig := Sign(s.Secret, BuildMessage(requestID, filename, exp))
	return fmt.Sprintf("%s?exp=%d&sig=%s", path, exp, sig)
}

// CheckURL validates the exp/sig pair for a download request. Expiry is
// checked first so an expired URL fails with ErrExpired even when its
// signature is valid. A no-op when signing is disabled.
func (s *Service) CheckURL(requestID, filename string, exp int64, sig string) error {
	if !s.Enabled() {
		return nil
	}
	if exp < s.clock().Unix() {
		return ErrExpired
	}
	want := Sign(s.Secret, BuildMessage(requestID, filename, exp))
	if !Verify(want, sig) {
		return ErrInvalidSignature
	}
	return nil
}

func (s *Service) clock() time.Time {
	if s.now != nil {
		return s.now()
	}
	return time.Now()
}

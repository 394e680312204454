package signing

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func fixedClock(t time.Time) func() time.Time {
	return func() time.Time { return t }
}

func TestSign_Deterministic(t *testing.T) {
	a := Sign("secret", "req:file:123")
	b := Sign("secret", "req:file:123")
	assert.Equal(t, a, b)
	assert.Len(t, a, 64) // hex-encoded SHA256
}

func TestSign_MessageSensitivity(t *testing.T) {
	a := Sign("secret", "req:file:123")
	b := Sign("secret", "req:file:124")
	assert.NotEqual(t, a, b)
}

func TestSign_KeySensitivity(t *testing.T) {
	a := Sign("secret-a", "req:file:123")
	b := Sign("secret-b", "req:file:123")
	assert.NotEqual(t, a, b)
}

func TestVerify(t *testing.T) {
	d := Sign("secret", "msg")
	assert.True(t, Verify(d, d))
	assert.False(t, Verify(d, Sign("secret", "other")))
	assert.False(t, Verify(d, d[:32]))
}

func TestBuildMessage(t *testing.T) {
	assert.Equal(t, "abc:summary.json:1700000000", BuildMessage("abc", "summary.json", 1700000000))
}

func TestIssueURL_Signed(t *testing.T) {
	now := time.Unix(1700000000, 0)
	svc := New("k", "https://lab.example.com", time.Hour)
	svc.now = fixedClock(now)

	url := svc.IssueURL("req-1", "summary.json")
	require.True(t, strings.HasPrefix(url, "https://lab.example.com/api/v1/results/req-1/summary.json?exp=1700003600&sig="))

	sig := url[strings.LastIndex(url, "sig=")+4:]
	assert.Equal(t, Sign("k", BuildMessage("req-1", "summary.json", 1700003600)), sig)
}

func TestIssueURL_Unsigned(t *testing.T) {
	svc := New("", "", time.Hour)
	assert.Equal(t, "/api/v1/results/req-1/hist.png", svc.IssueURL("req-1", "hist.png"))
}

func TestCheckURL_Valid(t *testing.T) {
	now := time.Unix(1700000000, 0)
	svc := New("k", "", time.Hour)
	svc.now = fixedClock(now)

	exp := now.Add(time.Hour).Unix()
	sig := Sign("k", BuildMessage("req-1", "summary.json", exp))
	assert.NoError(t, svc.CheckURL("req-1", "summary.json", exp, sig))
}

func TestCheckURL_ExpiredEvenWithValidSignature(t *testing.T) {
	issued := time.Unix(1700000000, 0)
	svc := New("k", "", time.Hour)
	svc.now = fixedClock(issued)

	exp := issued.Add(time.Hour).Unix()
	sig := Sign("k", BuildMessage("req-1", "summary.json", exp))

	// Simulate the clock moving one second past expiry.
	svc.now = fixedClock(issued.Add(time.Hour + time.Second))
	assert.ErrorIs(t, svc.CheckURL("req-1", "summary.json", exp, sig), ErrExpired)
}

func TestCheckURL_InvalidSignature(t *testing.T) {
	now := time.Unix(1700000000, 0)
	svc := New("k", "", time.Hour)
	svc.now = fixedClock(now)

	exp := now.Add(time.Hour).Unix()
	assert.ErrorIs(t, svc.CheckURL("req-1", "summary.json", exp, "deadbeef"), ErrInvalidSignature)

	// Tampering with any signed field invalidates the signature.
	sig := Sign("k", BuildMessage("req-1", "summary.json", exp))
	assert.ErrorIs(t, svc.CheckURL("req-1", "hist.png", exp, sig), ErrInvalidSignature)
	assert.ErrorIs(t, svc.CheckURL("req-2", "summary.json", exp, sig), ErrInvalidSignature)
}

func TestCheckURL_DisabledIsNoop(t *testing.T) {
	svc := New("", "", time.Hour)
	assert.NoError(t, svc.CheckURL("req-1", "summary.json", 0, "garbage"))
}

// Package sign implements the canonical query-string signing scheme shared
// by the redirect-based payment gateways: parameters are ordinal-sorted,
// empty values are dropped, keys and values are URL-encoded, and the joined
// string is authenticated with an HMAC rendered as lowercase hex.
package sign

import (
	"crypto/hmac"
	"crypto/sha256"
	"crypto/sha512"
	"crypto/subtle"
	"encoding/hex"
	"net/url"
	"sort"
	"strings"
)

// Params is an ordered bag of gateway parameters. Keys are sorted with
// byte-wise comparison when serialized, never locale-aware collation, so the
// signer and the verifier agree on order regardless of environment.
type Params struct {
	values map[string]string
}

// NewParams returns an empty parameter bag.
func NewParams() *Params {
	return &Params{values: make(map[string]string)}
}

// Set stores a parameter. Empty values are dropped entirely: they appear
// neither in the signed payload nor in the serialized query string.
func (p *Params) Set(key, value string) {
	if key == "" || value == "" {
		return
	}
	p.values[key] = value
}

// Get returns the stored value for key, or the empty string.
func (p *Params) Get(key string) string {
	return p.values[key]
}

// Len returns the number of stored parameters.
func (p *Params) Len() int {
	return len(p.values)
}

// Canonical serializes the bag as URL-encoded key=value pairs joined with
// "&", keys in ordinal order, skipping any key listed in exclude. This exact
// string is both the signed payload and (without exclusions) the query
// string sent on the wire.
func (p *Params) Canonical(exclude ...string) string {
	keys := make([]string, 0, len(p.values))
	for k := range p.values {
		if contains(exclude, k) {
			continue
		}
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var b strings.Builder
	for i, k := range keys {
		if i > 0 {
			b.WriteByte('&')
		}
		b.WriteString(url.QueryEscape(k))
		b.WriteByte('=')
		b.WriteString(url.QueryEscape(p.values[k]))
	}
	return b.String()
}

func contains(keys []string, k string) bool {
	for _, key := range keys {
		if key == k {
			return true
		}
	}
	return false
}

// HMACSHA512 computes the HMAC-SHA512 of message keyed with secret and
// returns it as lowercase hex.
func HMACSHA512(secret, message string) string {
	mac := hmac.New(sha512.New, []byte(secret))
	mac.Write([]byte(message))
	return hex.EncodeToString(mac.Sum(nil))
}

// HMACSHA256 computes the HMAC-SHA256 of message keyed with secret and
// returns it as lowercase hex.
func HMACSHA256(secret, message string) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte(message))
	return hex.EncodeToString(mac.Sum(nil))
}

// DigestsEqual reports whether two hex digests match, ignoring case.
// The comparison is constant-time to avoid leaking how much of a forged
// signature was correct.
func DigestsEqual(a, b string) bool {
	if len(a) != len(b) {
		return false
	}
	return subtle.ConstantTimeCompare(
		[]byte(strings.ToLower(a)),
		[]byte(strings.ToLower(b)),
	) == 1
}

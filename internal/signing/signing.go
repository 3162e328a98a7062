// Package signing implements the HMAC scheme shared by outbound merchant
// webhooks and inbound provider callbacks: the hex HMAC-SHA256 of
// "{unixMillisTimestamp}.{body}", carried as "t={timestamp},v1={hex}".
// A legacy bare-hex form (HMAC over the body alone) is still accepted on
// the inbound side.
package signing

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// HeaderName is the signature header on outbound merchant deliveries.
const HeaderName = "turbofy-signature"

var (
	ErrMissingSignature = errors.New("signing: missing signature header")
	ErrMalformedHeader  = errors.New("signing: malformed signature header")
	ErrMismatch         = errors.New("signing: signature mismatch")
)

// Signature is a parsed signature header.
type Signature struct {
	Timestamp int64
	V1        string
	Legacy    bool
}

// Compute returns the hex HMAC-SHA256 of "{ts}.{body}".
func Compute(secret string, ts int64, body []byte) string {
	mac := hmac.New(sha256.New, []byte(secret))
	fmt.Fprintf(mac, "%d.", ts)
	mac.Write(body)
	return hex.EncodeToString(mac.Sum(nil))
}

// Header builds the structured signature header value for an outbound
// delivery.
func Header(secret string, ts int64, body []byte) string {
	return fmt.Sprintf("t=%d,v1=%s", ts, Compute(secret, ts, body))
}

// ParseHeader parses "t={ts},v1={hex}". A value that is a bare hex string
// is returned as a legacy signature.
func ParseHeader(value string) (*Signature, error) {
	value = strings.TrimSpace(value)
	if value == "" {
		return nil, ErrMissingSignature
	}

	if !strings.Contains(value, "=") {
		if _, err := hex.DecodeString(value); err != nil {
			return nil, ErrMalformedHeader
		}
		return &Signature{V1: value, Legacy: true}, nil
	}

	sig := &Signature{}
	for _, part := range strings.Split(value, ",") {
		k, v, ok := strings.Cut(strings.TrimSpace(part), "=")
		if !ok {
			return nil, ErrMalformedHeader
		}
		switch k {
		case "t":
			ts, err := strconv.ParseInt(v, 10, 64)
			if err != nil {
				return nil, ErrMalformedHeader
			}
			sig.Timestamp = ts
		case "v1":
			sig.V1 = v
		}
	}
	if sig.V1 == "" || sig.Timestamp == 0 {
		return nil, ErrMalformedHeader
	}
	return sig, nil
}

// Verify checks a signature header against the raw request body using
// constant-time comparison.
func Verify(secret, header string, body []byte) error {
	sig, err := ParseHeader(header)
	if err != nil {
		return err
	}

	var expected string
	if sig.Legacy {
		mac := hmac.New(sha256.New, []byte(secret))
		mac.Write(body)
		expected = hex.EncodeToString(mac.Sum(nil))
	} else {
		expected = Compute(secret, sig.Timestamp, body)
	}

	if !hmac.Equal([]byte(expected), []byte(strings.ToLower(sig.V1))) {
		return ErrMismatch
	}
	return nil
}

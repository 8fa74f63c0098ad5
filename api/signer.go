package api

import (
	"crypto/md5" //nolint:gosec // the API mandates an MD5 signature
	"encoding/hex"
	"maps"
	"slices"
	"strconv"
	"strings"
	"time"
)

const (
	// SignField is the form field that carries the signature.
	SignField = "sign"

	// TimeField carries the request time in Unix milliseconds.
	TimeField = "time"
)

// Signer returns a copy of payload with a signature field added. The input
// map must not be modified.
type Signer interface {
	Sign(payload map[string]string) map[string]string
}

type SignerFunc func(payload map[string]string) map[string]string

func (f SignerFunc) Sign(payload map[string]string) map[string]string {
	return f(payload)
}

// MD5Signer signs a payload by sorting its fields by name, joining them as
// k=v pairs separated by '&', appending Secret, and storing the hex encoded
// MD5 digest in the "sign" field. An existing "sign" field is ignored. A
// missing "time" field is set to the current Unix time in milliseconds
// before signing.
type MD5Signer struct {
	Secret string

	// Now defaults to time.Now.
	Now func() time.Time
}

func (s MD5Signer) Sign(payload map[string]string) map[string]string {
	signed := make(map[string]string, len(payload)+2)
	maps.Copy(signed, payload)
	delete(signed, SignField)

	if _, ok := signed[TimeField]; !ok {
		signed[TimeField] = strconv.FormatInt(s.now().UnixMilli(), 10)
	}

	keys := slices.Sorted(maps.Keys(signed))

	var b strings.Builder
	for i, k := range keys {
		if i > 0 {
			b.WriteByte('&')
		}
		b.WriteString(k)
		b.WriteByte('=')
		b.WriteString(signed[k])
	}
	b.WriteString(s.Secret)

	sum := md5.Sum([]byte(b.String())) //nolint:gosec
	signed[SignField] = hex.EncodeToString(sum[:])

	return signed
}

func (s MD5Signer) now() time.Time {
	if s.Now != nil {
		return s.Now()
	}

	return time.Now()
}

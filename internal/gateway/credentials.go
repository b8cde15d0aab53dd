package gateway

import (
	"crypto/rsa"
	"crypto/x509"
	"encoding/pem"
	"errors"
	"fmt"
	"strings"
)

// ErrInvalidKey is returned when the service-account key cannot be used.
var ErrInvalidKey = errors.New("gateway: invalid service account private key")

// NormalizePrivateKey undoes the ways a PEM key gets mangled on its way
// through environment variables and secret managers:
//
//   - surrounding single or double quotes are removed
//   - literal "\r\n" and "\n" escape sequences become newlines
//   - CRLF line endings become LF
func NormalizePrivateKey(raw string) string {
	key := strings.TrimSpace(raw)
	if len(key) >= 2 {
		first, last := key[0], key[len(key)-1]
		if (first == '"' || first == '\'') && first == last {
			key = key[1 : len(key)-1]
		}
	}
	key = strings.ReplaceAll(key, `\r\n`, "\n")
	key = strings.ReplaceAll(key, `\n`, "\n")
	key = strings.ReplaceAll(key, "\r\n", "\n")
	return strings.TrimSpace(key) + "\n"
}

// ParsePrivateKey normalizes raw and decodes it as an RSA key in PKCS#8 or
// PKCS#1 form.
func ParsePrivateKey(raw string) (*rsa.PrivateKey, error) {
	block, _ := pem.Decode([]byte(NormalizePrivateKey(raw)))
	if block == nil {
		return nil, fmt.Errorf("%w: no PEM block found", ErrInvalidKey)
	}

	if parsed, err := x509.ParsePKCS8PrivateKey(block.Bytes); err == nil {
		key, ok := parsed.(*rsa.PrivateKey)
		if !ok {
			return nil, fmt.Errorf("%w: PKCS#8 key is not RSA", ErrInvalidKey)
		}
		return key, nil
	}

	key, err := x509.ParsePKCS1PrivateKey(block.Bytes)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidKey, err)
	}
	return key, nil
}

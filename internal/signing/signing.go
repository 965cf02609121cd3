// Package signing implements the license key crypto: RSA key pair
// generation, signing license payloads into opaque prefixed key strings, and
// verifying those strings against the product public key.
//
// A license key is "CONVERT:" followed by base64url (no padding) of
//
//	uint16(len(payload)) || payload || signature
//
// where payload is the JSON-serialized license data and signature is an
// RSA-PSS SHA-256 signature over the payload bytes. The length framing makes
// truncated or reassembled input fail structural parsing before any
// signature math runs.
package signing

import (
	"crypto"
	"crypto/rand"
	"crypto/rsa"
	"crypto/sha256"
	"crypto/x509"
	"encoding/base64"
	"encoding/binary"
	"encoding/hex"
	"encoding/json"
	"encoding/pem"
	"fmt"
	"strings"
	"time"

	licerrors "convertcli/internal/errors"
)

// KeyPrefix is the fixed product prefix every license key starts with.
const KeyPrefix = "CONVERT:"

// keyBits is the RSA modulus size for issued key pairs.
const keyBits = 2048

// Payload is the license data bound to a signature. Field order is fixed, so
// encoding/json serialization is deterministic for a given payload.
type Payload struct {
	Email          string            `json:"email"`
	Type           string            `json:"type"`
	MaxActivations int               `json:"max_activations"`
	IssuedAt       time.Time         `json:"issued_at"`
	ExpiresAt      *time.Time        `json:"expires_at,omitempty"`
	Metadata       map[string]string `json:"metadata,omitempty"`
}

// Expired reports whether the payload carries an expiry in the past.
// A nil ExpiresAt means the license is perpetual.
func (p *Payload) Expired(now time.Time) bool {
	return p.ExpiresAt != nil && now.After(*p.ExpiresAt)
}

// GenerateKeyPair creates a new RSA-2048 key pair and returns it PEM-encoded
// (PKCS#8 private, PKIX public). The caller persists both; nothing is written
// here.
func GenerateKeyPair() (privPEM, pubPEM []byte, err error) {
	key, err := rsa.GenerateKey(rand.Reader, keyBits)
	if err != nil {
		return nil, nil, fmt.Errorf("generate rsa key: %w", err)
	}

	privDER, err := x509.MarshalPKCS8PrivateKey(key)
	if err != nil {
		return nil, nil, fmt.Errorf("marshal private key: %w", err)
	}
	pubDER, err := x509.MarshalPKIXPublicKey(&key.PublicKey)
	if err != nil {
		return nil, nil, fmt.Errorf("marshal public key: %w", err)
	}

	privPEM = pem.EncodeToMemory(&pem.Block{Type: "PRIVATE KEY", Bytes: privDER})
	pubPEM = pem.EncodeToMemory(&pem.Block{Type: "PUBLIC KEY", Bytes: pubDER})
	return privPEM, pubPEM, nil
}

// ParsePrivateKey decodes a PEM-encoded PKCS#8 RSA private key.
func ParsePrivateKey(pemBytes []byte) (*rsa.PrivateKey, error) {
	block, _ := pem.Decode(pemBytes)
	if block == nil {
		return nil, fmt.Errorf("no PEM block found in private key data")
	}
	key, err := x509.ParsePKCS8PrivateKey(block.Bytes)
	if err != nil {
		return nil, fmt.Errorf("parse private key: %w", err)
	}
	rsaKey, ok := key.(*rsa.PrivateKey)
	if !ok {
		return nil, fmt.Errorf("private key is %T, expected *rsa.PrivateKey", key)
	}
	return rsaKey, nil
}

// ParsePublicKey decodes a PEM-encoded PKIX RSA public key.
func ParsePublicKey(pemBytes []byte) (*rsa.PublicKey, error) {
	block, _ := pem.Decode(pemBytes)
	if block == nil {
		return nil, fmt.Errorf("no PEM block found in public key data")
	}
	key, err := x509.ParsePKIXPublicKey(block.Bytes)
	if err != nil {
		return nil, fmt.Errorf("parse public key: %w", err)
	}
	rsaKey, ok := key.(*rsa.PublicKey)
	if !ok {
		return nil, fmt.Errorf("public key is %T, expected *rsa.PublicKey", key)
	}
	return rsaKey, nil
}

// GenerateLicenseKey serializes and signs a payload into an opaque license
// key string.
func GenerateLicenseKey(p Payload, priv *rsa.PrivateKey) (string, error) {
	payload, err := json.Marshal(p)
	if err != nil {
		return "", fmt.Errorf("marshal license payload: %w", err)
	}
	if len(payload) > 0xFFFF {
		return "", fmt.Errorf("license payload too large: %d bytes", len(payload))
	}

	digest := sha256.Sum256(payload)
	sig, err := rsa.SignPSS(rand.Reader, priv, crypto.SHA256, digest[:], nil)
	if err != nil {
		return "", fmt.Errorf("sign license payload: %w", err)
	}

	buf := make([]byte, 2, 2+len(payload)+len(sig))
	binary.BigEndian.PutUint16(buf, uint16(len(payload)))
	buf = append(buf, payload...)
	buf = append(buf, sig...)

	return KeyPrefix + base64.RawURLEncoding.EncodeToString(buf), nil
}

// VerifyAndDecode checks a license key string against the public key and
// returns its payload. Structural failures return ErrMalformedKey; a payload
// whose signature does not verify returns ErrInvalidSignature. Both are
// distinct from "no key present", which the caller handles before decoding.
func VerifyAndDecode(key string, pub *rsa.PublicKey) (*Payload, error) {
	encoded, ok := strings.CutPrefix(key, KeyPrefix)
	if !ok || encoded == "" {
		return nil, fmt.Errorf("%w: missing %q prefix", licerrors.ErrMalformedKey, KeyPrefix)
	}

	raw, err := base64.RawURLEncoding.DecodeString(encoded)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", licerrors.ErrMalformedKey, err)
	}
	if len(raw) < 2 {
		return nil, fmt.Errorf("%w: truncated", licerrors.ErrMalformedKey)
	}

	plen := int(binary.BigEndian.Uint16(raw))
	if len(raw) < 2+plen {
		return nil, fmt.Errorf("%w: truncated payload", licerrors.ErrMalformedKey)
	}
	payload := raw[2 : 2+plen]
	sig := raw[2+plen:]
	if len(sig) != pub.Size() {
		return nil, fmt.Errorf("%w: signature length %d, expected %d", licerrors.ErrMalformedKey, len(sig), pub.Size())
	}

	digest := sha256.Sum256(payload)
	if err := rsa.VerifyPSS(pub, crypto.SHA256, digest[:], sig, nil); err != nil {
		return nil, licerrors.ErrInvalidSignature
	}

	var p Payload
	if err := json.Unmarshal(payload, &p); err != nil {
		return nil, fmt.Errorf("%w: undecodable payload", licerrors.ErrMalformedKey)
	}
	return &p, nil
}

// Fingerprint returns a short stable digest of a license key string, used to
// detect re-activation of the already-active key without storing the key in
// logs.
func Fingerprint(key string) string {
	sum := sha256.Sum256([]byte(key))
	return hex.EncodeToString(sum[:8])
}

// Package dkim signs outbound replies so receivers can verify they really
// came from the configured domain. Signing is optional; the pipeline skips
// it when no key is configured.
package dkim

import (
	"bytes"
	"crypto"
	"crypto/ed25519"
	"crypto/rsa"
	"crypto/x509"
	"encoding/pem"
	"fmt"
	"io"
	"os"

	msgdkim "github.com/emersion/go-msgauth/dkim"
)

// signedHeaders are the header fields covered by the signature. They include
// every field a receiver uses for threading and display.
var signedHeaders = []string{
	"From", "To", "Cc", "Subject", "Date",
	"Message-ID", "In-Reply-To", "References",
}

// Signer signs messages with a single domain key.
type Signer struct {
	domain   string
	selector string
	key      crypto.Signer
}

// New creates a Signer from a PEM-encoded private key. RSA (PKCS#1 or
// PKCS#8) and Ed25519 (PKCS#8) keys are supported.
func New(domain, selector string, keyPEM []byte) (*Signer, error) {
	if domain == "" {
		return nil, fmt.Errorf("dkim: domain is required")
	}
	if selector == "" {
		return nil, fmt.Errorf("dkim: selector is required")
	}
	key, err := parseKey(keyPEM)
	if err != nil {
		return nil, err
	}
	return &Signer{domain: domain, selector: selector, key: key}, nil
}

// NewFromFile creates a Signer reading the key from a PEM file.
func NewFromFile(domain, selector, keyPath string) (*Signer, error) {
	keyPEM, err := os.ReadFile(keyPath)
	if err != nil {
		return nil, fmt.Errorf("dkim: reading key file: %w", err)
	}
	return New(domain, selector, keyPEM)
}

// Domain returns the signing domain.
func (s *Signer) Domain() string { return s.domain }

// Sign prepends a DKIM-Signature header to the message and returns the
// signed bytes.
func (s *Signer) Sign(message []byte) ([]byte, error) {
	opts := &msgdkim.SignOptions{
		Domain:     s.domain,
		Selector:   s.selector,
		Signer:     s.key,
		HeaderKeys: signedHeaders,
	}
	var signed bytes.Buffer
	if err := msgdkim.Sign(&signed, bytes.NewReader(message), opts); err != nil {
		return nil, fmt.Errorf("dkim: signing: %w", err)
	}
	return signed.Bytes(), nil
}

// SignTo signs the message from r into w.
func (s *Signer) SignTo(w io.Writer, r io.Reader) error {
	opts := &msgdkim.SignOptions{
		Domain:     s.domain,
		Selector:   s.selector,
		Signer:     s.key,
		HeaderKeys: signedHeaders,
	}
	if err := msgdkim.Sign(w, r, opts); err != nil {
		return fmt.Errorf("dkim: signing: %w", err)
	}
	return nil
}

// parseKey decodes a PEM private key, accepting the formats openssl and
// ssh-keygen commonly emit.
func parseKey(keyPEM []byte) (crypto.Signer, error) {
	block, _ := pem.Decode(keyPEM)
	if block == nil {
		return nil, fmt.Errorf("dkim: key is not PEM encoded")
	}
	switch block.Type {
	case "RSA PRIVATE KEY":
		key, err := x509.ParsePKCS1PrivateKey(block.Bytes)
		if err != nil {
			return nil, fmt.Errorf("dkim: parsing PKCS#1 key: %w", err)
		}
		return key, nil
	case "PRIVATE KEY":
		key, err := x509.ParsePKCS8PrivateKey(block.Bytes)
		if err != nil {
			return nil, fmt.Errorf("dkim: parsing PKCS#8 key: %w", err)
		}
		switch k := key.(type) {
		case *rsa.PrivateKey:
			return k, nil
		case ed25519.PrivateKey:
			return k, nil
		default:
			return nil, fmt.Errorf("dkim: unsupported key type %T", key)
		}
	default:
		return nil, fmt.Errorf("dkim: unsupported PEM block %q", block.Type)
	}
}

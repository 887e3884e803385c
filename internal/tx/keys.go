package tx

import (
	"bytes"
	"crypto/ed25519"
	"crypto/rand"
	"encoding/base64"
	"fmt"
	"os"
	"path/filepath"

	"github.com/rpggio/focusstake/internal/address"
)

// Keypair is an ed25519 key whose public half is an account address.
type Keypair struct {
	Public  ed25519.PublicKey
	Private ed25519.PrivateKey
}

// GenerateKeypair creates a random keypair.
func GenerateKeypair() (*Keypair, error) {
	pub, priv, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		return nil, err
	}
	return &Keypair{Public: pub, Private: priv}, nil
}

// KeypairFromSeed derives a keypair from a 32-byte seed.
func KeypairFromSeed(seed []byte) (*Keypair, error) {
	if len(seed) != ed25519.SeedSize {
		return nil, fmt.Errorf("invalid seed length: %d", len(seed))
	}
	priv := ed25519.NewKeyFromSeed(seed)
	return &Keypair{Public: priv.Public().(ed25519.PublicKey), Private: priv}, nil
}

// Address returns the account address of the keypair.
func (k *Keypair) Address() address.Address {
	return address.FromPublicKey(k.Public)
}

// Sign signs t in place.
func (k *Keypair) Sign(t *Transaction) error {
	return t.Sign(k.Private)
}

// SignAll signs every transaction in ts, stopping at the first failure.
func (k *Keypair) SignAll(ts []*Transaction) error {
	for i, t := range ts {
		if err := t.Sign(k.Private); err != nil {
			return fmt.Errorf("signing transaction %d: %w", i, err)
		}
	}
	return nil
}

// ParsePrivateKeyBase64 decodes a base64 ed25519 private key.
func ParsePrivateKeyBase64(encoded string) (*Keypair, error) {
	raw, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return nil, fmt.Errorf("decode private key: %w", err)
	}
	if l := len(raw); l != ed25519.PrivateKeySize {
		return nil, fmt.Errorf("invalid private key length: %d", l)
	}
	priv := ed25519.PrivateKey(raw)
	return &Keypair{Public: priv.Public().(ed25519.PublicKey), Private: priv}, nil
}

// LoadKeypair reads a base64 private key file.
func LoadKeypair(path string) (*Keypair, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read private key: %w", err)
	}
	return ParsePrivateKeyBase64(string(bytes.TrimSpace(b)))
}

// SaveKeypair writes the private key as base64, readable by the owner only.
func SaveKeypair(path string, k *Keypair) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return fmt.Errorf("create key directory: %w", err)
	}
	data := base64.StdEncoding.EncodeToString(k.Private) + "\n"
	if err := os.WriteFile(path, []byte(data), 0o600); err != nil {
		return fmt.Errorf("write private key: %w", err)
	}
	return nil
}

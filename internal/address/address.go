package address

import (
	"crypto/ed25519"
	"encoding/hex"
	"fmt"

	"github.com/zeebo/blake3"
)

// Size is the byte length of every address.
const Size = 32

// Address identifies an account. Wallet addresses are raw ed25519 public
// keys; program-owned addresses come from Derive.
type Address [Size]byte

// Derivation tags for the program's accounts.
const (
	TagGlobalState = "global_state"
	TagUserState   = "user_state"
	TagVault       = "vault"
	TagFocusPool   = "focus_pool_vault"
	TagFailurePool = "failure_pool_vault"
)

// deriveKey is the BLAKE3 key for address derivation: ASCII domain name,
// zero-padded to 32 bytes. Changing it moves every derived account.
var deriveKey = [32]byte{
	'f', 'o', 'c', 'u', 's', 's', 't', 'a', 'k', 'e', '.', 'a', 'd', 'd', 'r', 'e',
	's', 's', 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0,
}

// DefaultProgram is the program ID used when none is configured.
var DefaultProgram = Derive(Address{}, "focusstake.program")

// Derive computes the address owned by program for a tag and optional
// parent addresses. It is a pure function of its inputs.
func Derive(program Address, tag string, parents ...Address) Address {
	hasher, err := blake3.NewKeyed(deriveKey[:])
	if err != nil {
		panic("address: BLAKE3 keyed hash initialization failed: " + err.Error())
	}
	hasher.Write(program[:])
	// Length-prefix the tag so ("ab", X) and ("a", "b"+X) never collide.
	hasher.Write([]byte{byte(len(tag))})
	hasher.Write([]byte(tag))
	for _, parent := range parents {
		hasher.Write(parent[:])
	}
	var out Address
	copy(out[:], hasher.Sum(nil))
	return out
}

// FromPublicKey returns the wallet address for an ed25519 public key.
func FromPublicKey(pub ed25519.PublicKey) Address {
	var out Address
	copy(out[:], pub)
	return out
}

// PublicKey returns the address bytes as an ed25519 public key.
func (a Address) PublicKey() ed25519.PublicKey {
	key := make(ed25519.PublicKey, ed25519.PublicKeySize)
	copy(key, a[:])
	return key
}

// Parse decodes a hex-encoded address.
func Parse(s string) (Address, error) {
	var out Address
	raw, err := hex.DecodeString(s)
	if err != nil {
		return out, fmt.Errorf("decode address: %w", err)
	}
	if len(raw) != Size {
		return out, fmt.Errorf("invalid address length: %d", len(raw))
	}
	copy(out[:], raw)
	return out, nil
}

// MustParse is Parse for constants and tests.
func MustParse(s string) Address {
	a, err := Parse(s)
	if err != nil {
		panic(err)
	}
	return a
}

func (a Address) String() string {
	return hex.EncodeToString(a[:])
}

// Short returns an abbreviated form for logs.
func (a Address) Short() string {
	s := a.String()
	return s[:8] + ".." + s[len(s)-4:]
}

// IsZero reports whether a is the zero address.
func (a Address) IsZero() bool {
	return a == Address{}
}

func (a Address) MarshalText() ([]byte, error) {
	return []byte(a.String()), nil
}

func (a *Address) UnmarshalText(text []byte) error {
	parsed, err := Parse(string(text))
	if err != nil {
		return err
	}
	*a = parsed
	return nil
}

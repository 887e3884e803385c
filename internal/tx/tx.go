// Package tx defines signed program transactions. A transaction's digest
// is the SHA-256 of the RFC 8785 canonical JSON of its message envelope,
// with the arguments bound by the hash of their canonical bytes. The
// signature is an ed25519 signature over that digest by the signer, hex
// encoded in lower case.
package tx

import (
	"bytes"
	"crypto/ed25519"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"sort"

	"github.com/google/uuid"
	"github.com/gowebpki/jcs"
	"github.com/rpggio/focusstake/internal/address"
)

var (
	// ErrUnsigned is returned when a transaction carries no signature.
	ErrUnsigned = errors.New("transaction is not signed")
	// ErrBadSignature is returned when the signature does not verify.
	ErrBadSignature = errors.New("signature verification failed")
	// ErrDuplicateRole is returned when an account role is declared twice.
	ErrDuplicateRole = errors.New("account role declared twice")
)

// AccountMeta declares one account an instruction touches.
type AccountMeta struct {
	Role    string          `json:"role"`
	Address address.Address `json:"address"`
}

// Message is the signed part of a transaction.
type Message struct {
	Program     address.Address `json:"program"`
	Instruction string          `json:"instruction"`
	Args        json.RawMessage `json:"args,omitempty"`
	Accounts    []AccountMeta   `json:"accounts"`
	Signer      address.Address `json:"signer"`
	// Memo is a random nonce so identical requests get distinct signatures.
	Memo string `json:"memo"`
}

// Transaction is a message plus the signer's signature, hex encoded. The
// signature doubles as the transaction ID.
type Transaction struct {
	Message   Message `json:"message"`
	Signature string  `json:"signature"`
}

// New builds an unsigned transaction with a fresh memo. Accounts are
// ordered by role.
func New(program address.Address, instruction string, args any, accounts map[string]address.Address, signer address.Address) (*Transaction, error) {
	var raw json.RawMessage
	if args != nil {
		b, err := json.Marshal(args)
		if err != nil {
			return nil, fmt.Errorf("encode %s args: %w", instruction, err)
		}
		raw = b
	}
	metas := make([]AccountMeta, 0, len(accounts))
	for role, addr := range accounts {
		metas = append(metas, AccountMeta{Role: role, Address: addr})
	}
	sort.Slice(metas, func(i, j int) bool { return metas[i].Role < metas[j].Role })

	return &Transaction{Message: Message{
		Program:     program,
		Instruction: instruction,
		Args:        raw,
		Accounts:    metas,
		Signer:      signer,
		Memo:        uuid.NewString(),
	}}, nil
}

// AccountMap returns the declared accounts keyed by role.
func (m *Message) AccountMap() (map[string]address.Address, error) {
	out := make(map[string]address.Address, len(m.Accounts))
	for _, a := range m.Accounts {
		if _, dup := out[a.Role]; dup {
			return nil, fmt.Errorf("%w: %s", ErrDuplicateRole, a.Role)
		}
		out[a.Role] = a.Address
	}
	return out, nil
}

// envelope is the signed form of a Message. JCS writes numbers as
// doubles, so arguments enter only through ArgsHash.
type envelope struct {
	Program     address.Address `json:"program"`
	Instruction string          `json:"instruction"`
	ArgsHash    string          `json:"args_hash,omitempty"`
	Accounts    []AccountMeta   `json:"accounts"`
	Signer      address.Address `json:"signer"`
	Memo        string          `json:"memo"`
}

// Digest returns the SHA-256 of the canonical message.
func (m *Message) Digest() ([]byte, error) {
	env := envelope{
		Program:     m.Program,
		Instruction: m.Instruction,
		Accounts:    m.Accounts,
		Signer:      m.Signer,
		Memo:        m.Memo,
	}
	args, err := canonicalArgs(m.Args)
	if err != nil {
		return nil, err
	}
	if args != nil {
		sum := sha256.Sum256(args)
		env.ArgsHash = hex.EncodeToString(sum[:])
	}
	b, err := json.Marshal(env)
	if err != nil {
		return nil, fmt.Errorf("encode message: %w", err)
	}
	canonical, err := jcs.Transform(b)
	if err != nil {
		return nil, fmt.Errorf("canonicalize message: %w", err)
	}
	sum := sha256.Sum256(canonical)
	return sum[:], nil
}

// canonicalArgs re-encodes raw with sorted keys and no whitespace. Number
// literals are kept verbatim.
func canonicalArgs(raw json.RawMessage) ([]byte, error) {
	if len(bytes.TrimSpace(raw)) == 0 {
		return nil, nil
	}
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	var v any
	if err := dec.Decode(&v); err != nil {
		return nil, fmt.Errorf("decode args: %w", err)
	}
	if _, err := dec.Token(); err != io.EOF {
		return nil, errors.New("decode args: trailing data")
	}
	b, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("encode args: %w", err)
	}
	return b, nil
}

// Sign signs the transaction with priv, which must belong to the signer.
func (t *Transaction) Sign(priv ed25519.PrivateKey) error {
	if address.FromPublicKey(priv.Public().(ed25519.PublicKey)) != t.Message.Signer {
		return fmt.Errorf("key does not belong to signer %s", t.Message.Signer.Short())
	}
	digest, err := t.Message.Digest()
	if err != nil {
		return err
	}
	t.Signature = hex.EncodeToString(ed25519.Sign(priv, digest))
	return nil
}

// Verify checks the signature against the signer's public key. The
// signature doubles as the transaction ID, so only its lower-case hex form
// is accepted.
func (t *Transaction) Verify() error {
	if t.Signature == "" {
		return ErrUnsigned
	}
	sig, err := hex.DecodeString(t.Signature)
	if err != nil {
		return fmt.Errorf("%w: decode signature: %v", ErrBadSignature, err)
	}
	if len(sig) != ed25519.SignatureSize {
		return fmt.Errorf("%w: invalid signature length %d", ErrBadSignature, len(sig))
	}
	if hex.EncodeToString(sig) != t.Signature {
		return fmt.Errorf("%w: signature is not lower-case hex", ErrBadSignature)
	}
	digest, err := t.Message.Digest()
	if err != nil {
		return err
	}
	if !ed25519.Verify(t.Message.Signer.PublicKey(), digest, sig) {
		return ErrBadSignature
	}
	return nil
}

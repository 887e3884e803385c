// Package idl holds the program interface description: instruction names,
// the accounts each instruction declares and a JSON Schema for its arguments.
package idl

import (
	"bytes"
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"sync"

	"github.com/kaptinlin/jsonschema"
)

//go:embed idl.json
var raw []byte

// ErrUnknownInstruction is returned for a name the interface does not define.
var ErrUnknownInstruction = errors.New("unknown instruction")

// AccountSpec describes one account slot of an instruction.
type AccountSpec struct {
	Name     string `json:"name"`
	Writable bool   `json:"writable,omitempty"`
	Signer   bool   `json:"signer,omitempty"`
}

// Instruction describes one program instruction.
type Instruction struct {
	Name     string          `json:"name"`
	Docs     string          `json:"docs,omitempty"`
	Accounts []AccountSpec   `json:"accounts"`
	Args     json.RawMessage `json:"args"`

	schema *jsonschema.Schema
}

// SignerRole returns the account role that must sign the instruction.
func (i *Instruction) SignerRole() string {
	for _, a := range i.Accounts {
		if a.Signer {
			return a.Name
		}
	}
	return ""
}

// ValidateArgs checks data against the argument schema. Empty data is
// treated as an empty object.
func (i *Instruction) ValidateArgs(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		data = []byte("{}")
	}
	result := i.schema.ValidateJSON(data)
	if result.IsValid() {
		return nil
	}
	return fmt.Errorf("%s arguments: %v", i.Name, result.Errors)
}

// IDL is the parsed interface description.
type IDL struct {
	Name         string        `json:"name"`
	Version      string        `json:"version"`
	Instructions []Instruction `json:"instructions"`

	byName map[string]*Instruction
}

// Instruction looks up an instruction by name.
func (d *IDL) Instruction(name string) (*Instruction, error) {
	ins, ok := d.byName[name]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownInstruction, name)
	}
	return ins, nil
}

// Raw returns the embedded interface document.
func Raw() []byte {
	return raw
}

// Parse decodes an interface document and compiles its argument schemas.
func Parse(data []byte) (*IDL, error) {
	var d IDL
	if err := json.Unmarshal(data, &d); err != nil {
		return nil, fmt.Errorf("decode idl: %w", err)
	}
	compiler := jsonschema.NewCompiler()
	d.byName = make(map[string]*Instruction, len(d.Instructions))
	for i := range d.Instructions {
		ins := &d.Instructions[i]
		schema, err := compiler.Compile(ins.Args)
		if err != nil {
			return nil, fmt.Errorf("compile %s args schema: %w", ins.Name, err)
		}
		ins.schema = schema
		d.byName[ins.Name] = ins
	}
	return &d, nil
}

var (
	loadOnce sync.Once
	loaded   *IDL
	loadErr  error
)

// Load returns the embedded interface description.
func Load() (*IDL, error) {
	loadOnce.Do(func() {
		loaded, loadErr = Parse(raw)
	})
	return loaded, loadErr
}

// MustLoad is Load for callers that cannot recover from a broken build.
func MustLoad() *IDL {
	d, err := Load()
	if err != nil {
		panic(err)
	}
	return d
}

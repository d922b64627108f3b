package cli

import (
	"bytes"
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/roach88/tokenx/internal/engine"
	"github.com/roach88/tokenx/internal/ir"
)

// Script is a batch of registry commands read from YAML.
//
//	addresses:
//	  alice: "0x00000000000000000000000000000000000a11ce"
//	commands:
//	  - op: create
//	    to: alice
//	    pair: true
//	  - op: transfer
//	    from: alice
//	    to: "0x0000000000000000000000000000000000000b0b"
//	    token: 1
type Script struct {
	// Addresses names addresses so commands can refer to them by name.
	Addresses map[string]string `yaml:"addresses"`

	Commands []ScriptCommand `yaml:"commands"`
}

// ScriptCommand is one entry of a script.
type ScriptCommand struct {
	Op        string `yaml:"op"` // "create" | "transfer"
	From      string `yaml:"from,omitempty"`
	To        string `yaml:"to"`
	Pair      bool   `yaml:"pair,omitempty"`
	Token     uint64 `yaml:"token,omitempty"`
	RequestID string `yaml:"request_id,omitempty"`
}

// LoadScript reads and parses a script file. Unknown fields are rejected.
func LoadScript(path string) (*Script, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read script: %w", err)
	}
	return ParseScript(data)
}

// ParseScript parses script YAML.
func ParseScript(data []byte) (*Script, error) {
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)

	var s Script
	if err := dec.Decode(&s); err != nil {
		return nil, fmt.Errorf("parse script: %w", err)
	}
	if len(s.Commands) == 0 {
		return nil, fmt.Errorf("parse script: no commands")
	}
	return &s, nil
}

// EngineCommands converts the script to engine commands, resolving named
// addresses.
func (s *Script) EngineCommands() ([]engine.Command, error) {
	out := make([]engine.Command, 0, len(s.Commands))
	for i, c := range s.Commands {
		cmd, err := s.engineCommand(c)
		if err != nil {
			return nil, fmt.Errorf("command %d (%s): %w", i+1, c.Op, err)
		}
		out = append(out, cmd)
	}
	return out, nil
}

func (s *Script) engineCommand(c ScriptCommand) (engine.Command, error) {
	to, err := s.resolve(c.To)
	if err != nil {
		return engine.Command{}, fmt.Errorf("to: %w", err)
	}

	switch strings.ToLower(c.Op) {
	case "create":
		if c.From != "" || c.Token != 0 {
			return engine.Command{}, fmt.Errorf("create takes only to and pair")
		}
		return engine.Command{Kind: engine.CommandCreate, RequestID: c.RequestID, To: to, Pair: c.Pair}, nil

	case "transfer":
		from, err := s.resolve(c.From)
		if err != nil {
			return engine.Command{}, fmt.Errorf("from: %w", err)
		}
		if c.Token == 0 {
			return engine.Command{}, fmt.Errorf("transfer needs a token")
		}
		return engine.Command{
			Kind:      engine.CommandTransfer,
			RequestID: c.RequestID,
			From:      from,
			To:        to,
			TokenID:   ir.TokenID(c.Token),
		}, nil

	default:
		return engine.Command{}, fmt.Errorf("unknown op %q", c.Op)
	}
}

// resolve maps a name from Addresses or parses a literal address. "zero"
// is always the zero address.
func (s *Script) resolve(ref string) (ir.Address, error) {
	if ref == "zero" {
		return ir.ZeroAddress, nil
	}
	if addr, ok := s.Addresses[ref]; ok {
		return ir.ParseAddress(addr)
	}
	return ir.ParseAddress(ref)
}

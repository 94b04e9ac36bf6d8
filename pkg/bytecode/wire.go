package bytecode

import (
	"bytes"
	"errors"
	"fmt"

	"github.com/fxamacker/cbor/v2"
)

// ErrBadProgram is returned when serialized program bytes are malformed.
var ErrBadProgram = errors.New("bad program encoding")

var cborEncMode cbor.EncMode

func init() {
	em, err := cbor.CanonicalEncOptions().EncMode()
	if err != nil {
		panic(fmt.Sprintf("bytecode: failed to create CBOR enc mode: %v", err))
	}
	cborEncMode = em
}

// MarshalProgram serializes a program as ProgramMagic followed by its
// canonical CBOR encoding.
func MarshalProgram(p *Program) ([]byte, error) {
	body, err := cborEncMode.Marshal(p)
	if err != nil {
		return nil, fmt.Errorf("bytecode: marshal program: %w", err)
	}
	out := make([]byte, 0, len(ProgramMagic)+len(body))
	out = append(out, ProgramMagic...)
	return append(out, body...), nil
}

// UnmarshalProgram deserializes bytes produced by MarshalProgram.
func UnmarshalProgram(data []byte) (*Program, error) {
	if !bytes.HasPrefix(data, ProgramMagic) {
		return nil, fmt.Errorf("%w: missing magic", ErrBadProgram)
	}
	var p Program
	if err := cbor.Unmarshal(data[len(ProgramMagic):], &p); err != nil {
		return nil, fmt.Errorf("bytecode: unmarshal program: %w", err)
	}
	if p.Version != ProgramVersion {
		return nil, fmt.Errorf("%w: version %d, want %d", ErrBadProgram, p.Version, ProgramVersion)
	}
	return &p, nil
}

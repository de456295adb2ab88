package codegen

import (
	"bytes"

	"github.com/xplshn/lumen/pkg/asm"
	"github.com/xplshn/lumen/pkg/config"
)

// Backend is the interface that all code generation backends must implement.
type Backend interface {
	// Generate takes a lowered program and a configuration, and produces the
	// target assembly as a byte buffer.
	Generate(prog *asm.Program, cfg *config.Config) (*bytes.Buffer, error)
}

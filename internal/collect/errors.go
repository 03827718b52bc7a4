package collect

import (
	"fmt"

	"github.com/pkg/errors"

	"github.com/fmeum/unbox/internal/ast"
)

// ErrConflictingDeclarations is reported when a tracked name is declared
// more than once at module level.
var ErrConflictingDeclarations = errors.New("conflicting declarations")

// ConfigError is a problem with how a construct is tracked in one file.
// Extraction continues for the other constructs.
type ConfigError struct {
	File      string
	Pos       ast.Pos
	Construct string
	Err       error
}

func (e *ConfigError) Error() string {
	if e.Pos.IsValid() {
		return fmt.Sprintf("%s:%s: %s: %v", e.File, e.Pos, e.Construct, e.Err)
	}
	return fmt.Sprintf("%s: %s: %v", e.File, e.Construct, e.Err)
}

func (e *ConfigError) Unwrap() error { return e.Err }

package triage

import (
	"errors"
	"fmt"
	"path/filepath"

	"github.com/google/uuid"
)

const (
	manualUploadPrefix = "manual_upload_"
	defaultExtension   = ".jpg"
	maxNameAttempts    = 5
)

// ErrNameExhausted is returned when no collision-free upload name could be generated.
var ErrNameExhausted = errors.New("could not generate a unique upload name")

// Namer resolves collision-free storage keys for manual uploads.
type Namer struct {
	token func() string
}

// NewNamer returns a Namer backed by random UUIDs.
func NewNamer() *Namer {
	return &Namer{token: func() string { return uuid.NewString() }}
}

// Resolve returns filename unchanged when it is non-empty and unused, otherwise
// a generated manual_upload_<token><ext> name that is not in processed.
func (n *Namer) Resolve(filename string, processed NameSet) (string, error) {
	if filename != "" && !processed.Has(filename) {
		return filename, nil
	}

	ext := filepath.Ext(filename)
	if ext == "" {
		ext = defaultExtension
	}

	for range maxNameAttempts {
		name := manualUploadPrefix + n.token() + ext
		if !processed.Has(name) {
			return name, nil
		}
	}
	return "", fmt.Errorf("%w after %d attempts", ErrNameExhausted, maxNameAttempts)
}

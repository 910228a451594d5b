// Package blobstore holds the image storage backends the triage service reads
// studies from and writes manual uploads to.
package blobstore

import (
	"errors"
	"fmt"
	"path"
	"strings"
)

// ErrNotFound is returned by Get when no object exists under the name.
var ErrNotFound = errors.New("blob not found")

// validName rejects names that would escape the store's namespace.
func validName(name string) error {
	if strings.TrimSpace(name) == "" {
		return errors.New("blob name is required")
	}
	if strings.ContainsAny(name, `/\`) || name == "." || name == ".." || path.Clean(name) != name {
		return fmt.Errorf("invalid blob name %q", name)
	}
	return nil
}

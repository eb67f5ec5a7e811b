// Package file provides a JSON file store of workflows for local development and tests.
package file

import (
	"context"
	"os"
	"strings"
)

// Persistence implements persistence.Persistence on a directory of JSON files. It is safe for use
// by one process only.
type Persistence struct {
	*WorkflowRepository

	root string
}

// NewPersistence stores workflows under root, which may carry a file:// prefix.
func NewPersistence(root string) *Persistence {
	cleanRoot := strings.Replace(root, "file://", "", 1)

	return &Persistence{
		WorkflowRepository: NewWorkflowRepository(cleanRoot),
		root:               cleanRoot,
	}
}

// Close performs any necessary cleanup. For file-based persistence, there is nothing to clean up.
func (fp *Persistence) Close(_ context.Context) error {
	return nil
}

// HealthCheck checks if the file persistence layer is healthy by verifying the root directory exists.
func (fp *Persistence) HealthCheck(_ context.Context) error {
	if _, err := os.Stat(fp.root); os.IsNotExist(err) {
		return os.ErrNotExist
	}

	return nil
}

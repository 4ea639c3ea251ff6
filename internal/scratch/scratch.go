// Package scratch manages the transient directories that deliveries own.
package scratch

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
)

// dirPrefix marks directories the janitor is allowed to sweep.
const dirPrefix = "dl_"

// New creates a fresh scratch directory under root. The name carries a
// timestamp plus a uuid suffix so concurrent deliveries never collide.
func New(root string) (string, error) {
	name := fmt.Sprintf("%s%d_%s", dirPrefix, time.Now().UnixNano(), uuid.NewString()[:8])
	dir := filepath.Join(root, name)
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return "", fmt.Errorf("create scratch dir: %w", err)
	}
	return dir, nil
}

// Remove deletes a scratch directory. Failures are deliberately swallowed;
// no delivery outcome depends on cleanup succeeding.
func Remove(dir string) {
	if dir == "" {
		return
	}
	_ = os.RemoveAll(dir)
}

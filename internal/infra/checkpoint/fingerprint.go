package checkpoint

import (
	"fmt"

	"github.com/spf13/afero"
)

// Fingerprint identifies an input file by size and modification time.
// A changed file invalidates any checkpoint taken against it.
func Fingerprint(fs afero.Fs, path string) (string, error) {
	info, err := fs.Stat(path)
	if err != nil {
		return "", fmt.Errorf("stat input: %w", err)
	}
	return fmt.Sprintf("%d_%d", info.Size(), info.ModTime().UnixNano()), nil
}

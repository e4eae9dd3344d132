package source

import (
	"fmt"
	"os"
)

// readLocal reads a dataset from the local filesystem.
func readLocal(path string) ([]byte, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("invalid local path %s: %w", path, err)
	}
	if info.IsDir() {
		return nil, fmt.Errorf("local path %s is a directory", path)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read file: %w", err)
	}
	return data, nil
}

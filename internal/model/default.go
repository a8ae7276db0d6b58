package model

import (
	_ "embed"
	"fmt"
	"os"
)

//go:embed sleep_calculator.json
var defaultArtifact []byte

// Default returns the sample model compiled into the binary.
func Default() *Linear {
	l, err := Parse(defaultArtifact, ".json")
	if err != nil {
		panic(fmt.Sprintf("embedded model is invalid: %v", err))
	}
	return l
}

// WriteDefault writes the sample model to path so it can be edited and loaded
// with --model.
func WriteDefault(path string) error {
	if err := os.WriteFile(path, defaultArtifact, 0o644); err != nil {
		return fmt.Errorf("failed to write model file: %w", err)
	}
	return nil
}

package main

import (
	"encoding/json"
	"os"

	"github.com/irisccy/rise/deriv"
)

// writeBundle serializes the compiled bundle as indented JSON, to the
// given file or stdout.
func writeBundle(b *deriv.Bundle, path string) error {
	out := os.Stdout
	if path != "" {
		f, err := os.Create(path)
		if err != nil {
			return err
		}
		defer f.Close()
		out = f
	}
	enc := json.NewEncoder(out)
	enc.SetIndent("", "  ")
	return enc.Encode(b)
}

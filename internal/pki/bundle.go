package pki

import (
	"encoding/pem"
	"fmt"
	"os"
)

// BuildBundle writes every certificate found in certPaths, in order, to a
// single PEM file. The order is the order a pinned chain must be presented in.
func BuildBundle(outPath string, certPaths ...string) error {
	var blocks []*pem.Block
	for _, p := range certPaths {
		data, err := os.ReadFile(p)
		if err != nil {
			return fmt.Errorf("read %s: %w", p, err)
		}
		found := 0
		for {
			var block *pem.Block
			block, data = pem.Decode(data)
			if block == nil {
				break
			}
			if block.Type != "CERTIFICATE" {
				continue
			}
			blocks = append(blocks, &pem.Block{Type: block.Type, Bytes: block.Bytes})
			found++
		}
		if found == 0 {
			return fmt.Errorf("no certificates in %s", p)
		}
	}

	out, err := os.OpenFile(outPath, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0o644)
	if err != nil {
		return fmt.Errorf("create bundle: %w", err)
	}
	defer out.Close()

	for _, b := range blocks {
		if err := pem.Encode(out, b); err != nil {
			return fmt.Errorf("write bundle: %w", err)
		}
	}
	return nil
}

// Package metadata writes the small ".meta" sidecar file that accompanies
// an encrypted upload, so a restore can tell whether (and how) to decrypt
// the object before decompressing it.
package metadata

import (
	"encoding/json"
	"fmt"
	"os"
)

// Sidecar describes the cipher applied to an uploaded artifact.
type Sidecar struct {
	Encrypted bool   `json:"encrypted"`
	Algorithm string `json:"algorithm,omitempty"`
}

// Encode serializes sidecar to the bytes that get uploaded as <key>.meta.
func Encode(sidecar Sidecar) ([]byte, error) {
	data, err := json.MarshalIndent(sidecar, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("metadata: marshal sidecar: %w", err)
	}
	return data, nil
}

// Decode parses sidecar bytes fetched from a <key>.meta object.
func Decode(data []byte) (*Sidecar, error) {
	var sidecar Sidecar
	if err := json.Unmarshal(data, &sidecar); err != nil {
		return nil, fmt.Errorf("metadata: parse sidecar: %w", err)
	}
	return &sidecar, nil
}

// Write serializes sidecar to <artifactPath>.meta.
func Write(artifactPath string, sidecar Sidecar) error {
	data, err := Encode(sidecar)
	if err != nil {
		return err
	}
	if err := os.WriteFile(artifactPath+".meta", data, 0644); err != nil {
		return fmt.Errorf("metadata: write sidecar: %w", err)
	}
	return nil
}

// Read loads the sidecar for artifactPath, if one exists.
func Read(artifactPath string) (*Sidecar, error) {
	data, err := os.ReadFile(artifactPath + ".meta")
	if err != nil {
		return nil, fmt.Errorf("metadata: read sidecar: %w", err)
	}
	return Decode(data)
}

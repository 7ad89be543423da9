package fingerprint

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"

	"github.com/myschema/myschema/ir"
)

// SchemaFingerprint represents a fingerprint of a database schema state
type SchemaFingerprint struct {
	Hash string `json:"hash"` // SHA256 of the snapshot's JSON form
}

// ComputeFingerprint generates a fingerprint for the given snapshot. Map keys are
// marshalled in sorted order, so equal snapshots always hash equally.
func ComputeFingerprint(snapshot *ir.Snapshot) (*SchemaFingerprint, error) {
	if snapshot == nil {
		return nil, fmt.Errorf("failed to compute schema hash: nil snapshot")
	}
	hash, err := hashObject(snapshot)
	if err != nil {
		return nil, fmt.Errorf("failed to compute schema hash: %w", err)
	}
	return &SchemaFingerprint{Hash: hash}, nil
}

// Checksum returns the lower-case hex SHA-256 of a migration script, as stored in the ledger
func Checksum(script string) string {
	sum := sha256.Sum256([]byte(script))
	return hex.EncodeToString(sum[:])
}

// Compare compares two schema fingerprints and returns an error if they don't match
func Compare(expected, actual *SchemaFingerprint) error {
	if expected.Hash == actual.Hash {
		return nil
	}
	return fmt.Errorf("schema fingerprint mismatch - expected: %s, actual: %s",
		preview(expected.Hash), preview(actual.Hash))
}

func hashObject(obj any) (string, error) {
	data, err := json.Marshal(obj)
	if err != nil {
		return "", err
	}
	hash := sha256.Sum256(data)
	return fmt.Sprintf("%x", hash), nil
}

func preview(hash string) string {
	if len(hash) > 16 {
		return hash[:16]
	}
	return hash
}

// String returns a human-readable representation of the fingerprint
func (f *SchemaFingerprint) String() string {
	if len(f.Hash) >= 8 {
		return fmt.Sprintf("Schema fingerprint: %s", f.Hash[:8])
	}
	return fmt.Sprintf("Schema fingerprint: %s", f.Hash)
}

package store

import (
	"crypto/sha256"
	"encoding/json"
	"fmt"

	"github.com/hurttlocker/holdings/internal/source"
)

// HashDatasets computes a SHA-256 over the canonical JSON of all three
// datasets. Re-importing identical data yields the same hash.
func HashDatasets(ds *source.Datasets) (string, error) {
	h := sha256.New()
	parts := []any{ds.Titles, ds.HardCopy, ds.Microfilm}
	for _, part := range parts {
		// encoding/json sorts map keys, so the encoding is stable
		data, err := json.Marshal(part)
		if err != nil {
			return "", fmt.Errorf("hashing datasets: %w", err)
		}
		h.Write(data)
		h.Write([]byte{0})
	}
	return fmt.Sprintf("%x", h.Sum(nil)), nil
}

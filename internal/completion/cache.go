package completion

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"

	"entrypass/internal/entry/models"
)

// IdentityFunc derives the cache invalidation key from a record's content.
// Two structurally identical records must produce the same identity;
// any changed field must produce a different one.
type IdentityFunc func(record *models.EntryRecord) string

// ContentIdentity is the default identity: a SHA-256 over the record's JSON
// encoding. encoding/json writes map keys in sorted order, so the encoding
// is canonical for our field maps.
func ContentIdentity(record *models.EntryRecord) string {
	if record == nil {
		return "empty"
	}
	data, err := json.Marshal(record)
	if err != nil {
		// Unmarshalable content cannot be proven unchanged; an empty
		// identity never matches, forcing recomputation.
		return ""
	}
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}

type cacheEntry struct {
	identity string
	metrics  Metrics
}

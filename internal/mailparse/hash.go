package mailparse

import (
	"bytes"
	"crypto/md5"
	"encoding/hex"
	"encoding/json"

	"smtp-forensics/internal/models"
)

// ContentHash fingerprints a record independently of where it was read
// from. Keys are sorted at every level before hashing.
func ContentHash(rec *models.EmailRecord) string {
	clone := *rec
	clone.ContentHash = ""
	clone.Source = ""
	clone.ParseMode = ""

	canonical, err := canonicalJSON(clone)
	if err != nil {
		return ""
	}
	sum := md5.Sum(canonical)
	return hex.EncodeToString(sum[:])
}

// canonicalJSON re-encodes v through generic maps, which encoding/json
// always writes with sorted keys.
func canonicalJSON(v any) ([]byte, error) {
	raw, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}

	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	var generic any
	if err := dec.Decode(&generic); err != nil {
		return nil, err
	}
	return json.Marshal(generic)
}

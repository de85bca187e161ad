package mailparse

import (
	"crypto/md5"
	"crypto/sha256"
	"encoding/hex"

	"smtp-forensics/internal/models"

	"github.com/gabriel-vasile/mimetype"
)

// HashPayload returns the MD5 and SHA-256 hex digests of a decoded payload.
func HashPayload(payload []byte) (string, string) {
	md5Sum := md5.Sum(payload)
	shaSum := sha256.Sum256(payload)
	return hex.EncodeToString(md5Sum[:]), hex.EncodeToString(shaSum[:])
}

// newAttachment describes a leaf classified as attachment. Empty payloads
// carry no hashes and no detected type.
func newAttachment(l Leaf, filename string) models.AttachmentRecord {
	att := models.AttachmentRecord{
		Filename:  filename,
		SizeBytes: len(l.Payload),
	}
	if l.MediaType != "" {
		ct := l.MediaType
		att.ContentType = &ct
	}
	if l.Disposition != "" {
		d := l.Disposition
		att.ContentDisposition = &d
	}
	if len(l.Payload) > 0 {
		md5Hex, shaHex := HashPayload(l.Payload)
		detected := mimetype.Detect(l.Payload).String()
		att.MD5 = &md5Hex
		att.SHA256 = &shaHex
		att.DetectedType = &detected
	}
	return att
}

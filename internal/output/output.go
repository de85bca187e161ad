package output

import (
	"bufio"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"smtp-forensics/internal/bulk"
	"smtp-forensics/internal/models"
)

// WriteJSON writes v as an indented UTF-8 JSON document. Non-ASCII text and
// markup are written as is.
func WriteJSON(path string, v any) error {
	if err := ensureDir(path); err != nil {
		return err
	}
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", path, err)
	}

	w := bufio.NewWriter(f)
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	enc.SetEscapeHTML(false)
	if err := enc.Encode(v); err != nil {
		f.Close()
		return fmt.Errorf("failed to encode %s: %w", path, err)
	}
	if err := w.Flush(); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

// ReadJSON decodes the JSON document at path into v
func ReadJSON(path string, v any) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("failed to decode %s: %w", path, err)
	}
	return nil
}

// ReadUnified reads back a unified document array written by WriteJSON.
func ReadUnified(path string) ([]models.UnifiedDocument, error) {
	var docs []models.UnifiedDocument
	if err := ReadJSON(path, &docs); err != nil {
		return nil, err
	}
	return docs, nil
}

// ReadEmails reads back an email record array.
func ReadEmails(path string) ([]models.EmailRecord, error) {
	var records []models.EmailRecord
	if err := ReadJSON(path, &records); err != nil {
		return nil, err
	}
	return records, nil
}

// WriteNDJSON writes the prepared bulk stream of one index.
func WriteNDJSON(path string, prepared bulk.Prepared) error {
	if err := ensureDir(path); err != nil {
		return err
	}
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", path, err)
	}
	if err := bulk.WriteNDJSON(f, prepared.Items); err != nil {
		f.Close()
		return fmt.Errorf("failed to write %s: %w", path, err)
	}
	return f.Close()
}

func ensureDir(path string) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("failed to create directory %s: %w", dir, err)
	}
	return nil
}

package bulk

import (
	"bytes"
	"crypto/md5"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"net/netip"
	"strconv"
	"strings"
	"time"

	"smtp-forensics/internal/logging"
)

// ErrCoercion is wrapped with the offending path when a value cannot be
// converted to its schema kind.
var ErrCoercion = errors.New("field coercion failed")

// Document id modes
const (
	IDSequence = "sequence"
	IDHash     = "hash"
)

// Hasher is implemented by records carrying their own content hash
type Hasher interface {
	DocumentHash() string
}

// Item is one action/document pair of a bulk request.
type Item struct {
	ID     string
	Action []byte
	Doc    []byte
}

// Size is the number of bytes the item adds to a bulk body
func (i Item) Size() int {
	return len(i.Action) + len(i.Doc) + 2
}

type Prepared struct {
	Index string
	Items []Item
}

type PrepareStats struct {
	Input    int `json:"input"`
	Prepared int `json:"prepared"`
	Skipped  int `json:"skipped"`
}

// Preparer turns records into bulk items for one index.
type Preparer struct {
	Index  string
	IDMode string
	Schema Schema
}

func NewPreparer(index, idMode string, schema Schema) *Preparer {
	if idMode == "" {
		idMode = IDSequence
	}
	return &Preparer{Index: index, IDMode: idMode, Schema: schema}
}

// Records converts a typed slice for Prepare
func Records[T any](items []T) []any {
	out := make([]any, len(items))
	for i := range items {
		out[i] = items[i]
	}
	return out
}

// Prepare strips nulls, coerces fields and assigns ids. A record failing
// coercion is skipped and logged; sequence ids stay tied to input position.
func (p *Preparer) Prepare(records []any) (Prepared, PrepareStats) {
	prepared := Prepared{Index: p.Index, Items: make([]Item, 0, len(records))}
	stats := PrepareStats{Input: len(records)}

	for i, rec := range records {
		item, err := p.prepareOne(i+1, rec)
		if err != nil {
			stats.Skipped++
			logging.Log.WithField("index", p.Index).WithField("position", i+1).Warnf("Skipping record: %v", err)
			continue
		}
		prepared.Items = append(prepared.Items, item)
		stats.Prepared++
	}

	return prepared, stats
}

func (p *Preparer) prepareOne(seq int, rec any) (Item, error) {
	doc, err := toGeneric(rec)
	if err != nil {
		return Item{}, err
	}
	doc = StripNulls(doc)

	for _, path := range p.Schema.Paths() {
		if err := coercePath(doc, strings.Split(path, "."), p.Schema[path]); err != nil {
			return Item{}, fmt.Errorf("%w: %s: %v", ErrCoercion, path, err)
		}
	}

	docBytes, err := encode(doc)
	if err != nil {
		return Item{}, err
	}

	id := p.documentID(seq, rec, docBytes)
	action, err := encode(actionLine{Index: actionMeta{Index: p.Index, ID: id}})
	if err != nil {
		return Item{}, err
	}

	return Item{ID: id, Action: action, Doc: docBytes}, nil
}

func (p *Preparer) documentID(seq int, rec any, doc []byte) string {
	if p.IDMode != IDHash {
		return strconv.Itoa(seq)
	}
	if h, ok := rec.(Hasher); ok && h.DocumentHash() != "" {
		return h.DocumentHash()
	}
	sum := md5.Sum(doc)
	return hex.EncodeToString(sum[:])
}

type actionMeta struct {
	Index string `json:"_index"`
	ID    string `json:"_id"`
}

type actionLine struct {
	Index actionMeta `json:"index"`
}

// toGeneric round-trips rec through JSON so fields can be addressed by path
func toGeneric(rec any) (map[string]any, error) {
	raw, err := json.Marshal(rec)
	if err != nil {
		return nil, fmt.Errorf("marshal record: %w", err)
	}
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()

	var doc map[string]any
	if err := dec.Decode(&doc); err != nil {
		return nil, fmt.Errorf("record is not a JSON object: %w", err)
	}
	return doc, nil
}

// encode writes compact JSON without HTML escaping and without the trailing newline
func encode(v any) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(v); err != nil {
		return nil, err
	}
	return bytes.TrimRight(buf.Bytes(), "\n"), nil
}

// StripNulls removes null members from objects at every depth. Empty
// objects and arrays are kept.
func StripNulls(doc map[string]any) map[string]any {
	for k, v := range doc {
		if v == nil {
			delete(doc, k)
			continue
		}
		doc[k] = stripValue(v)
	}
	return doc
}

func stripValue(v any) any {
	switch t := v.(type) {
	case map[string]any:
		return StripNulls(t)
	case []any:
		out := t[:0]
		for _, e := range t {
			if e != nil {
				out = append(out, stripValue(e))
			}
		}
		return out
	default:
		return v
	}
}

func coercePath(node any, parts []string, kind Kind) error {
	switch t := node.(type) {
	case []any:
		for _, e := range t {
			if err := coercePath(e, parts, kind); err != nil {
				return err
			}
		}
		return nil
	case map[string]any:
		v, ok := t[parts[0]]
		if !ok {
			return nil
		}
		if len(parts) > 1 {
			return coercePath(v, parts[1:], kind)
		}
		coerced, err := coerceValue(v, kind)
		if err != nil {
			return err
		}
		t[parts[0]] = coerced
		return nil
	default:
		return fmt.Errorf("cannot descend into %T", node)
	}
}

func coerceValue(v any, kind Kind) (any, error) {
	if arr, ok := v.([]any); ok && kind != Object {
		for i, e := range arr {
			c, err := coerceValue(e, kind)
			if err != nil {
				return nil, err
			}
			arr[i] = c
		}
		return arr, nil
	}

	switch kind {
	case Integer:
		return toInteger(v)
	case Float:
		return toFloat(v)
	case Boolean:
		return toBoolean(v)
	case IP:
		s, ok := v.(string)
		if !ok {
			return nil, fmt.Errorf("ip must be a string, got %T", v)
		}
		addr, err := netip.ParseAddr(strings.TrimSpace(s))
		if err != nil {
			return nil, err
		}
		return addr.String(), nil
	case Date:
		return toDate(v)
	case Keyword, Text:
		switch t := v.(type) {
		case string:
			return t, nil
		case json.Number:
			return t.String(), nil
		case bool:
			return strconv.FormatBool(t), nil
		}
		return nil, fmt.Errorf("%s must be a scalar, got %T", kind, v)
	case Object:
		switch v.(type) {
		case map[string]any, []any:
			return v, nil
		}
		return nil, fmt.Errorf("object expected, got %T", v)
	}
	return v, nil
}

func toInteger(v any) (any, error) {
	switch t := v.(type) {
	case json.Number:
		if n, err := t.Int64(); err == nil {
			return n, nil
		}
		f, err := t.Float64()
		if err != nil || f != float64(int64(f)) {
			return nil, fmt.Errorf("%q is not an integer", t.String())
		}
		return int64(f), nil
	case string:
		n, err := strconv.ParseInt(strings.TrimSpace(t), 10, 64)
		if err != nil {
			return nil, fmt.Errorf("%q is not an integer", t)
		}
		return n, nil
	}
	return nil, fmt.Errorf("integer expected, got %T", v)
}

func toFloat(v any) (any, error) {
	switch t := v.(type) {
	case json.Number:
		return t, nil
	case string:
		if _, err := strconv.ParseFloat(strings.TrimSpace(t), 64); err != nil {
			return nil, fmt.Errorf("%q is not a number", t)
		}
		return json.Number(strings.TrimSpace(t)), nil
	}
	return nil, fmt.Errorf("number expected, got %T", v)
}

func toBoolean(v any) (any, error) {
	switch t := v.(type) {
	case bool:
		return t, nil
	case string:
		b, err := strconv.ParseBool(strings.TrimSpace(t))
		if err != nil {
			return nil, fmt.Errorf("%q is not a boolean", t)
		}
		return b, nil
	}
	return nil, fmt.Errorf("boolean expected, got %T", v)
}

func toDate(v any) (any, error) {
	switch t := v.(type) {
	case string:
		if _, err := time.Parse(time.RFC3339Nano, t); err != nil {
			return nil, fmt.Errorf("%q is not an RFC 3339 date", t)
		}
		return t, nil
	case json.Number:
		f, err := t.Float64()
		if err != nil {
			return nil, err
		}
		sec := int64(f)
		return time.Unix(sec, int64((f-float64(sec))*1e9)).UTC().Format(time.RFC3339Nano), nil
	}
	return nil, fmt.Errorf("date expected, got %T", v)
}

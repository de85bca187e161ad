package bulk

import (
	"bufio"
	"bytes"
	"io"
)

// Batches splits items into bulk payloads of at most maxDocs items and,
// when maxBytes is positive, at most maxBytes bytes. An item larger than
// maxBytes gets a batch of its own.
func Batches(items []Item, maxDocs, maxBytes int) [][]Item {
	if maxDocs < 1 {
		maxDocs = 1
	}

	var batches [][]Item
	var current []Item
	size := 0
	for _, item := range items {
		full := len(current) >= maxDocs || (maxBytes > 0 && len(current) > 0 && size+item.Size() > maxBytes)
		if full {
			batches = append(batches, current)
			current, size = nil, 0
		}
		current = append(current, item)
		size += item.Size()
	}
	if len(current) > 0 {
		batches = append(batches, current)
	}
	return batches
}

// WriteNDJSON writes each action line followed by its document line. Every
// line, including the last, ends with a newline.
func WriteNDJSON(w io.Writer, items []Item) error {
	bw := bufio.NewWriter(w)
	for _, item := range items {
		for _, line := range [][]byte{item.Action, item.Doc} {
			if _, err := bw.Write(line); err != nil {
				return err
			}
			if err := bw.WriteByte('\n'); err != nil {
				return err
			}
		}
	}
	return bw.Flush()
}

// Payload is the request body for one batch
func Payload(items []Item) []byte {
	var buf bytes.Buffer
	_ = WriteNDJSON(&buf, items)
	return buf.Bytes()
}

package models

// RawObject is one exported message object, read from disk or a mailbox.
type RawObject struct {
	Name string
	Data []byte
	Err  error
}

// EmailRecord represents a message reconstructed from one exported object
type EmailRecord struct {
	Source      string             `json:"source,omitempty"`
	MessageID   *string            `json:"message_id"`
	Date        *string            `json:"date"`
	Subject     *string            `json:"subject"`
	From        []string           `json:"from"`
	To          []string           `json:"to"`
	Cc          []string           `json:"cc"`
	Bcc         []string           `json:"bcc"`
	ContentType string             `json:"content_type"`
	BodyText    *string            `json:"body_text"`
	BodyHTML    *string            `json:"body_html"`
	Attachments []AttachmentRecord `json:"attachments"`
	ParseMode   string             `json:"parse_mode,omitempty"`
	ContentHash string             `json:"content_hash,omitempty"`
}

// AttachmentRecord is one non-body message part. Hashes cover the decoded payload.
type AttachmentRecord struct {
	Filename           string  `json:"filename"`
	ContentType        *string `json:"content_type"`
	SizeBytes          int     `json:"size"`
	MD5                *string `json:"md5,omitempty"`
	SHA256             *string `json:"sha256,omitempty"`
	ContentDisposition *string `json:"content_disposition"`
	DetectedType       *string `json:"detected_type,omitempty"`
}

// ParseStats accumulates the outcome of parsing a set of message objects.
// Values are merged with Merge so that parallel workers never share one.
type ParseStats struct {
	Attempted        int                 `json:"attempted"`
	Parsed           int                 `json:"parsed"`
	Failed           int                 `json:"failed"`
	SkippedSmall     int                 `json:"skipped_small"`
	Lenient          int                 `json:"lenient"`
	WithAttachments  int                 `json:"with_attachments"`
	TotalAttachments int                 `json:"total_attachments"`
	UniqueSenders    map[string]struct{} `json:"-"`
	UniqueRecipients map[string]struct{} `json:"-"`
}

// NewParseStats returns an empty accumulator.
func NewParseStats() ParseStats {
	return ParseStats{
		UniqueSenders:    make(map[string]struct{}),
		UniqueRecipients: make(map[string]struct{}),
	}
}

// Merge folds other into s.
func (s *ParseStats) Merge(other ParseStats) {
	if s.UniqueSenders == nil {
		s.UniqueSenders = make(map[string]struct{})
	}
	if s.UniqueRecipients == nil {
		s.UniqueRecipients = make(map[string]struct{})
	}
	s.Attempted += other.Attempted
	s.Parsed += other.Parsed
	s.Failed += other.Failed
	s.SkippedSmall += other.SkippedSmall
	s.Lenient += other.Lenient
	s.WithAttachments += other.WithAttachments
	s.TotalAttachments += other.TotalAttachments
	for k := range other.UniqueSenders {
		s.UniqueSenders[k] = struct{}{}
	}
	for k := range other.UniqueRecipients {
		s.UniqueRecipients[k] = struct{}{}
	}
}

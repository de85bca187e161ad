package flows

import (
	"testing"

	"smtp-forensics/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func intPtr(i int) *int { return &i }

func TestCanonicalCommand(t *testing.T) {
	tests := []struct {
		name     string
		input    *string
		expected *string
	}{
		{"Nil", nil, nil},
		{"Blank", strPtr("  "), nil},
		{"Exact", strPtr("rcpt"), strPtr("RCPT")},
		{"StartTLS", strPtr("STARTTLS"), strPtr("STARTTLS")},
		{"Contains", strPtr("XAUTH"), strPtr("AUTH")},
		{"Unknown", strPtr("BDAT"), strPtr(CommandOther)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, CanonicalCommand(tt.input))
		})
	}
}

func TestToDocument(t *testing.T) {
	rec := models.FlowRecord{
		Timestamp:        1690000000.5,
		SourceIP:         "10.0.0.5",
		SourcePort:       intPtr(54321),
		DestinationIP:    "10.0.0.9",
		DestinationPort:  intPtr(25),
		Protocol:         "SMTP",
		RequestCommand:   strPtr("MAIL"),
		RequestParameter: strPtr("FROM:<Alice@Example.com> SIZE=1024"),
	}

	doc := ToDocument(rec)
	require.NotNil(t, doc.Timestamp)
	assert.Equal(t, "2023-07-22T04:26:40.5Z", *doc.Timestamp)
	require.NotNil(t, doc.SMTPCommand)
	assert.Equal(t, "MAIL", *doc.SMTPCommand)
	require.NotNil(t, doc.MailFrom)
	assert.Equal(t, "Alice@Example.com", *doc.MailFrom)
	assert.Nil(t, doc.RcptTo)
	assert.False(t, doc.IsEncrypted)
	assert.Equal(t, StatusUnencrypted, doc.EncryptionStatus)
	assert.Equal(t, RecordRequest, doc.RecordType)
}

func TestIsEncrypted(t *testing.T) {
	tests := []struct {
		name     string
		rec      models.FlowRecord
		expected bool
	}{
		{"StartTLS request", models.FlowRecord{RequestCommand: strPtr("STARTTLS"), IsStartTLS: true}, true},
		{"TLS response", models.FlowRecord{ResponseCode: intPtr(220), ResponseText: strPtr("2.0.0 Ready to start TLS")}, true},
		{"Submission port", models.FlowRecord{DestinationPort: intPtr(587)}, true},
		{"Plain port 25", models.FlowRecord{DestinationPort: intPtr(25), RequestCommand: strPtr("DATA")}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, IsEncrypted(tt.rec))
		})
	}
}

func TestRecordKind(t *testing.T) {
	assert.Equal(t, RecordRequest, RecordKind(models.FlowRecord{RequestCommand: strPtr("EHLO")}))
	assert.Equal(t, RecordResponse, RecordKind(models.FlowRecord{ResponseCode: intPtr(250)}))
	assert.Equal(t, RecordUnknown, RecordKind(models.FlowRecord{}))
}

func TestEnvelopeAddress_Rcpt(t *testing.T) {
	doc := ToDocument(models.FlowRecord{
		SourceIP:         "10.0.0.5",
		DestinationIP:    "10.0.0.9",
		RequestCommand:   strPtr("RCPT"),
		RequestParameter: strPtr("TO:<bob@localhost>"),
	})
	require.NotNil(t, doc.RcptTo)
	assert.Equal(t, "bob@localhost", *doc.RcptTo)
	assert.Equal(t, "SMTP", doc.Protocol)
}

package flows

import (
	"math"
	"strings"
	"time"

	"smtp-forensics/internal/mailparse"
	"smtp-forensics/internal/models"
)

// Command labels of the traffic index; anything else is CommandOther
var knownCommands = []string{
	"EHLO", "HELO", "MAIL", "RCPT", "DATA", "QUIT", "RSET",
	"AUTH", "STARTTLS", "VRFY", "EXPN", "HELP", "NOOP",
}

const CommandOther = "OTHER"

const (
	RecordRequest  = "REQUEST"
	RecordResponse = "RESPONSE"
	RecordUnknown  = "UNKNOWN"

	StatusEncrypted   = "ENCRYPTED"
	StatusUnencrypted = "UNENCRYPTED"
)

// implicit TLS or submission ports
var tlsPorts = map[int]bool{465: true, 587: true, 993: true, 995: true}

// ToDocument derives the traffic index document for one record.
func ToDocument(rec models.FlowRecord) models.FlowDocument {
	doc := models.FlowDocument{
		Timestamp:            isoTimestamp(rec.Timestamp),
		FrameTimeEpoch:       rec.Timestamp,
		SourceIP:             rec.SourceIP,
		SourcePort:           rec.SourcePort,
		DestinationIP:        rec.DestinationIP,
		DestinationPort:      rec.DestinationPort,
		SMTPCommand:          CanonicalCommand(rec.RequestCommand),
		SMTPParameter:        rec.RequestParameter,
		ResponseCode:         rec.ResponseCode,
		ResponseMessage:      rec.ResponseText,
		IsStartTLS:           rec.IsStartTLS,
		IsEncrypted:          IsEncrypted(rec),
		Protocol:             rec.Protocol,
		RecordType:           RecordKind(rec),
		TransportLength:      rec.TransportLength,
		FrameLength:          rec.FrameLength,
		TLSRecordContentType: rec.TLSRecordContentType,
	}
	if doc.Protocol == "" {
		doc.Protocol = DefaultProtocol
	}

	doc.EncryptionStatus = StatusUnencrypted
	if doc.IsEncrypted {
		doc.EncryptionStatus = StatusEncrypted
	}

	if doc.SMTPCommand != nil {
		switch *doc.SMTPCommand {
		case "MAIL":
			doc.MailFrom = envelopeAddress(rec.RequestParameter)
		case "RCPT":
			doc.RcptTo = envelopeAddress(rec.RequestParameter)
		}
	}

	return doc
}

// CanonicalCommand maps a raw request verb onto the known command set.
func CanonicalCommand(requestCommand *string) *string {
	if requestCommand == nil {
		return nil
	}
	cmd := strings.ToUpper(strings.TrimSpace(*requestCommand))
	if cmd == "" {
		return nil
	}
	for _, known := range knownCommands {
		if cmd == known {
			return &known
		}
	}
	for _, known := range knownCommands {
		if strings.Contains(cmd, known) {
			return &known
		}
	}
	other := CommandOther
	return &other
}

// IsEncrypted reports STARTTLS negotiation, a TLS mention in the response or
// a port that implies TLS.
func IsEncrypted(rec models.FlowRecord) bool {
	if rec.RequestCommand != nil && strings.Contains(strings.ToUpper(*rec.RequestCommand), "STARTTLS") {
		return true
	}
	if rec.IsStartTLS {
		return true
	}
	if rec.ResponseText != nil && strings.Contains(strings.ToUpper(*rec.ResponseText), "TLS") {
		return true
	}
	if rec.DestinationPort != nil && tlsPorts[*rec.DestinationPort] {
		return true
	}
	return false
}

// RecordKind classifies the packet as a client request or a server response.
func RecordKind(rec models.FlowRecord) string {
	switch {
	case rec.RequestCommand != nil:
		return RecordRequest
	case rec.ResponseCode != nil:
		return RecordResponse
	default:
		return RecordUnknown
	}
}

// envelopeAddress pulls the mailbox out of "FROM:<a@x.com> SIZE=10" style parameters
func envelopeAddress(param *string) *string {
	if param == nil {
		return nil
	}
	if addr := mailparse.ExtractEmailAddress(*param); addr != "" {
		return &addr
	}
	v := strings.TrimSpace(*param)
	if i := strings.Index(v, ":"); i >= 0 {
		v = v[i+1:]
	}
	v = strings.TrimSpace(strings.NewReplacer("<", "", ">", "").Replace(v))
	if fields := strings.Fields(v); len(fields) > 0 {
		v = fields[0]
	}
	if !strings.Contains(v, "@") {
		return nil
	}
	return &v
}

func isoTimestamp(epoch float64) *string {
	sec, frac := math.Modf(epoch)
	t := time.Unix(int64(sec), int64(frac*1e9)).UTC()
	s := t.Format(time.RFC3339Nano)
	return &s
}

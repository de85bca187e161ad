package correlate

import (
	"smtp-forensics/internal/models"
)

// Unify joins emails and flows into documents, one per email and in email
// order. It never fails: an email without a flow gets null network and
// smtp fields.
func Unify(emails []models.EmailRecord, flows []models.FlowRecord, strategy Strategy) []models.UnifiedDocument {
	if strategy == nil {
		strategy = Positional{}
	}
	pairs := strategy.Pair(emails, flows)

	docs := make([]models.UnifiedDocument, 0, len(emails))
	for i := range emails {
		var flow *models.FlowRecord
		if i < len(pairs) {
			flow = pairs[i]
		}
		docs = append(docs, UnifyOne(emails[i], flow))
	}
	return docs
}

// UnifyOne builds the document for a single email and its flow (maybe nil).
func UnifyOne(email models.EmailRecord, flow *models.FlowRecord) models.UnifiedDocument {
	doc := models.UnifiedDocument{
		Timestamp:   ParseDate(email.Date),
		ContentHash: email.ContentHash,
		Email: models.AddressInfo{
			From: nonNil(email.From),
			To:   nonNil(email.To),
			Cc:   nonNil(email.Cc),
			Bcc:  nonNil(email.Bcc),
		},
		Message: models.MessageInfo{
			MessageID:   email.MessageID,
			Subject:     email.Subject,
			ContentType: optional(email.ContentType),
			BodyText:    ResolveBodyText(email.BodyText, email.BodyHTML),
			BodyHTML:    email.BodyHTML,
		},
		Attachments: email.Attachments,
	}
	if doc.Attachments == nil {
		doc.Attachments = []models.AttachmentRecord{}
	}

	if flow != nil {
		doc.Network = networkInfo(*flow)
		doc.SMTP = smtpInfo(*flow)
	}
	return doc
}

func networkInfo(flow models.FlowRecord) models.NetworkInfo {
	info := models.NetworkInfo{
		Protocol: optional(flow.Protocol),
		Source: models.Endpoint{
			IP:   optional(flow.SourceIP),
			Port: flow.SourcePort,
		},
		Destination: models.Endpoint{
			IP:   optional(flow.DestinationIP),
			Port: flow.DestinationPort,
		},
	}
	info.Source.IsPrivate = IsPrivate(info.Source.IP)
	info.Destination.IsPrivate = IsPrivate(info.Destination.IP)
	return info
}

func smtpInfo(flow models.FlowRecord) models.SMTPInfo {
	startTLS := flow.IsStartTLS
	return models.SMTPInfo{
		CommandLine:          flow.CommandLine,
		RequestCommand:       flow.RequestCommand,
		RequestParameter:     flow.RequestParameter,
		ResponseCode:         flow.ResponseCode,
		Response:             flow.ResponseText,
		IsStartTLS:           &startTLS,
		TransportLength:      flow.TransportLength,
		FrameLength:          flow.FrameLength,
		TLSRecordContentType: flow.TLSRecordContentType,
	}
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}

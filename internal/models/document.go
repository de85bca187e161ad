package models

// UnifiedDocument joins one EmailRecord with its correlated FlowRecord.
// Network and SMTP fields are null when no flow was paired.
type UnifiedDocument struct {
	Timestamp   *string            `json:"timestamp"`
	ContentHash string             `json:"content_hash,omitempty"`
	Email       AddressInfo        `json:"email"`
	Message     MessageInfo        `json:"message"`
	Network     NetworkInfo        `json:"network"`
	SMTP        SMTPInfo           `json:"smtp"`
	Attachments []AttachmentRecord `json:"attachments"`
	Correlation CorrelationInfo    `json:"correlation"`
}

// DocumentHash is used as the bulk document id in hash mode.
func (d UnifiedDocument) DocumentHash() string {
	return d.ContentHash
}

type AddressInfo struct {
	From []string `json:"from"`
	To   []string `json:"to"`
	Cc   []string `json:"cc"`
	Bcc  []string `json:"bcc"`
}

type MessageInfo struct {
	MessageID   *string `json:"message_id"`
	Subject     *string `json:"subject"`
	ContentType *string `json:"content_type"`
	BodyText    *string `json:"body_text"`
	BodyHTML    *string `json:"body_html"`
}

type NetworkInfo struct {
	Protocol    *string  `json:"protocol"`
	Source      Endpoint `json:"source"`
	Destination Endpoint `json:"destination"`
}

type Endpoint struct {
	IP        *string `json:"ip"`
	Port      *int    `json:"port"`
	IsPrivate *bool   `json:"is_private"`
}

type SMTPInfo struct {
	CommandLine          *string `json:"command_line"`
	RequestCommand       *string `json:"req_command"`
	RequestParameter     *string `json:"req_parameter"`
	ResponseCode         *int    `json:"response_code"`
	Response             *string `json:"response"`
	IsStartTLS           *bool   `json:"is_starttls"`
	TransportLength      *int    `json:"tcp_len"`
	FrameLength          *int    `json:"frame_len"`
	TLSRecordContentType *string `json:"tls_record_content_type"`
}

// CorrelationInfo holds enrichment placeholders; both flags default to false.
type CorrelationInfo struct {
	CGNAT  CGNATInfo  `json:"cgnat"`
	Radius RadiusInfo `json:"radius"`
}

type CGNATInfo struct {
	Matched bool `json:"matched"`
}

type RadiusInfo struct {
	SessionFound bool `json:"session_found"`
}

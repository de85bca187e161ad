package models

// FlowRecord is one decoded SMTP packet observation from the tshark field table.
// Optional fields are nil when the decoder left them empty or they failed to parse.
type FlowRecord struct {
	Timestamp            float64 `json:"timestamp"`
	SourceIP             string  `json:"src_ip"`
	SourcePort           *int    `json:"src_port"`
	DestinationIP        string  `json:"dst_ip"`
	DestinationPort      *int    `json:"dst_port"`
	Protocol             string  `json:"protocol"`
	CommandLine          *string `json:"smtp_command_line"`
	RequestCommand       *string `json:"smtp_req_command"`
	RequestParameter     *string `json:"smtp_req_parameter"`
	ResponseCode         *int    `json:"smtp_response_code"`
	ResponseText         *string `json:"smtp_response"`
	TransportLength      *int    `json:"tcp_len"`
	FrameLength          *int    `json:"frame_len"`
	TLSRecordContentType *string `json:"tls_record_content_type"`
	IsStartTLS           bool    `json:"is_starttls"`
}

// FlowDocument is the per-packet document indexed into the traffic index.
type FlowDocument struct {
	Timestamp            *string `json:"timestamp"`
	FrameTimeEpoch       float64 `json:"frame_time_epoch"`
	SourceIP             string  `json:"source_ip"`
	SourcePort           *int    `json:"source_port"`
	DestinationIP        string  `json:"destination_ip"`
	DestinationPort      *int    `json:"destination_port"`
	SMTPCommand          *string `json:"smtp_command"`
	SMTPParameter        *string `json:"smtp_parameter"`
	ResponseCode         *int    `json:"response_code"`
	ResponseMessage      *string `json:"response_message"`
	MailFrom             *string `json:"from_email"`
	RcptTo               *string `json:"to_email"`
	IsStartTLS           bool    `json:"is_starttls"`
	IsEncrypted          bool    `json:"is_encrypted"`
	EncryptionStatus     string  `json:"encryption_status"`
	Protocol             string  `json:"protocol"`
	RecordType           string  `json:"record_type"`
	TransportLength      *int    `json:"tcp_len"`
	FrameLength          *int    `json:"frame_len"`
	TLSRecordContentType *string `json:"tls_record_content_type"`
}

// FlowStats summarizes one normalization pass over the field table.
type FlowStats struct {
	Accepted      int            `json:"accepted"`
	Rejected      int            `json:"rejected"`
	StartTLS      int            `json:"starttls"`
	RejectReasons map[string]int `json:"reject_reasons"`
}

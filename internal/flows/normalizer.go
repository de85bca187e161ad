package flows

import (
	"bufio"
	"fmt"
	"io"
	"math"
	"strconv"
	"strings"

	"smtp-forensics/internal/logging"
	"smtp-forensics/internal/models"
)

// Fields lists the tshark fields in the column order of the field table.
var Fields = []string{
	"frame.time_epoch",
	"ip.src",
	"tcp.srcport",
	"ip.dst",
	"tcp.dstport",
	"smtp.command_line",
	"smtp.req.command",
	"smtp.req.parameter",
	"smtp.response.code",
	"smtp.response",
	"tcp.len",
	"frame.len",
	"tls.record.content_type",
}

const (
	colTimestamp = iota
	colSourceIP
	colSourcePort
	colDestinationIP
	colDestinationPort
	colCommandLine
	colRequestCommand
	colRequestParameter
	colResponseCode
	colResponse
	colTransportLength
	colFrameLength
	colTLSRecordContentType
)

// Separator between columns of the field table
const Separator = "|"

// minFields is the smallest row that still carries timestamp and both endpoints
const minFields = 5

// Reject reasons reported in FlowStats.RejectReasons
const (
	ReasonTooFewFields       = "too_few_fields"
	ReasonMissingTimestamp   = "missing_timestamp"
	ReasonInvalidTimestamp   = "invalid_timestamp"
	ReasonMissingSourceIP    = "missing_source_ip"
	ReasonMissingDestination = "missing_destination_ip"
)

// DefaultProtocol is the label stamped on every record when none is configured
const DefaultProtocol = "SMTP"

// Normalizer turns field table lines into FlowRecords
type Normalizer struct {
	Protocol string
}

// NewNormalizer returns a Normalizer labelling records with protocol
func NewNormalizer(protocol string) *Normalizer {
	if protocol == "" {
		protocol = DefaultProtocol
	}
	return &Normalizer{Protocol: protocol}
}

// Normalize reads the whole field table. Malformed rows are dropped and
// counted; only a read error on r is returned.
func (n *Normalizer) Normalize(r io.Reader) ([]models.FlowRecord, models.FlowStats, error) {
	stats := models.FlowStats{RejectReasons: make(map[string]int)}
	records := []models.FlowRecord{}

	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 64*1024), 1024*1024)

	lineNo := 0
	for scanner.Scan() {
		lineNo++
		line := strings.TrimRight(scanner.Text(), "\r")
		if strings.TrimSpace(line) == "" {
			continue
		}

		record, reason := n.ParseLine(line)
		if reason != "" {
			stats.Rejected++
			stats.RejectReasons[reason]++
			logging.Log.WithField("line", lineNo).Debugf("Rejected flow row: %s", reason)
			continue
		}

		stats.Accepted++
		if record.IsStartTLS {
			stats.StartTLS++
		}
		records = append(records, record)
	}
	if err := scanner.Err(); err != nil {
		return records, stats, fmt.Errorf("reading field table: %w", err)
	}

	return records, stats, nil
}

// ParseLine converts one row. A non-empty reason means the row was rejected.
func (n *Normalizer) ParseLine(line string) (models.FlowRecord, string) {
	cols := strings.Split(line, Separator)
	if len(cols) < minFields {
		return models.FlowRecord{}, ReasonTooFewFields
	}

	rawTS := strings.TrimSpace(cols[colTimestamp])
	if rawTS == "" {
		return models.FlowRecord{}, ReasonMissingTimestamp
	}
	ts, err := strconv.ParseFloat(rawTS, 64)
	if err != nil || math.IsNaN(ts) || math.IsInf(ts, 0) {
		return models.FlowRecord{}, ReasonInvalidTimestamp
	}

	src := strings.TrimSpace(cols[colSourceIP])
	if src == "" {
		return models.FlowRecord{}, ReasonMissingSourceIP
	}
	dst := strings.TrimSpace(cols[colDestinationIP])
	if dst == "" {
		return models.FlowRecord{}, ReasonMissingDestination
	}

	record := models.FlowRecord{
		Timestamp:            ts,
		SourceIP:             src,
		SourcePort:           optionalInt(cols, colSourcePort),
		DestinationIP:        dst,
		DestinationPort:      optionalInt(cols, colDestinationPort),
		Protocol:             n.Protocol,
		CommandLine:          optionalString(cols, colCommandLine),
		RequestCommand:       optionalString(cols, colRequestCommand),
		RequestParameter:     optionalString(cols, colRequestParameter),
		ResponseCode:         optionalInt(cols, colResponseCode),
		ResponseText:         optionalString(cols, colResponse),
		TransportLength:      optionalInt(cols, colTransportLength),
		FrameLength:          optionalInt(cols, colFrameLength),
		TLSRecordContentType: optionalString(cols, colTLSRecordContentType),
	}
	record.IsStartTLS = IsStartTLS(record.RequestCommand, record.CommandLine)

	return record, ""
}

// IsStartTLS reports whether the request command is STARTTLS or the
// command line begins with it, ignoring case.
func IsStartTLS(requestCommand, commandLine *string) bool {
	if requestCommand != nil && strings.EqualFold(strings.TrimSpace(*requestCommand), "STARTTLS") {
		return true
	}
	if commandLine != nil && strings.HasPrefix(strings.ToUpper(strings.TrimSpace(*commandLine)), "STARTTLS") {
		return true
	}
	return false
}

func optionalString(cols []string, i int) *string {
	if i >= len(cols) || cols[i] == "" {
		return nil
	}
	v := cols[i]
	return &v
}

// optionalInt never fails: empty or non-numeric values become nil
func optionalInt(cols []string, i int) *int {
	if i >= len(cols) {
		return nil
	}
	raw := strings.TrimSpace(cols[i])
	if raw == "" {
		return nil
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		// tshark prints some numeric fields as floats
		f, ferr := strconv.ParseFloat(raw, 64)
		if ferr != nil || f != math.Trunc(f) || math.IsInf(f, 0) || math.Abs(f) > math.MaxInt32 {
			return nil
		}
		v = int(f)
	}
	return &v
}

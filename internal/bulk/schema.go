package bulk

import (
	"sort"
	"strings"
)

// Kind is the index field type a value is coerced to
type Kind string

const (
	Keyword Kind = "keyword"
	Text    Kind = "text"
	Integer Kind = "integer"
	Float   Kind = "float"
	Boolean Kind = "boolean"
	IP      Kind = "ip"
	Date    Kind = "date"
	Object  Kind = "object"
)

// Schema maps dotted document paths to field kinds. Paths crossing an
// array apply to every element.
type Schema map[string]Kind

// UnifiedSchema describes the email index documents
var UnifiedSchema = Schema{
	"timestamp":                        Date,
	"content_hash":                     Keyword,
	"email.from":                       Keyword,
	"email.to":                         Keyword,
	"email.cc":                         Keyword,
	"email.bcc":                        Keyword,
	"message.message_id":               Keyword,
	"message.subject":                  Text,
	"message.content_type":             Keyword,
	"message.body_text":                Text,
	"message.body_html":                Text,
	"network.protocol":                 Keyword,
	"network.source.ip":                IP,
	"network.source.port":              Integer,
	"network.source.is_private":        Boolean,
	"network.destination.ip":           IP,
	"network.destination.port":         Integer,
	"network.destination.is_private":   Boolean,
	"smtp.command_line":                Text,
	"smtp.req_command":                 Keyword,
	"smtp.req_parameter":               Text,
	"smtp.response_code":               Integer,
	"smtp.response":                    Text,
	"smtp.is_starttls":                 Boolean,
	"smtp.tcp_len":                     Integer,
	"smtp.frame_len":                   Integer,
	"smtp.tls_record_content_type":     Keyword,
	"attachments":                      Object,
	"attachments.filename":             Keyword,
	"attachments.content_type":         Keyword,
	"attachments.size":                 Integer,
	"attachments.md5":                  Keyword,
	"attachments.sha256":               Keyword,
	"attachments.content_disposition":  Keyword,
	"attachments.detected_type":        Keyword,
	"correlation.cgnat.matched":        Boolean,
	"correlation.radius.session_found": Boolean,
}

// FlowSchema describes the traffic index documents
var FlowSchema = Schema{
	"timestamp":               Date,
	"frame_time_epoch":        Float,
	"source_ip":               IP,
	"source_port":             Integer,
	"destination_ip":          IP,
	"destination_port":        Integer,
	"smtp_command":            Keyword,
	"smtp_parameter":          Text,
	"response_code":           Integer,
	"response_message":        Text,
	"from_email":              Keyword,
	"to_email":                Keyword,
	"is_starttls":             Boolean,
	"is_encrypted":            Boolean,
	"encryption_status":       Keyword,
	"protocol":                Keyword,
	"record_type":             Keyword,
	"tcp_len":                 Integer,
	"frame_len":               Integer,
	"tls_record_content_type": Keyword,
}

// Paths returns the schema paths in a stable order
func (s Schema) Paths() []string {
	paths := make([]string, 0, len(s))
	for p := range s {
		paths = append(paths, p)
	}
	sort.Strings(paths)
	return paths
}

// Mapping renders the schema as an index creation body.
func (s Schema) Mapping() map[string]any {
	properties := map[string]any{}
	for _, path := range s.Paths() {
		parts := strings.Split(path, ".")
		node := properties
		for _, part := range parts[:len(parts)-1] {
			node = childProperties(node, part)
		}

		leaf := parts[len(parts)-1]
		if s[path] == Object {
			childProperties(node, leaf)
			continue
		}
		node[leaf] = map[string]any{"type": string(s[path])}
	}

	return map[string]any{
		"settings": map[string]any{
			"index": map[string]any{
				"number_of_shards":   1,
				"number_of_replicas": 0,
			},
		},
		"mappings": map[string]any{
			"properties": properties,
		},
	}
}

// childProperties returns the properties map of an object field, creating it
func childProperties(node map[string]any, name string) map[string]any {
	field, ok := node[name].(map[string]any)
	if !ok {
		field = map[string]any{}
		node[name] = field
	}
	props, ok := field["properties"].(map[string]any)
	if !ok {
		props = map[string]any{}
		field["properties"] = props
	}
	return props
}

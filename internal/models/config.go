package models

import "time"

// Config represents the application configuration
type Config struct {
	Input       InputConfig       `yaml:"input"`
	Decoder     DecoderConfig     `yaml:"decoder"`
	IMAP        IMAPConfig        `yaml:"imap"`
	Correlation CorrelationConfig `yaml:"correlation"`
	Output      OutputConfig      `yaml:"output"`
	Index       IndexConfig       `yaml:"index"`
	Metrics     MetricsConfig     `yaml:"metrics"`
	Logging     LoggingConfig     `yaml:"logging"`
}

// InputConfig points at the decoder output (or the capture to decode)
type InputConfig struct {
	Pcap          string `yaml:"pcap"`
	ObjectsDir    string `yaml:"objectsDir"`
	FieldsFile    string `yaml:"fieldsFile"`
	MinObjectSize int    `yaml:"minObjectSize"`
	Workers       int    `yaml:"workers"`
	MaxPartDepth  int    `yaml:"maxPartDepth"`
}

// DecoderConfig configures the tshark invocation
type DecoderConfig struct {
	Binary        string        `yaml:"binary"`
	DisplayFilter string        `yaml:"displayFilter"`
	Protocol      string        `yaml:"protocol"`
	Timeout       time.Duration `yaml:"timeout"`
}

// IMAPConfig represents an optional mailbox used as message object source
type IMAPConfig struct {
	Server   string        `yaml:"server"`
	Login    string        `yaml:"login"`
	Password string        `yaml:"password"`
	MailBox  string        `yaml:"mailbox"`
	Since    time.Duration `yaml:"since"`
	Timeout  time.Duration `yaml:"timeout"`
}

type CorrelationConfig struct {
	Strategy string `yaml:"strategy"`
}

type OutputConfig struct {
	Dir         string `yaml:"dir"`
	EmailsFile  string `yaml:"emailsFile"`
	FlowsFile   string `yaml:"flowsFile"`
	FinalFile   string `yaml:"finalFile"`
	SummaryFile string `yaml:"summaryFile"`
}

// IndexConfig represents the search index the documents are bulk loaded into
type IndexConfig struct {
	URL           string        `yaml:"url"`
	EmailIndex    string        `yaml:"emailIndex"`
	FlowIndex     string        `yaml:"flowIndex"`
	IDMode        string        `yaml:"idMode"`
	BatchSize     int           `yaml:"batchSize"`
	MaxBatchBytes int           `yaml:"maxBatchBytes"`
	Timeout       time.Duration `yaml:"timeout"`
	MaxRetries    int           `yaml:"maxRetries"`
	CreateIndex   bool          `yaml:"createIndex"`
	Recreate      bool          `yaml:"recreate"`
}

type MetricsConfig struct {
	Textfile string `yaml:"textfile"`
}

type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"smtp-forensics/internal/config"
	"smtp-forensics/internal/logging"
	"smtp-forensics/internal/pipeline"
)

func main() {
	configPath := flag.String("config", "", "Path to the YAML configuration file")
	pcap := flag.String("pcap", "", "Capture file to decode with tshark")
	objects := flag.String("objects", "", "Directory of exported message objects")
	fields := flag.String("fields", "", "Pipe-delimited SMTP field table")
	outDir := flag.String("out", "", "Output directory")
	indexURL := flag.String("index-url", "", "Search index base URL")
	noIndex := flag.Bool("no-index", false, "Prepare bulk files without sending them")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		logging.Log.Fatalf("Error reading configuration file: %v", err)
	}

	overrides := map[*string]string{
		&cfg.Input.Pcap:       *pcap,
		&cfg.Input.ObjectsDir: *objects,
		&cfg.Input.FieldsFile: *fields,
		&cfg.Output.Dir:       *outDir,
		&cfg.Index.URL:        *indexURL,
	}
	for dst, v := range overrides {
		if v != "" {
			*dst = v
		}
	}
	if *noIndex {
		cfg.Index.URL = ""
	}

	if err := logging.Configure(cfg.Logging.Level, cfg.Logging.Format); err != nil {
		logging.Log.Fatalf("Error configuring logging: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	summary, err := pipeline.New(cfg).Run(ctx)
	fmt.Println(summary.Render())
	if err != nil {
		logging.Log.Fatalf("Pipeline failed: %v", err)
	}
}

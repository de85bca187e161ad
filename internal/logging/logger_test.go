package logging

import (
	"testing"

	"github.com/sirupsen/logrus"
)

func TestConfigure(t *testing.T) {
	defer func() {
		_ = Configure("info", "json")
	}()

	tests := []struct {
		name      string
		level     string
		format    string
		wantLevel logrus.Level
		wantErr   bool
	}{
		{name: "Debug text", level: "debug", format: "text", wantLevel: logrus.DebugLevel},
		{name: "Warn json", level: "warn", format: "json", wantLevel: logrus.WarnLevel},
		{name: "Empty keeps level", level: "", format: "", wantLevel: logrus.WarnLevel},
		{name: "Bad level", level: "loud", format: "json", wantErr: true},
		{name: "Bad format", level: "info", format: "xml", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := Configure(tt.level, tt.format)
			if (err != nil) != tt.wantErr {
				t.Fatalf("Configure() error = %v, wantErr %v", err, tt.wantErr)
			}
			if tt.wantErr {
				return
			}
			if Log.GetLevel() != tt.wantLevel {
				t.Errorf("level = %v, want %v", Log.GetLevel(), tt.wantLevel)
			}
		})
	}
}

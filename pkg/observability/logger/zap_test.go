package logger

import (
	"context"
	"testing"
)

// TestNewZapLogger_Levels tests that all supported levels produce a logger
func TestNewZapLogger_Levels(t *testing.T) {
	levels := []LogLevel{DebugLevel, InfoLevel, WarnLevel, ErrorLevel, LogLevel("bogus")}

	for _, level := range levels {
		t.Run(string(level), func(t *testing.T) {
			log, err := NewZapLogger(Config{Level: level, Format: JSONFormat})
			if err != nil {
				t.Fatalf("NewZapLogger() error = %v", err)
			}
			if log == nil {
				t.Fatal("Expected logger, got nil")
			}
		})
	}
}

// TestParseLogLevel tests string to LogLevel conversion
func TestParseLogLevel(t *testing.T) {
	tests := []struct {
		input   string
		want    LogLevel
		wantErr bool
	}{
		{"debug", DebugLevel, false},
		{"info", InfoLevel, false},
		{"warn", WarnLevel, false},
		{"warning", WarnLevel, false},
		{"error", ErrorLevel, false},
		{"trace", "", true},
		{"", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			got, err := ParseLogLevel(tt.input)
			if (err != nil) != tt.wantErr {
				t.Errorf("ParseLogLevel(%q) error = %v, wantErr %v", tt.input, err, tt.wantErr)
			}
			if got != tt.want {
				t.Errorf("ParseLogLevel(%q) = %v, want %v", tt.input, got, tt.want)
			}
		})
	}
}

// TestParseLogFormat tests string to LogFormat conversion
func TestParseLogFormat(t *testing.T) {
	tests := []struct {
		input   string
		want    LogFormat
		wantErr bool
	}{
		{"json", JSONFormat, false},
		{"text", TextFormat, false},
		{"console", TextFormat, false},
		{"xml", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			got, err := ParseLogFormat(tt.input)
			if (err != nil) != tt.wantErr {
				t.Errorf("ParseLogFormat(%q) error = %v, wantErr %v", tt.input, err, tt.wantErr)
			}
			if got != tt.want {
				t.Errorf("ParseLogFormat(%q) = %v, want %v", tt.input, got, tt.want)
			}
		})
	}
}

// TestWithContext tests request ID extraction from context
func TestWithContext(t *testing.T) {
	log, err := NewZapLogger(DefaultConfig())
	if err != nil {
		t.Fatalf("NewZapLogger() error = %v", err)
	}

	ctx := ContextWithRequestID(context.Background(), "req-123")
	child := log.WithContext(ctx)
	if child == nil {
		t.Fatal("Expected child logger, got nil")
	}

	// A context without a request ID returns the logger unchanged
	same := log.WithContext(context.Background())
	if same != Logger(log) {
		t.Error("Expected same logger for context without request ID")
	}
}

package logger

import (
	"bytes"
	"context"
	"strings"
	"testing"

	"github.com/rs/zerolog"
)

func TestNew(t *testing.T) {
	log := New()
	if log.GetLevel() != zerolog.InfoLevel {
		t.Errorf("Expected info level, got %s", log.GetLevel())
	}
}

func TestParseLevel(t *testing.T) {
	tests := []struct {
		input string
		want  zerolog.Level
	}{
		{"debug", zerolog.DebugLevel},
		{" WARN ", zerolog.WarnLevel},
		{"error", zerolog.ErrorLevel},
		{"", zerolog.InfoLevel},
		{"loud", zerolog.InfoLevel},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			if got := ParseLevel(tt.input); got != tt.want {
				t.Errorf("ParseLevel(%q) = %s, want %s", tt.input, got, tt.want)
			}
		})
	}
}

func TestNewWithWriter(t *testing.T) {
	buf := &bytes.Buffer{}
	log := NewWithWriter(buf)

	log.Info().Msg("test message")

	if !strings.Contains(buf.String(), "test message") {
		t.Errorf("Expected output to contain 'test message', got: %s", buf.String())
	}
}

func TestFromContext(t *testing.T) {
	buf := &bytes.Buffer{}
	ctx := WithContext(context.Background(), NewWithWriter(buf))

	log := FromContext(ctx)
	log.Info().Msg("test")

	if buf.Len() == 0 {
		t.Error("Expected log output from retrieved logger")
	}
}

func TestFromContext_DefaultLogger(t *testing.T) {
	log := FromContext(context.Background())
	if log.GetLevel() == zerolog.Disabled {
		t.Error("Expected default logger to be enabled")
	}
}

func TestWithFields(t *testing.T) {
	buf := &bytes.Buffer{}
	log := WithFields(NewWithWriter(buf), map[string]interface{}{
		"owner_id": "123",
		"provider": "wechat",
	})
	log.Info().Msg("test message")

	output := buf.String()
	if !strings.Contains(output, `"owner_id":"123"`) {
		t.Errorf("Expected owner_id field, got: %s", output)
	}
	if !strings.Contains(output, `"provider":"wechat"`) {
		t.Errorf("Expected provider field, got: %s", output)
	}
}

func TestForImport(t *testing.T) {
	buf := &bytes.Buffer{}
	ctx := ForImport(WithContext(context.Background(), NewWithWriter(buf)), "u1", "imp-1", "bill.csv")

	log := FromContext(ctx)
	log.Info().Msg("committed")

	output := buf.String()
	for _, want := range []string{`"owner_id":"u1"`, `"import_id":"imp-1"`, `"file":"bill.csv"`} {
		if !strings.Contains(output, want) {
			t.Errorf("Expected %s in output, got: %s", want, output)
		}
	}
}

package gcsuploader

import (
	"strings"
	"testing"
	"time"
)

func TestParseGCSURI(t *testing.T) {
	tests := []struct {
		uri     string
		bucket  string
		object  string
		wantErr bool
	}{
		{"gs://bucket/a/b.csv", "bucket", "a/b.csv", false},
		{"gs://bucket/", "", "", true},
		{"gs://bucket", "", "", true},
		{"s3://bucket/a.csv", "", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.uri, func(t *testing.T) {
			bucket, object, err := ParseGCSURI(tt.uri)
			if (err != nil) != tt.wantErr {
				t.Fatalf("err = %v, wantErr %v", err, tt.wantErr)
			}
			if bucket != tt.bucket || object != tt.object {
				t.Errorf("got (%q, %q), want (%q, %q)", bucket, object, tt.bucket, tt.object)
			}
		})
	}
}

func TestExtractFilenameFromGCSURI(t *testing.T) {
	if got := ExtractFilenameFromGCSURI("gs://b/statements/u/微信支付账单.csv"); got != "微信支付账单.csv" {
		t.Errorf("got %q", got)
	}
	if got := ExtractFilenameFromGCSURI("gs://bucket-only"); got != "bucket-only" {
		t.Errorf("got %q", got)
	}
}

func TestObjectName(t *testing.T) {
	now := time.Date(2024, 5, 6, 23, 0, 0, 0, time.UTC)
	got := ObjectName("owner-1", "/tmp/alipay.csv", now)
	if !strings.HasPrefix(got, "statements/owner-1/2024-05-06/") {
		t.Errorf("prefix: %s", got)
	}
	if !strings.HasSuffix(got, "-alipay.csv") {
		t.Errorf("suffix: %s", got)
	}
}

package objectstore

import "testing"

func TestNew_Validation(t *testing.T) {
	tests := []struct {
		name string
		cfg  Config
	}{
		{"missing keys", Config{Endpoint: "minio:9000", DataBucket: "documents"}},
		{"missing bucket", Config{Endpoint: "minio:9000", AccessKey: "a", SecretKey: "b"}},
		{"bad endpoint", Config{Endpoint: "http://minio:9000/x", AccessKey: "a", SecretKey: "b", DataBucket: "documents"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := New(tt.cfg, nil); err == nil {
				t.Fatal("expected error")
			}
		})
	}
}

func TestNew_DefaultsBucket(t *testing.T) {
	s, err := New(Config{
		Endpoint:     "http://minio:9000",
		AccessKey:    "minio",
		SecretKey:    "minio123",
		DataBucket:   "documents",
		BackupBucket: "backups",
	}, nil)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if got := s.bucketOr(""); got != "documents" {
		t.Errorf("bucketOr(\"\") = %q, want documents", got)
	}
	if got := s.bucketOr("backups"); got != "backups" {
		t.Errorf("bucketOr(backups) = %q, want backups", got)
	}
	if s.DataBucket() != "documents" || s.BackupBucket() != "backups" {
		t.Errorf("bucket accessors wrong: %q %q", s.DataBucket(), s.BackupBucket())
	}
}

func TestBytesToMB(t *testing.T) {
	tests := []struct {
		in   int64
		want float64
	}{
		{0, 0},
		{1024 * 1024, 1},
		{1536 * 1024, 1.5},
		{10 * 1024, 0.01},
	}
	for _, tt := range tests {
		if got := bytesToMB(tt.in); got != tt.want {
			t.Errorf("bytesToMB(%d) = %v, want %v", tt.in, got, tt.want)
		}
	}
}

package objectstore

import "testing"

func TestClientOptions(t *testing.T) {
	tests := []struct {
		endpoint   string
		wantHost   string
		wantSecure bool
		wantErr    bool
	}{
		{"minio:9000", "minio:9000", false, false},
		{"http://minio:9000", "minio:9000", false, false},
		{"https://s3.example.com", "s3.example.com", true, false},
		{"http://minio:9000/", "minio:9000", false, false},
		{"  http://minio:9000  ", "minio:9000", false, false},
		{"http://minio:9000/bucket", "", false, true},
		{"ftp://minio:9000", "", false, true},
		{"http://", "", false, true},
		{"", "", false, true},
	}

	for _, tt := range tests {
		cfg := Config{Endpoint: tt.endpoint, AccessKey: "minio", SecretKey: "minio123"}
		host, opts, err := clientOptions(cfg)
		if tt.wantErr {
			if err == nil {
				t.Fatalf("expected error for endpoint %q", tt.endpoint)
			}
			continue
		}
		if err != nil {
			t.Fatalf("unexpected error for %q: %v", tt.endpoint, err)
		}
		if host != tt.wantHost || opts.Secure != tt.wantSecure {
			t.Fatalf("clientOptions(%q) = (%q,%v), want (%q,%v)", tt.endpoint, host, opts.Secure, tt.wantHost, tt.wantSecure)
		}
		if opts.Creds == nil {
			t.Fatalf("expected static credentials for %q", tt.endpoint)
		}
	}
}

func TestClientOptionsMissingCredentials(t *testing.T) {
	if _, _, err := clientOptions(Config{Endpoint: "minio:9000", AccessKey: "minio"}); err == nil {
		t.Fatal("expected error without secret key")
	}
}

package objectstore

import (
	"errors"
	"fmt"
	"net/url"
	"strings"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
)

// clientOptions turns cfg into the arguments of minio.New. Endpoint may be a
// bare host:port (plain HTTP) or an http/https URL without a path.
func clientOptions(cfg Config) (string, *minio.Options, error) {
	if cfg.AccessKey == "" || cfg.SecretKey == "" {
		return "", nil, errors.New("object store credentials missing")
	}

	host := strings.TrimSpace(cfg.Endpoint)
	secure := false
	switch {
	case host == "":
		return "", nil, errors.New("object store endpoint is empty")
	case strings.Contains(host, "://"):
		u, err := url.Parse(host)
		if err != nil {
			return "", nil, fmt.Errorf("object store endpoint: %w", err)
		}
		if u.Scheme != "http" && u.Scheme != "https" {
			return "", nil, fmt.Errorf("object store endpoint: unsupported scheme %q", u.Scheme)
		}
		if u.Host == "" || strings.Trim(u.Path, "/") != "" {
			return "", nil, fmt.Errorf("object store endpoint %q must be scheme://host[:port]", cfg.Endpoint)
		}
		host, secure = u.Host, u.Scheme == "https"
	}

	return host, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure: secure,
	}, nil
}

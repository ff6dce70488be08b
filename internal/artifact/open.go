package artifact

import (
	"context"
	"fmt"
	"io"
	"strings"
)

// Backends accepted by Open.
const (
	BackendMemory   = "memory"
	BackendDisk     = "disk"
	BackendS3       = "s3"
	BackendPostgres = "postgres"
)

type Config struct {
	Backend string
	Dir     string
	S3      S3Config
	DSN     string
}

// Open builds the Store named by cfg.Backend. An empty backend means disk
// when Dir is set and memory otherwise.
func Open(ctx context.Context, cfg Config) (Store, error) {
	backend := strings.ToLower(strings.TrimSpace(cfg.Backend))
	if backend == "" {
		backend = BackendMemory
		if strings.TrimSpace(cfg.Dir) != "" {
			backend = BackendDisk
		}
	}
	switch backend {
	case BackendMemory:
		return NewMemoryStore(), nil
	case BackendDisk:
		if strings.TrimSpace(cfg.Dir) == "" {
			return nil, fmt.Errorf("artifact: disk backend needs a directory")
		}
		return NewDiskStore(cfg.Dir), nil
	case BackendS3:
		s, err := NewS3Store(cfg.S3)
		if err != nil {
			return nil, err
		}
		return s, nil
	case BackendPostgres:
		if strings.TrimSpace(cfg.DSN) == "" {
			return nil, fmt.Errorf("artifact: postgres backend needs DATABASE_URL")
		}
		s, err := OpenPostgres(ctx, cfg.DSN)
		if err != nil {
			return nil, err
		}
		return s, nil
	default:
		return nil, fmt.Errorf("artifact: unknown backend %q", cfg.Backend)
	}
}

// Close releases s when its backend holds resources such as a database
// pool. Other stores are left alone.
func Close(s Store) error {
	if c, ok := s.(io.Closer); ok {
		return c.Close()
	}
	return nil
}

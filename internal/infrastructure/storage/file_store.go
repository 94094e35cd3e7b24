package storage

import (
	"context"
	"fmt"
	"log/slog"
	"net/url"
	"os"
	"path/filepath"
	"strings"
)

// FileReceiptStore writes receipts to a local directory that is served
// under baseURL + "/receipts/".
type FileReceiptStore struct {
	dir     string
	baseURL string
}

func NewFileReceiptStore(dir, baseURL string) (*FileReceiptStore, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create receipt dir: %w", err)
	}
	return &FileReceiptStore{dir: dir, baseURL: strings.TrimRight(baseURL, "/")}, nil
}

func (s *FileReceiptStore) Dir() string {
	return s.dir
}

func (s *FileReceiptStore) Save(ctx context.Context, name string, data []byte) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	if name == "" || name != filepath.Base(name) {
		return "", fmt.Errorf("invalid receipt name %q", name)
	}

	path := filepath.Join(s.dir, name)
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return "", fmt.Errorf("failed to write receipt: %w", err)
	}
	slog.Info("receipt stored", "path", path, "bytes", len(data))

	if s.baseURL == "" {
		return path, nil
	}
	return s.baseURL + "/receipts/" + url.PathEscape(name), nil
}

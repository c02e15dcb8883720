package object

import (
	"context"
	"fmt"
	"io"
	"path"

	"hawkkeyed-backend/internal/shared/util"
)

// Store saves and retrieves binary objects by key.
type Store interface {
	Put(ctx context.Context, key string, contentType string, r io.Reader) (sizeBytes int64, err error)
	Open(ctx context.Context, key string) (io.ReadCloser, error)
}

// ReportKey namespaces a report file under a hashed session directory.
func ReportKey(sessionID, fileName string) (string, error) {
	name, err := util.SanitizeFileName(fileName)
	if err != nil {
		return "", fmt.Errorf("sanitize file name: %w", err)
	}
	return path.Join("reports", util.HashSessionKey(sessionID), name), nil
}

// Package upload validates and stores incoming files under strict size and
// type limits.
package upload

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
)

// chunkSize bounds memory use during ingestion regardless of upload size.
const chunkSize = 1 << 20 // 1 MiB

var (
	ErrMissingExtension    = errors.New("file extension is missing")
	ErrDisallowedExtension = errors.New("file extension is not allowed")
	ErrMissingMimeType     = errors.New("mime type is missing")
	ErrDisallowedMimeType  = errors.New("mime type is not allowed")
	ErrPayloadTooLarge     = errors.New("payload exceeds maximum allowed size")
)

// StoredFile describes one successfully ingested upload. SizeBytes is the
// count actually written, which is authoritative over any client-declared
// length. The caller owns deletion of Path.
type StoredFile struct {
	FileID           string
	Path             string
	SizeBytes        int64
	OriginalFilename string
	ContentType      string
}

// Ext returns the lower-cased extension of filename, including the dot,
// or "" when there is none.
func Ext(filename string) string {
	return strings.ToLower(filepath.Ext(filename))
}

// ValidateType enforces the strict AND policy: both the filename extension
// and the declared content type must appear in their respective allow-lists.
func ValidateType(filename, contentType string, allowedExt, allowedMIME map[string]bool) (string, string, error) {
	ext := Ext(filename)
	mime := strings.ToLower(strings.TrimSpace(contentType))

	if ext == "" {
		return "", "", ErrMissingExtension
	}
	if !allowedExt[ext] {
		return "", "", fmt.Errorf("%w: %q", ErrDisallowedExtension, ext)
	}
	if mime == "" {
		return "", "", ErrMissingMimeType
	}
	if !allowedMIME[mime] {
		return "", "", fmt.Errorf("%w: %q", ErrDisallowedMimeType, mime)
	}
	return ext, mime, nil
}

// StoreStreaming copies src to a fresh file under dir in bounded chunks,
// aborting with ErrPayloadTooLarge the instant the running byte count exceeds
// maxBytes. The whole upload is never buffered in memory. On any failure the
// partially written file is removed before the error is returned.
func StoreStreaming(src io.Reader, dir, originalName, contentType string, maxBytes int64) (*StoredFile, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create upload dir: %w", err)
	}

	fileID := uuid.NewString()
	name := originalName
	if name == "" {
		name = "unnamed"
	}
	dst := filepath.Join(dir, fileID+Ext(name))

	written, err := copyBounded(src, dst, maxBytes)
	if err != nil {
		// No orphaned partial files survive a failed ingestion.
		os.Remove(dst)
		return nil, err
	}

	return &StoredFile{
		FileID:           fileID,
		Path:             dst,
		SizeBytes:        written,
		OriginalFilename: name,
		ContentType:      contentType,
	}, nil
}

func copyBounded(src io.Reader, dst string, maxBytes int64) (int64, error) {
	f, err := os.Create(dst)
	if err != nil {
		return 0, fmt.Errorf("create upload file: %w", err)
	}

	var written int64
	buf := make([]byte, chunkSize)
	for {
		n, rerr := src.Read(buf)
		if n > 0 {
			written += int64(n)
			if written > maxBytes {
				f.Close()
				return written, fmt.Errorf("%w: limit %d bytes", ErrPayloadTooLarge, maxBytes)
			}
			if _, werr := f.Write(buf[:n]); werr != nil {
				f.Close()
				return written, fmt.Errorf("write upload chunk: %w", werr)
			}
		}
		if rerr == io.EOF {
			break
		}
		if rerr != nil {
			f.Close()
			return written, fmt.Errorf("read upload chunk: %w", rerr)
		}
	}

	if err := f.Close(); err != nil {
		return written, fmt.Errorf("close upload file: %w", err)
	}
	return written, nil
}

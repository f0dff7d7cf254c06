package storage

import (
	"context"
	"errors"
	"fmt"
	"path"
	"strings"
	"time"
)

var errInvalidKey = errors.New("storage: invalid object key")

func sanitizePathSegment(value string) string {
	value = strings.TrimSpace(value)
	if value == "" {
		return ""
	}
	builder := strings.Builder{}
	builder.Grow(len(value))
	for i := 0; i < len(value); i++ {
		ch := value[i]
		switch {
		case ch >= 'a' && ch <= 'z', ch >= '0' && ch <= '9':
			builder.WriteByte(ch)
		case ch >= 'A' && ch <= 'Z':
			builder.WriteByte(ch + 32)
		case ch == '-', ch == '_':
			builder.WriteByte(ch)
		}
	}
	return builder.String()
}

// ObjectKey builds "<category>/YYYY/MM/DD/<name>.<ext>" with every segment sanitised.
func ObjectKey(category string, at time.Time, name, ext string) string {
	at = at.UTC()
	category = sanitizePathSegment(category)
	if category == "" {
		category = "misc"
	}
	base := strings.Trim(sanitizePathSegment(name), "-_")
	if base == "" {
		base = fmt.Sprintf("%d", at.UnixNano())
	}
	ext = sanitizePathSegment(strings.TrimPrefix(strings.TrimSpace(ext), "."))
	if ext == "" {
		ext = "bin"
	}
	datedir := fmt.Sprintf("%04d/%02d/%02d", at.Year(), at.Month(), at.Day())
	return path.Join(category, datedir, base+"."+ext)
}

// cleanKey rejects empty, absolute and parent-escaping keys.
func cleanKey(key string) (string, error) {
	trimmed := strings.TrimSpace(key)
	if trimmed == "" {
		return "", errInvalidKey
	}
	cleaned := path.Clean("/" + trimmed)[1:]
	if cleaned == "" || cleaned != strings.TrimLeft(trimmed, "/") {
		return "", fmt.Errorf("%w: %q", errInvalidKey, key)
	}
	return cleaned, nil
}

func joinPrefix(prefix, key string) string {
	cleanPrefix := trimPrefix(prefix)
	if cleanPrefix == "" {
		return key
	}
	return path.Join(cleanPrefix, key)
}

func trimPrefix(prefix string) string {
	return strings.Trim(strings.TrimSpace(prefix), "/")
}

func ensureContentType(contentType string) string {
	if strings.TrimSpace(contentType) == "" {
		return "application/octet-stream"
	}
	return contentType
}

func checkPut(ctx context.Context, prefix, key string, data []byte) (string, error) {
	if len(data) == 0 {
		return "", errors.New("empty payload")
	}
	select {
	case <-ctx.Done():
		return "", ctx.Err()
	default:
	}
	cleaned, err := cleanKey(key)
	if err != nil {
		return "", err
	}
	return joinPrefix(prefix, cleaned), nil
}

package storage

import (
	"context"
	"errors"
	"io"
	"path"
	"strings"
)

var ErrNotFound = errors.New("object not found")

// Storage keeps submitted files. Keys are slash-separated relative paths.
type Storage interface {
	Put(ctx context.Context, key, contentType string, body io.Reader, size int64) error
	Open(ctx context.Context, key string) (io.ReadCloser, error)
}

// SubmissionKey builds the object key for a submitted file.
func SubmissionKey(projectID, studentID, submissionID, fileName string) string {
	ext := strings.ToLower(path.Ext(path.Base(strings.ReplaceAll(fileName, "\\", "/"))))
	if len(ext) > 10 || strings.ContainsAny(ext, " /") {
		ext = ""
	}
	return path.Join("submissions", cleanSegment(projectID), cleanSegment(studentID), cleanSegment(submissionID)+ext)
}

func cleanSegment(value string) string {
	var b strings.Builder
	for _, r := range value {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '-', r == '_':
			b.WriteRune(r)
		default:
			b.WriteRune('_')
		}
	}
	if b.Len() == 0 {
		return "_"
	}
	return b.String()
}

func validKey(key string) bool {
	if key == "" || strings.HasPrefix(key, "/") || strings.Contains(key, "\\") {
		return false
	}
	for _, part := range strings.Split(key, "/") {
		if part == "" || part == "." || part == ".." {
			return false
		}
	}
	return true
}

// Package storage archives uploaded resumes.
package storage

import (
	"context"
	"io"
	"path"
	"strings"
)

type Uploader interface {
	// Upload stores r under objectName and returns the reference kept on the session.
	Upload(ctx context.Context, objectName string, contentType string, r io.Reader) (storedPath string, err error)
	Delete(ctx context.Context, storedPath string) error
}

// ContentType maps a resume extension to its MIME type.
func ContentType(ext string) string {
	switch strings.ToLower(ext) {
	case ".pdf":
		return "application/pdf"
	case ".docx":
		return "application/vnd.openxmlformats-officedocument.wordprocessingml.document"
	default:
		return "text/plain; charset=utf-8"
	}
}

// ObjectName builds "resumes/{sessionID}{ext}" with ext lower-cased.
func ObjectName(sessionID, ext string) string {
	return path.Join("resumes", sessionID+strings.ToLower(ext))
}

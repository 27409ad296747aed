// Package storage keeps image bytes in S3-compatible object storage and
// inspects uploaded files.
package storage

import (
	"errors"
	"io"
	"regexp"
	"strings"
)

var (
	ErrObjectNotFound = errors.New("storage: object not found")
	ErrFetch          = errors.New("storage: fetch failed")
)

type UploadInput struct {
	// Namespace groups objects of one owner under a common prefix.
	Namespace   string
	Extension   string
	ContentType string
	Size        int64
	Body        io.Reader
}

type Object struct {
	Key      string
	URL      string
	PublicID string
}

var extPattern = regexp.MustCompile(`\.[^/.]+$`)

// PublicIDFromURL returns the part of rawURL after marker with the file
// extension removed. ok is false when marker does not split rawURL in two.
func PublicIDFromURL(rawURL, marker string) (string, bool) {
	if marker == "" {
		return "", false
	}
	parts := strings.Split(rawURL, marker)
	if len(parts) != 2 {
		return "", false
	}
	id := extPattern.ReplaceAllString(parts[1], "")
	if id == "" {
		return "", false
	}
	return id, true
}

func stripExt(key string) string {
	return extPattern.ReplaceAllString(key, "")
}

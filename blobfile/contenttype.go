package blobfile

import (
	"path/filepath"
	"strings"
)

// DefaultContentType is used for unknown extensions.
const DefaultContentType = "application/octet-stream"

var contentTypes = map[string]string{
	".txt":  "text/plain",
	".log":  "text/plain",
	".md":   "text/plain",
	".json": "application/json",
	".png":  "image/png",
	".jpg":  "image/jpeg",
	".jpeg": "image/jpeg",
	".gif":  "image/gif",
	".webp": "image/webp",
	".pdf":  "application/pdf",
}

// ContentTypeForPath guesses a content type from the file extension.
func ContentTypeForPath(path string) string {
	if ct, ok := contentTypes[strings.ToLower(filepath.Ext(path))]; ok {
		return ct
	}
	return DefaultContentType
}

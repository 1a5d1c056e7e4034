package images

import (
	"encoding/hex"
	"fmt"
	"path"
	"regexp"
	"strings"

	"github.com/google/uuid"
)

var filenamePattern = regexp.MustCompile(`^[0-9a-f]{32}\.[a-z0-9]{1,10}$`)

var contentTypes = map[string]string{
	"png":  "image/png",
	"jpg":  "image/jpeg",
	"jpeg": "image/jpeg",
	"gif":  "image/gif",
	"bmp":  "image/bmp",
	"tiff": "image/tiff",
	"webp": "image/webp",
}

// NewFilename returns a fresh storage name: 32 hex characters of a random
// UUID followed by the extension.
func NewFilename(ext string) (string, error) {
	id, err := uuid.NewRandom()
	if err != nil {
		return "", fmt.Errorf("generate filename: %w", err)
	}
	return hex.EncodeToString(id[:]) + "." + ext, nil
}

// ValidFilename reports whether name has the shape produced by NewFilename.
func ValidFilename(name string) bool {
	return filenamePattern.MatchString(name)
}

// ContentType returns the MIME type of a stored image name.
func ContentType(name string) string {
	ext := strings.TrimPrefix(path.Ext(name), ".")
	if ct, ok := contentTypes[ext]; ok {
		return ct
	}
	return "application/octet-stream"
}

package images

import (
	"bytes"
	"fmt"
	"image"
	"strings"

	// Decoders registered for format sniffing. Formats outside the allow-list
	// still need a decoder so they are reported as disallowed, not undecodable.
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"

	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"
)

// Validator checks upload size and content. It has no side effects.
type Validator struct {
	maxFileSize int64
	maxPixels   int64
	allowed     map[string]struct{}
}

// NewValidator builds a Validator. maxPixels <= 0 disables the pixel bound.
func NewValidator(maxFileSize, maxPixels int64, allowedExtensions []string) *Validator {
	allowed := make(map[string]struct{}, len(allowedExtensions))
	for _, ext := range allowedExtensions {
		allowed[strings.ToLower(strings.TrimSpace(ext))] = struct{}{}
	}
	return &Validator{
		maxFileSize: maxFileSize,
		maxPixels:   maxPixels,
		allowed:     allowed,
	}
}

// MaxFileSize returns the byte limit applied to uploads.
func (v *Validator) MaxFileSize() int64 {
	return v.maxFileSize
}

// CheckSize rejects a declared length above the limit. A negative length
// means unknown and is left to the bounded read.
func (v *Validator) CheckSize(declared int64) error {
	if declared > v.maxFileSize {
		return fmt.Errorf("%w: declared %d bytes, limit %d", ErrPayloadTooLarge, declared, v.maxFileSize)
	}
	return nil
}

// DetectFormat decodes data and returns its lower-cased format when it is on
// the allow-list.
func (v *Validator) DetectFormat(data []byte) (string, error) {
	if int64(len(data)) > v.maxFileSize {
		return "", fmt.Errorf("%w: read %d bytes, limit %d", ErrPayloadTooLarge, len(data), v.maxFileSize)
	}

	cfg, format, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrUnsupportedFileType, err)
	}
	if v.maxPixels > 0 && int64(cfg.Width)*int64(cfg.Height) > v.maxPixels {
		return "", fmt.Errorf("%w: %dx%d exceeds %d pixels", ErrUnsupportedFileType, cfg.Width, cfg.Height, v.maxPixels)
	}
	// DecodeConfig only reads the header; decode the body to reject truncated files.
	if _, _, err := image.Decode(bytes.NewReader(data)); err != nil {
		return "", fmt.Errorf("%w: %v", ErrUnsupportedFileType, err)
	}

	format = strings.ToLower(format)
	if _, ok := v.allowed[format]; !ok || format == "" {
		return "", fmt.Errorf("%w: %q", ErrUnsupportedExtension, format)
	}
	return format, nil
}

// Validate runs the size check followed by format detection.
func (v *Validator) Validate(declared int64, data []byte) (string, error) {
	if err := v.CheckSize(declared); err != nil {
		return "", err
	}
	return v.DetectFormat(data)
}

package images

import (
	"errors"
	"fmt"
)

var (
	// ErrNoFile signals that the multipart body carried no file field.
	ErrNoFile = errors.New("no file uploaded")
	// ErrPayloadTooLarge signals that the declared or actual size is over the limit.
	ErrPayloadTooLarge = errors.New("payload too large")
	// ErrUnsupportedFileType signals that the bytes do not decode as an image.
	ErrUnsupportedFileType = errors.New("unsupported file type")
	// ErrUnsupportedExtension signals a decodable image whose format is not allowed.
	ErrUnsupportedExtension = errors.New("unsupported file extension")
	// ErrInvalidPage signals a malformed page number.
	ErrInvalidPage = errors.New("invalid page")
	// ErrInvalidFilename signals a filename that cannot have been generated by the store.
	ErrInvalidFilename = errors.New("invalid filename")
	// ErrImageNotFound signals that no record exists for the identifier.
	ErrImageNotFound = errors.New("image not found")
	// ErrFileMissing signals that the backing file of a name is absent.
	ErrFileMissing = errors.New("image file missing")
	// ErrStorageWrite signals that image bytes could not be persisted.
	ErrStorageWrite = errors.New("storage write failed")
	// ErrConnectionUnavailable signals that no database connection could be borrowed.
	ErrConnectionUnavailable = errors.New("database connection unavailable")
)

// PageOutOfRangeError is returned when the requested page is past the last one.
type PageOutOfRangeError struct {
	Page     int
	LastPage int
}

func (e *PageOutOfRangeError) Error() string {
	return fmt.Sprintf("page %d out of range, last page is %d", e.Page, e.LastPage)
}

// Kind classifies pipeline failures independently of how they are rendered.
type Kind int

const (
	KindInternal Kind = iota
	KindBadRequest
	KindPayloadTooLarge
	KindUnsupportedMediaType
	KindNotFound
	KindStorageWriteFailed
	KindConnectionUnavailable
)

var kindNames = map[Kind]string{
	KindInternal:              "internal_error",
	KindBadRequest:            "bad_request",
	KindPayloadTooLarge:       "payload_too_large",
	KindUnsupportedMediaType:  "unsupported_media_type",
	KindNotFound:              "not_found",
	KindStorageWriteFailed:    "storage_write_failed",
	KindConnectionUnavailable: "connection_unavailable",
}

func (k Kind) String() string {
	if name, ok := kindNames[k]; ok {
		return name
	}
	return kindNames[KindInternal]
}

// KindOf maps an error returned by this package to its Kind.
func KindOf(err error) Kind {
	var pageErr *PageOutOfRangeError
	switch {
	case err == nil:
		return KindInternal
	case errors.Is(err, ErrNoFile), errors.Is(err, ErrInvalidPage), errors.Is(err, ErrInvalidFilename):
		return KindBadRequest
	case errors.Is(err, ErrPayloadTooLarge):
		return KindPayloadTooLarge
	case errors.Is(err, ErrUnsupportedFileType), errors.Is(err, ErrUnsupportedExtension):
		return KindUnsupportedMediaType
	case errors.Is(err, ErrImageNotFound), errors.Is(err, ErrFileMissing), errors.As(err, &pageErr):
		return KindNotFound
	case errors.Is(err, ErrStorageWrite):
		return KindStorageWriteFailed
	case errors.Is(err, ErrConnectionUnavailable):
		return KindConnectionUnavailable
	default:
		return KindInternal
	}
}

package images

import (
	"io"
	"time"
)

// Record is the persisted metadata of one stored image.
type Record struct {
	ID           int64     `json:"id"`
	Filename     string    `json:"filename"`
	OriginalName string    `json:"original_name"`
	Size         int64     `json:"size"`
	FileType     string    `json:"file_type"`
	UploadTime   time.Time `json:"upload_time"`
}

// NewRecord is the insert payload; id and upload time are assigned by the store.
type NewRecord struct {
	Filename     string
	OriginalName string
	Size         int64
	FileType     string
}

// Upload is one request-scoped upload attempt.
type Upload struct {
	// DeclaredLength is the caller supplied Content-Length, -1 when unknown.
	DeclaredLength int64
	OriginalName   string
	Body           io.Reader
}

// UploadResult describes a successfully stored image.
type UploadResult struct {
	Record Record
	URL    string
}

// Page is one slice of the gallery.
type Page struct {
	Images     []Record
	Total      int64
	Page       int
	PerPage    int
	TotalPages int
}

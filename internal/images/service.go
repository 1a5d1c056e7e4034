package images

import (
	"context"
	"errors"
	"fmt"
	"io"
	"math"
	"net/http"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/abduss/imagehost/internal/logger"
	"go.uber.org/zap"
)

const maxOriginalNameLength = 255

type metadataStore interface {
	Create(ctx context.Context, rec NewRecord) (Record, error)
	Page(ctx context.Context, limit, offset int) ([]Record, int64, error)
	FindFilename(ctx context.Context, id int64) (string, error)
	Delete(ctx context.Context, id int64) (string, error)
}

type fileStore interface {
	Save(ctx context.Context, data []byte, ext string) (string, error)
	Open(ctx context.Context, name string) (io.ReadCloser, error)
	Remove(ctx context.Context, name string) error
}

// presigner is implemented by stores that can hand out direct download URLs.
type presigner interface {
	PresignedURL(ctx context.Context, name string) (string, error)
}

// Service runs the upload pipeline and the gallery and deletion operations.
type Service struct {
	repo      metadataStore
	store     fileStore
	validator *Validator
	baseURL   string
	perPage   int
}

// Options carries the non-collaborator settings of a Service.
type Options struct {
	BaseURL      string
	ItemsPerPage int
}

// NewService constructs an image service.
func NewService(repo metadataStore, store fileStore, validator *Validator, opts Options) *Service {
	perPage := opts.ItemsPerPage
	if perPage <= 0 {
		perPage = 10
	}
	return &Service{
		repo:      repo,
		store:     store,
		validator: validator,
		baseURL:   strings.TrimRight(opts.BaseURL, "/"),
		perPage:   perPage,
	}
}

// PerPage returns the gallery page size.
func (s *Service) PerPage() int {
	return s.perPage
}

// MaxFileSize returns the largest accepted payload in bytes.
func (s *Service) MaxFileSize() int64 {
	return s.validator.MaxFileSize()
}

// PublicURL builds the address under which a stored image is served.
func (s *Service) PublicURL(filename string) string {
	return s.baseURL + "/images/" + filename
}

// Upload validates, stores and records one image. Nothing is retried; a
// failure at any step leaves no metadata record behind.
func (s *Service) Upload(ctx context.Context, in Upload) (UploadResult, error) {
	log := logger.FromContext(ctx).With(zap.String("original_name", in.OriginalName))

	if in.Body == nil {
		log.Warn("upload rejected", zap.Error(ErrNoFile))
		return UploadResult{}, ErrNoFile
	}

	if err := s.validator.CheckSize(in.DeclaredLength); err != nil {
		log.Warn("upload rejected", zap.Int64("declared_length", in.DeclaredLength), zap.Error(err))
		return UploadResult{}, err
	}

	data, err := readBounded(ctx, in.Body, s.validator.MaxFileSize())
	if err != nil {
		log.Warn("upload read failed", zap.Error(err))
		return UploadResult{}, err
	}

	format, err := s.validator.DetectFormat(data)
	if err != nil {
		log.Warn("upload rejected", zap.Int("size", len(data)), zap.Error(err))
		return UploadResult{}, err
	}

	filename, err := s.store.Save(ctx, data, format)
	if err != nil {
		log.Error("store image", zap.Error(err))
		if !errors.Is(err, ErrStorageWrite) {
			err = fmt.Errorf("%w: %v", ErrStorageWrite, err)
		}
		return UploadResult{}, err
	}

	rec, err := s.repo.Create(ctx, NewRecord{
		Filename:     filename,
		OriginalName: sanitizeOriginalName(in.OriginalName),
		Size:         int64(len(data)),
		FileType:     format,
	})
	if err != nil {
		log.Error("insert image record", zap.String("filename", filename), zap.Error(err))
		if rmErr := s.store.Remove(context.WithoutCancel(ctx), filename); rmErr != nil {
			log.Error("image file orphaned", zap.String("filename", filename), zap.Error(rmErr))
		}
		return UploadResult{}, fmt.Errorf("record upload: %w", err)
	}

	log.Info("image uploaded",
		zap.Int64("id", rec.ID),
		zap.String("filename", rec.Filename),
		zap.Int64("size", rec.Size),
		zap.String("file_type", rec.FileType),
	)
	return UploadResult{Record: rec, URL: s.PublicURL(rec.Filename)}, nil
}

// List returns the given 1-based gallery page, newest first.
func (s *Service) List(ctx context.Context, page int) (Page, error) {
	if page <= 0 {
		return Page{}, fmt.Errorf("%w: %d", ErrInvalidPage, page)
	}

	// Pages past any reachable offset are clamped; the store answers them
	// with the total only and the range check below reports the last page.
	offset := math.MaxInt
	if page-1 <= math.MaxInt/s.perPage {
		offset = (page - 1) * s.perPage
	}
	records, total, err := s.repo.Page(ctx, s.perPage, offset)
	if err != nil {
		logger.FromContext(ctx).Error("load gallery page", zap.Int("page", page), zap.Error(err))
		return Page{}, err
	}

	totalPages := TotalPages(total, s.perPage)
	if totalPages > 0 && page > totalPages {
		return Page{}, &PageOutOfRangeError{Page: page, LastPage: totalPages}
	}
	if records == nil {
		records = []Record{}
	}

	return Page{
		Images:     records,
		Total:      total,
		Page:       page,
		PerPage:    s.perPage,
		TotalPages: totalPages,
	}, nil
}

// Delete removes the record and then its file. Once the record is gone the
// call succeeds; file removal problems are only logged.
func (s *Service) Delete(ctx context.Context, id int64) error {
	log := logger.FromContext(ctx).With(zap.Int64("id", id))

	if id <= 0 {
		return ErrImageNotFound
	}

	if _, err := s.repo.FindFilename(ctx, id); err != nil {
		if !errors.Is(err, ErrImageNotFound) {
			log.Error("look up image", zap.Error(err))
		}
		return err
	}

	filename, err := s.repo.Delete(ctx, id)
	if err != nil {
		if !errors.Is(err, ErrImageNotFound) {
			log.Error("delete image record", zap.Error(err))
		}
		return err
	}

	// The record is committed as deleted; finish the file even if the client left.
	if err := s.store.Remove(context.WithoutCancel(ctx), filename); err != nil {
		if errors.Is(err, ErrFileMissing) {
			log.Warn("image file already absent", zap.String("filename", filename))
		} else {
			log.Error("remove image file", zap.String("filename", filename), zap.Error(err))
		}
	}

	log.Info("image deleted", zap.String("filename", filename))
	return nil
}

// Open returns the stored bytes of an image and their MIME type.
func (s *Service) Open(ctx context.Context, filename string) (io.ReadCloser, string, error) {
	if !ValidFilename(filename) {
		return nil, "", ErrInvalidFilename
	}
	rc, err := s.store.Open(ctx, filename)
	if err != nil {
		return nil, "", err
	}
	return rc, ContentType(filename), nil
}

// DirectURL returns an address the client can fetch filename from without
// going through this service, or "" when the store cannot provide one.
func (s *Service) DirectURL(ctx context.Context, filename string) (string, error) {
	p, ok := s.store.(presigner)
	if !ok {
		return "", nil
	}
	if !ValidFilename(filename) {
		return "", ErrInvalidFilename
	}
	return p.PresignedURL(ctx, filename)
}

// TotalPages is ceil(total / perPage).
func TotalPages(total int64, perPage int) int {
	if total <= 0 || perPage <= 0 {
		return 0
	}
	return int((total + int64(perPage) - 1) / int64(perPage))
}

// readBounded reads at most limit bytes. Reading one more byte than the
// limit, or hitting the request body cap, means the payload is too large.
func readBounded(ctx context.Context, r io.Reader, limit int64) ([]byte, error) {
	data, err := io.ReadAll(io.LimitReader(contextReader{ctx: ctx, r: r}, limit+1))
	if err != nil {
		var maxErr *http.MaxBytesError
		switch {
		case errors.As(err, &maxErr):
			return nil, fmt.Errorf("%w: request body over %d bytes", ErrPayloadTooLarge, maxErr.Limit)
		case ctx.Err() != nil:
			return nil, fmt.Errorf("read upload: %w", ctx.Err())
		default:
			return nil, fmt.Errorf("read upload: %w", err)
		}
	}
	if int64(len(data)) > limit {
		return nil, fmt.Errorf("%w: body over %d bytes", ErrPayloadTooLarge, limit)
	}
	return data, nil
}

// contextReader stops reading once ctx is done, e.g. the client disconnected.
type contextReader struct {
	ctx context.Context
	r   io.Reader
}

func (cr contextReader) Read(p []byte) (int, error) {
	if err := cr.ctx.Err(); err != nil {
		return 0, err
	}
	return cr.r.Read(p)
}

// sanitizeOriginalName makes a client filename storable: valid UTF-8, no
// control characters, at most maxOriginalNameLength runes.
func sanitizeOriginalName(name string) string {
	name = strings.ToValidUTF8(name, "\uFFFD")
	name = strings.Map(func(r rune) rune {
		if unicode.IsControl(r) {
			return -1
		}
		return r
	}, name)
	name = strings.TrimSpace(name)
	if name == "" {
		return "upload"
	}
	if utf8.RuneCountInString(name) > maxOriginalNameLength {
		name = string([]rune(name)[:maxOriginalNameLength])
	}
	return name
}

package images

import (
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"strconv"

	"github.com/abduss/imagehost/internal/i18n"
	"github.com/abduss/imagehost/internal/logger"
	"github.com/abduss/imagehost/internal/metrics"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

const (
	fileField = "file"
	// multipartSlack is the room left for boundaries and part headers on
	// top of the file size limit when capping the request body.
	multipartSlack = 64 << 10
	dateLayout     = "2006-01-02 15:04:05"
)

// RegisterRoutes mounts the upload, gallery, deletion and file endpoints.
// deleteGuard runs before the delete handler (admin auth).
func RegisterRoutes(router gin.IRoutes, service *Service, bundle *i18n.Bundle, deleteGuard ...gin.HandlerFunc) {
	handler := &httpHandler{service: service, bundle: bundle}

	router.POST("/upload", handler.upload)
	router.GET("/api/images", handler.list)
	router.DELETE("/api/images/:id", append(deleteGuard, handler.delete)...)
	router.GET("/images/:filename", handler.serveFile)
}

type httpHandler struct {
	service *Service
	bundle  *i18n.Bundle
}

type imageResponse struct {
	ID           int64  `json:"id"`
	Filename     string `json:"filename"`
	OriginalName string `json:"original_name"`
	Size         int64  `json:"size"`
	SizeKB       int64  `json:"size_kb"`
	FileType     string `json:"file_type"`
	UploadTime   string `json:"upload_time"`
	UploadDate   string `json:"upload_date"`
	URL          string `json:"url"`
}

type pageResponse struct {
	Images     []imageResponse `json:"images"`
	Total      int64           `json:"total"`
	Page       int             `json:"page"`
	PerPage    int             `json:"per_page"`
	TotalPages int             `json:"total_pages"`
}

func (h *httpHandler) upload(c *gin.Context) {
	ctx := c.Request.Context()
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, h.service.MaxFileSize()+multipartSlack)

	part, err := filePart(c.Request)
	if err != nil {
		logger.FromContext(ctx).Warn("upload rejected", zap.Error(err))
		metrics.RecordUpload(KindOf(err).String(), 0)
		h.fail(c, err)
		return
	}
	defer part.Close()

	result, err := h.service.Upload(ctx, Upload{
		DeclaredLength: c.Request.ContentLength,
		OriginalName:   part.FileName(),
		Body:           part,
	})
	if err != nil {
		metrics.RecordUpload(KindOf(err).String(), 0)
		h.fail(c, err)
		return
	}

	metrics.RecordUpload(metrics.OutcomeOK, result.Record.Size)
	c.JSON(http.StatusCreated, gin.H{
		"message":  h.bundle.T(ctx, "upload.success"),
		"file_url": result.URL,
	})
}

func (h *httpHandler) list(c *gin.Context) {
	page := 1
	if raw, ok := c.GetQuery("page"); ok {
		parsed, err := strconv.Atoi(raw)
		if err != nil {
			h.fail(c, fmt.Errorf("%w: %q", ErrInvalidPage, raw))
			return
		}
		page = parsed
	}

	result, err := h.service.List(c.Request.Context(), page)
	if err != nil {
		h.fail(c, err)
		return
	}

	resp := pageResponse{
		Images:     make([]imageResponse, 0, len(result.Images)),
		Total:      result.Total,
		Page:       result.Page,
		PerPage:    result.PerPage,
		TotalPages: result.TotalPages,
	}
	for _, rec := range result.Images {
		resp.Images = append(resp.Images, h.marshalRecord(rec))
	}
	c.JSON(http.StatusOK, resp)
}

func (h *httpHandler) delete(c *gin.Context) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		err = fmt.Errorf("%w: id %q", ErrImageNotFound, c.Param("id"))
	} else {
		err = h.service.Delete(c.Request.Context(), id)
	}
	if err != nil {
		metrics.RecordDeletion(KindOf(err).String())
		h.fail(c, err)
		return
	}

	metrics.RecordDeletion(metrics.OutcomeOK)
	c.JSON(http.StatusOK, gin.H{"message": h.bundle.T(c.Request.Context(), "image.deleted")})
}

func (h *httpHandler) serveFile(c *gin.Context) {
	ctx := c.Request.Context()
	filename := c.Param("filename")

	location, err := h.service.DirectURL(ctx, filename)
	if err != nil && !errors.Is(err, ErrInvalidFilename) {
		logger.FromContext(ctx).Warn("presign image url", zap.String("filename", filename), zap.Error(err))
	}
	if location != "" {
		c.Redirect(http.StatusFound, location)
		return
	}

	rc, contentType, err := h.service.Open(ctx, filename)
	if err != nil {
		if errors.Is(err, ErrInvalidFilename) {
			err = ErrFileMissing
		}
		h.fail(c, err)
		return
	}
	defer rc.Close()

	// Names are never reused, so the bytes behind a URL never change.
	c.Header("Cache-Control", "public, max-age=31536000, immutable")
	c.DataFromReader(http.StatusOK, -1, contentType, rc, nil)
}

func (h *httpHandler) marshalRecord(rec Record) imageResponse {
	return imageResponse{
		ID:           rec.ID,
		Filename:     rec.Filename,
		OriginalName: rec.OriginalName,
		Size:         rec.Size,
		SizeKB:       rec.Size / 1024,
		FileType:     rec.FileType,
		UploadTime:   rec.UploadTime.UTC().Format("2006-01-02T15:04:05Z07:00"),
		UploadDate:   rec.UploadTime.UTC().Format(dateLayout),
		URL:          h.service.PublicURL(rec.Filename),
	}
}

// fail renders err with the status of its kind and a localized message.
// Internal details stay in the logs.
func (h *httpHandler) fail(c *gin.Context, err error) {
	ctx := c.Request.Context()

	var pageErr *PageOutOfRangeError
	if errors.As(err, &pageErr) {
		c.JSON(http.StatusNotFound, gin.H{
			"last_page": pageErr.LastPage,
			"message":   h.bundle.T(ctx, "gallery.page_not_found", pageErr.Page, pageErr.LastPage),
		})
		return
	}

	kind := KindOf(err)
	var msg string
	switch {
	case errors.Is(err, ErrNoFile):
		msg = h.bundle.T(ctx, "error.no_file")
	case errors.Is(err, ErrInvalidPage):
		msg = h.bundle.T(ctx, "error.invalid_page")
	case errors.Is(err, ErrImageNotFound), errors.Is(err, ErrFileMissing):
		msg = h.bundle.T(ctx, "error.image_not_found")
	case kind == KindPayloadTooLarge:
		msg = h.bundle.T(ctx, "error.payload_too_large", h.service.MaxFileSize())
	default:
		msg = h.bundle.T(ctx, "error."+kind.String())
	}

	c.JSON(StatusOf(kind), gin.H{"error": msg})
}

// StatusOf maps an error kind to its HTTP status code.
func StatusOf(kind Kind) int {
	switch kind {
	case KindBadRequest:
		return http.StatusBadRequest
	case KindPayloadTooLarge:
		return http.StatusRequestEntityTooLarge
	case KindUnsupportedMediaType:
		return http.StatusUnsupportedMediaType
	case KindNotFound:
		return http.StatusNotFound
	case KindConnectionUnavailable:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

// filePart advances the multipart stream to the first part named "file"
// that carries a filename. The part is streamed, never buffered to disk.
func filePart(r *http.Request) (*multipart.Part, error) {
	mr, err := r.MultipartReader()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrNoFile, err)
	}

	for {
		part, err := mr.NextPart()
		if errors.Is(err, io.EOF) {
			return nil, ErrNoFile
		}
		if err != nil {
			var maxErr *http.MaxBytesError
			if errors.As(err, &maxErr) {
				return nil, fmt.Errorf("%w: request body over %d bytes", ErrPayloadTooLarge, maxErr.Limit)
			}
			return nil, fmt.Errorf("%w: %v", ErrNoFile, err)
		}
		if part.FormName() == fileField && part.FileName() != "" {
			return part, nil
		}
		part.Close()
	}
}

package images

import (
	"bytes"
	"encoding/json"
	"math"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/abduss/imagehost/internal/i18n"
	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type testAPI struct {
	router *gin.Engine
	repo   *memoryRepo
	store  *memoryStore
}

func newTestAPI(t *testing.T, perPage int) *testAPI {
	t.Helper()
	gin.SetMode(gin.TestMode)

	bundle, err := i18n.NewBundle("en")
	require.NoError(t, err)

	repo, store := newMemoryRepo(), newMemoryStore()
	r := gin.New()
	r.Use(i18n.Middleware(bundle))
	RegisterRoutes(r, newTestService(repo, store, perPage), bundle)

	return &testAPI{router: r, repo: repo, store: store}
}

func (a *testAPI) do(req *http.Request) *httptest.ResponseRecorder {
	rr := httptest.NewRecorder()
	a.router.ServeHTTP(rr, req)
	return rr
}

func multipartRequest(t *testing.T, field, filename string, data []byte) *http.Request {
	t.Helper()
	var body bytes.Buffer
	w := multipart.NewWriter(&body)
	require.NoError(t, w.WriteField("comment", "holiday"))
	if filename != "" {
		part, err := w.CreateFormFile(field, filename)
		require.NoError(t, err)
		_, err = part.Write(data)
		require.NoError(t, err)
	}
	require.NoError(t, w.Close())

	req := httptest.NewRequest(http.MethodPost, "/upload", &body)
	req.Header.Set("Content-Type", w.FormDataContentType())
	return req
}

func decodeJSON(t *testing.T, rr *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var out map[string]any
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &out), rr.Body.String())
	return out
}

func TestUploadListDeleteFlow(t *testing.T) {
	api := newTestAPI(t, 10)
	data := encodeImage(t, "png", 100, 100)

	rr := api.do(multipartRequest(t, "file", "square.png", data))
	require.Equal(t, http.StatusCreated, rr.Code, rr.Body.String())
	created := decodeJSON(t, rr)
	fileURL, _ := created["file_url"].(string)
	assert.True(t, strings.HasPrefix(fileURL, testBaseURL+"/images/"))
	assert.True(t, strings.HasSuffix(fileURL, ".png"))
	assert.Equal(t, "Image uploaded successfully", created["message"])

	rr = api.do(httptest.NewRequest(http.MethodGet, "/api/images?page=1", nil))
	require.Equal(t, http.StatusOK, rr.Code)
	var page pageResponse
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &page))
	require.Len(t, page.Images, 1)
	img := page.Images[0]
	assert.Equal(t, "png", img.FileType)
	assert.Equal(t, "square.png", img.OriginalName)
	assert.Equal(t, int64(len(data)), img.Size)
	assert.Equal(t, int64(len(data))/1024, img.SizeKB)
	assert.Equal(t, fileURL, img.URL)
	assert.Len(t, img.UploadDate, len("2006-01-02 15:04:05"))
	assert.Equal(t, int64(1), page.Total)
	assert.Equal(t, 1, page.TotalPages)
	assert.Equal(t, 10, page.PerPage)

	rr = api.do(httptest.NewRequest(http.MethodGet, "/images/"+img.Filename, nil))
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, "image/png", rr.Header().Get("Content-Type"))
	assert.Equal(t, data, rr.Body.Bytes())

	rr = api.do(httptest.NewRequest(http.MethodDelete, "/api/images/"+strconv.FormatInt(img.ID, 10), nil))
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, "Image deleted", decodeJSON(t, rr)["message"])
	assert.False(t, api.store.has(img.Filename))

	rr = api.do(httptest.NewRequest(http.MethodGet, "/api/images", nil))
	require.Equal(t, http.StatusOK, rr.Code)
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &page))
	assert.Empty(t, page.Images)
	assert.Zero(t, page.TotalPages)

	rr = api.do(httptest.NewRequest(http.MethodDelete, "/api/images/"+strconv.FormatInt(img.ID, 10), nil))
	assert.Equal(t, http.StatusNotFound, rr.Code)
}

func TestUploadErrors(t *testing.T) {
	api := newTestAPI(t, 10)

	rr := api.do(multipartRequest(t, "file", "notes.txt", []byte("hello, this is text")))
	assert.Equal(t, http.StatusUnsupportedMediaType, rr.Code)

	rr = api.do(multipartRequest(t, "file", "pic.bmp", encodeImage(t, "bmp", 4, 4)))
	assert.Equal(t, http.StatusUnsupportedMediaType, rr.Code)

	rr = api.do(multipartRequest(t, "image", "pic.png", encodeImage(t, "png", 4, 4)))
	assert.Equal(t, http.StatusBadRequest, rr.Code)
	assert.Equal(t, "Upload failed. No file uploaded", decodeJSON(t, rr)["error"])

	rr = api.do(multipartRequest(t, "file", "", nil))
	assert.Equal(t, http.StatusBadRequest, rr.Code)

	req := httptest.NewRequest(http.MethodPost, "/upload", strings.NewReader(`{"file":"x"}`))
	req.Header.Set("Content-Type", "application/json")
	assert.Equal(t, http.StatusBadRequest, api.do(req).Code)

	assert.Zero(t, api.repo.count())
	assert.Zero(t, api.store.count())
}

func TestUploadDeclaredLengthTooLarge(t *testing.T) {
	api := newTestAPI(t, 10)

	req := multipartRequest(t, "file", "big.png", encodeImage(t, "png", 4, 4))
	req.ContentLength = testMaxFileSize + 1

	rr := api.do(req)
	assert.Equal(t, http.StatusRequestEntityTooLarge, rr.Code)
	assert.Contains(t, decodeJSON(t, rr)["error"], strconv.Itoa(testMaxFileSize))
	assert.Zero(t, api.store.count())
}

func TestUploadBodyTooLarge(t *testing.T) {
	api := newTestAPI(t, 10)

	req := multipartRequest(t, "file", "big.png", make([]byte, testMaxFileSize+multipartSlack))
	req.ContentLength = -1

	rr := api.do(req)
	assert.Equal(t, http.StatusRequestEntityTooLarge, rr.Code)
}

func TestListErrors(t *testing.T) {
	api := newTestAPI(t, 1)

	for _, q := range []string{"abc", "0", "-3", "1.5"} {
		rr := api.do(httptest.NewRequest(http.MethodGet, "/api/images?page="+q, nil))
		assert.Equal(t, http.StatusBadRequest, rr.Code, q)
	}

	data := encodeImage(t, "gif", 4, 4)
	require.Equal(t, http.StatusCreated, api.do(multipartRequest(t, "file", "a.gif", data)).Code)
	require.Equal(t, http.StatusCreated, api.do(multipartRequest(t, "file", "b.gif", data)).Code)

	rr := api.do(httptest.NewRequest(http.MethodGet, "/api/images?page=3", nil))
	require.Equal(t, http.StatusNotFound, rr.Code)
	body := decodeJSON(t, rr)
	assert.Equal(t, float64(2), body["last_page"])
	assert.Equal(t, "Page 3 not found, last page is 2", body["message"])

	rr = api.do(httptest.NewRequest(http.MethodGet, "/api/images?page="+strconv.Itoa(math.MaxInt), nil))
	require.Equal(t, http.StatusNotFound, rr.Code)
	assert.Equal(t, float64(2), decodeJSON(t, rr)["last_page"])

	api.repo.pageErr = ErrConnectionUnavailable
	rr = api.do(httptest.NewRequest(http.MethodGet, "/api/images?page=1", nil))
	assert.Equal(t, http.StatusServiceUnavailable, rr.Code)
}

func TestDeleteUnknownIDs(t *testing.T) {
	api := newTestAPI(t, 10)

	for _, id := range []string{"999", "0", "abc"} {
		rr := api.do(httptest.NewRequest(http.MethodDelete, "/api/images/"+id, nil))
		assert.Equal(t, http.StatusNotFound, rr.Code, id)
	}
}

func TestServeFileErrors(t *testing.T) {
	api := newTestAPI(t, 10)

	name, err := NewFilename("png")
	require.NoError(t, err)

	for _, path := range []string{"/images/" + name, "/images/passwd"} {
		rr := api.do(httptest.NewRequest(http.MethodGet, path, nil))
		assert.Equal(t, http.StatusNotFound, rr.Code, path)
	}
}

func TestErrorMessagesAreLocalized(t *testing.T) {
	api := newTestAPI(t, 10)

	req := multipartRequest(t, "file", "notes.txt", []byte("plain text"))
	req.Header.Set("Accept-Language", "ru-RU,ru;q=0.9")
	rr := api.do(req)

	require.Equal(t, http.StatusUnsupportedMediaType, rr.Code)
	assert.Equal(t, "Неподдерживаемый тип файла", decodeJSON(t, rr)["error"])
}

func TestStatusOf(t *testing.T) {
	assert.Equal(t, http.StatusBadRequest, StatusOf(KindBadRequest))
	assert.Equal(t, http.StatusRequestEntityTooLarge, StatusOf(KindPayloadTooLarge))
	assert.Equal(t, http.StatusUnsupportedMediaType, StatusOf(KindUnsupportedMediaType))
	assert.Equal(t, http.StatusNotFound, StatusOf(KindNotFound))
	assert.Equal(t, http.StatusInternalServerError, StatusOf(KindStorageWriteFailed))
	assert.Equal(t, http.StatusServiceUnavailable, StatusOf(KindConnectionUnavailable))
	assert.Equal(t, http.StatusInternalServerError, StatusOf(KindInternal))
}

func TestServeFileRedirectsToPresignedURL(t *testing.T) {
	gin.SetMode(gin.TestMode)
	bundle, err := i18n.NewBundle("en")
	require.NoError(t, err)

	validator := NewValidator(1024, 0, []string{"png"})
	service := NewService(newMemoryRepo(), NewMinIOStore(newFakeObjectClient(), "images", time.Minute), validator, Options{})
	r := gin.New()
	RegisterRoutes(r, service, bundle)

	name, err := NewFilename("png")
	require.NoError(t, err)

	rr := httptest.NewRecorder()
	r.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/images/"+name, nil))
	assert.Equal(t, http.StatusFound, rr.Code)
	assert.True(t, strings.HasPrefix(rr.Header().Get("Location"), "http://minio.test/images/"+name))
}

package images

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"image/color"
	"image/gif"
	"image/jpeg"
	"image/png"
	"io"
	"sort"
	"sync"
	"testing"
	"time"

	"golang.org/x/image/bmp"
)

func solidImage(w, h int) image.Image {
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.Set(x, y, color.RGBA{R: 200, G: 40, B: 90, A: 255})
		}
	}
	return img
}

func encodeImage(t *testing.T, format string, w, h int) []byte {
	t.Helper()
	var buf bytes.Buffer
	var err error
	switch format {
	case "png":
		err = png.Encode(&buf, solidImage(w, h))
	case "jpeg":
		err = jpeg.Encode(&buf, solidImage(w, h), nil)
	case "gif":
		err = gif.Encode(&buf, solidImage(w, h), nil)
	case "bmp":
		err = bmp.Encode(&buf, solidImage(w, h))
	default:
		t.Fatalf("unknown format %s", format)
	}
	if err != nil {
		t.Fatalf("encode %s: %v", format, err)
	}
	return buf.Bytes()
}

type memoryRepo struct {
	mu        sync.Mutex
	nextID    int64
	records   map[int64]Record
	createErr error
	pageErr   error
	base      time.Time
}

func newMemoryRepo() *memoryRepo {
	return &memoryRepo{
		records: make(map[int64]Record),
		base:    time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC),
	}
}

func (r *memoryRepo) Create(ctx context.Context, rec NewRecord) (Record, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.createErr != nil {
		return Record{}, r.createErr
	}
	for _, existing := range r.records {
		if existing.Filename == rec.Filename {
			return Record{}, ErrDuplicateFilename
		}
	}
	r.nextID++
	stored := Record{
		ID:           r.nextID,
		Filename:     rec.Filename,
		OriginalName: rec.OriginalName,
		Size:         rec.Size,
		FileType:     rec.FileType,
		UploadTime:   r.base.Add(time.Duration(r.nextID) * time.Second),
	}
	r.records[stored.ID] = stored
	return stored, nil
}

func (r *memoryRepo) Page(ctx context.Context, limit, offset int) ([]Record, int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.pageErr != nil {
		return nil, 0, r.pageErr
	}
	all := make([]Record, 0, len(r.records))
	for _, rec := range r.records {
		all = append(all, rec)
	}
	sort.Slice(all, func(i, j int) bool {
		if !all[i].UploadTime.Equal(all[j].UploadTime) {
			return all[i].UploadTime.After(all[j].UploadTime)
		}
		return all[i].ID > all[j].ID
	})
	total := int64(len(all))
	if offset >= len(all) {
		return []Record{}, total, nil
	}
	end := offset + limit
	if end > len(all) {
		end = len(all)
	}
	return all[offset:end], total, nil
}

func (r *memoryRepo) FindFilename(ctx context.Context, id int64) (string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	rec, ok := r.records[id]
	if !ok {
		return "", ErrImageNotFound
	}
	return rec.Filename, nil
}

func (r *memoryRepo) Delete(ctx context.Context, id int64) (string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	rec, ok := r.records[id]
	if !ok {
		return "", ErrImageNotFound
	}
	delete(r.records, id)
	return rec.Filename, nil
}

func (r *memoryRepo) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.records)
}

type memoryStore struct {
	mu        sync.Mutex
	files     map[string][]byte
	saveErr   error
	removeErr error
	removes   int
}

func newMemoryStore() *memoryStore {
	return &memoryStore{files: make(map[string][]byte)}
}

func (s *memoryStore) Save(ctx context.Context, data []byte, ext string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.saveErr != nil {
		return "", s.saveErr
	}
	name, err := NewFilename(ext)
	if err != nil {
		return "", err
	}
	s.files[name] = append([]byte(nil), data...)
	return name, nil
}

func (s *memoryStore) Open(ctx context.Context, name string) (io.ReadCloser, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	data, ok := s.files[name]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrFileMissing, name)
	}
	return io.NopCloser(bytes.NewReader(data)), nil
}

func (s *memoryStore) Remove(ctx context.Context, name string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.removes++
	if s.removeErr != nil {
		return s.removeErr
	}
	if _, ok := s.files[name]; !ok {
		return fmt.Errorf("%w: %s", ErrFileMissing, name)
	}
	delete(s.files, name)
	return nil
}

func (s *memoryStore) has(name string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.files[name]
	return ok
}

func (s *memoryStore) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.files)
}

const (
	testMaxFileSize = 64 * 1024
	testBaseURL     = "http://img.test"
)

func newTestService(repo *memoryRepo, store *memoryStore, perPage int) *Service {
	validator := NewValidator(testMaxFileSize, 1_000_000, []string{"jpg", "jpeg", "png", "gif"})
	return NewService(repo, store, validator, Options{BaseURL: testBaseURL + "/", ItemsPerPage: perPage})
}

package service

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"go.mongodb.org/mongo-driver/v2/bson"

	"imagefolders/models"
	"imagefolders/storage"
)

const (
	defaultPage      = 1
	defaultPageSize  = 10
	maxPageSize      = 100
	defaultThumbSize = 256
	minThumbSize     = 16
	maxThumbSize     = 1024
)

// UploadFile is a multipart upload already spooled to local disk.
type UploadFile struct {
	Path     string
	Filename string
	Size     int64
}

// PageRequest is the raw page/limit pair of a list query.
type PageRequest struct {
	Page  int
	Limit int
}

func (p PageRequest) normalize() (page, limit int) {
	page, limit = p.Page, p.Limit
	if page < 1 {
		page = defaultPage
	}
	if limit < 1 {
		limit = defaultPageSize
	}
	if limit > maxPageSize {
		limit = maxPageSize
	}
	return page, limit
}

// Download is an open image body plus the headers it is served with.
type Download struct {
	Body          io.ReadCloser
	ContentLength int64
	ContentType   string
	Filename      string
}

type ImageService struct {
	images   ImageStore
	folders  FolderStore
	tx       TxRunner
	remote   ObjectStorage
	fetcher  Fetcher
	maxBytes int64
	logger   *slog.Logger
}

// NewImageService builds the image service. maxBytes caps how much of a
// stored object is read into memory for a thumbnail; zero disables the cap.
func NewImageService(images ImageStore, folders FolderStore, tx TxRunner, remote ObjectStorage, fetcher Fetcher, maxBytes int64, logger *slog.Logger) *ImageService {
	return &ImageService{
		images:   images,
		folders:  folders,
		tx:       tx,
		remote:   remote,
		fetcher:  fetcher,
		maxBytes: maxBytes,
		logger:   logger,
	}
}

// Upload stores the file in object storage and records it in folderID.
// The local file is removed whatever the outcome.
func (s *ImageService) Upload(ctx context.Context, owner bson.ObjectID, folderID string, file *UploadFile) (*models.Image, error) {
	if file == nil || file.Path == "" {
		return nil, invalid("No image file uploaded")
	}
	defer func() {
		if err := os.Remove(file.Path); err != nil && !errors.Is(err, os.ErrNotExist) {
			s.logger.Warn("failed to remove upload temp file", "path", file.Path, "error", err)
		}
	}()

	if strings.TrimSpace(folderID) == "" {
		return nil, invalid("Folder id is required")
	}
	fid, err := parseID(folderID, "folder")
	if err != nil {
		return nil, err
	}
	if _, err := s.folders.FindOne(ctx, fid, owner); err != nil {
		return nil, mapNotFound(err, "Folder not found")
	}

	f, err := os.Open(file.Path)
	if err != nil {
		return nil, fmt.Errorf("open upload: %w", err)
	}
	defer f.Close()

	probe, err := storage.ProbeFile(f)
	if err != nil {
		return nil, err
	}
	if !probe.IsImage() {
		return nil, invalid("Only image files can be uploaded")
	}
	if probe.Oversized() {
		return nil, invalid("Image dimensions are too large")
	}

	size := file.Size
	if st, err := f.Stat(); err == nil {
		size = st.Size()
	}

	obj, err := s.remote.Upload(ctx, storage.UploadInput{
		Namespace:   owner.Hex(),
		Extension:   probe.Extension,
		ContentType: probe.ContentType,
		Size:        size,
		Body:        f,
	})
	if err != nil {
		return nil, err
	}

	name := filepath.Base(file.Filename)
	if name == "." || name == string(filepath.Separator) {
		name = obj.PublicID
	}
	image := &models.Image{
		Name:     name,
		URL:      obj.URL,
		Folder:   fid,
		User:     owner,
		Size:     size,
		Mimetype: probe.ContentType,
		Width:    probe.Width,
		Height:   probe.Height,
	}

	err = s.tx.WithTransaction(ctx, func(ctx context.Context) error {
		if err := s.images.Insert(ctx, image); err != nil {
			return err
		}
		return s.folders.AddImages(ctx, fid, image.ID)
	})
	if err != nil {
		if derr := s.remote.Destroy(ctx, obj.PublicID); derr != nil {
			s.logger.Warn("failed to release uploaded object", "public_id", obj.PublicID, "error", derr)
		}
		return nil, err
	}

	s.logger.Info("image uploaded",
		"image_id", image.ID.Hex(),
		"folder_id", fid.Hex(),
		"user_id", owner.Hex(),
		"size", size,
		"mimetype", probe.ContentType,
	)
	return image, nil
}

// List pages through all images of owner, newest first.
func (s *ImageService) List(ctx context.Context, owner bson.ObjectID, req PageRequest) (*models.ImagePage, error) {
	return s.page(ctx, owner, "", req)
}

func (s *ImageService) Search(ctx context.Context, owner bson.ObjectID, query string, req PageRequest) (*models.ImagePage, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return nil, invalid("Search query is required")
	}
	return s.page(ctx, owner, query, req)
}

func (s *ImageService) page(ctx context.Context, owner bson.ObjectID, search string, req PageRequest) (*models.ImagePage, error) {
	page, limit := req.normalize()

	images, total, err := s.images.List(ctx, ImageQuery{
		Owner:  owner,
		Search: search,
		Skip:   int64(page-1) * int64(limit),
		Limit:  int64(limit),
	})
	if err != nil {
		return nil, err
	}

	out := make([]models.ImageResponse, len(images))
	for i, img := range images {
		out[i] = models.ImageResponse{Image: img}
		signed, err := s.remote.SignedURL(ctx, img.URL)
		if err != nil {
			s.logger.Warn("failed to sign image url", "image_id", img.ID.Hex(), "error", err)
			continue
		}
		if signed != img.URL {
			out[i].SignedURL = signed
		}
	}

	totalPages := int((total + int64(limit) - 1) / int64(limit))
	return &models.ImagePage{
		Images: out,
		Pagination: models.Pagination{
			TotalImages: total,
			TotalPages:  totalPages,
			CurrentPage: page,
			PageSize:    limit,
		},
	}, nil
}

// Delete removes the image record. The stored object is released when its
// public id can be derived from the url; failures there are only logged.
func (s *ImageService) Delete(ctx context.Context, owner bson.ObjectID, id string) error {
	image, err := s.find(ctx, owner, id)
	if err != nil {
		return err
	}

	releaseObject(ctx, s.remote, s.logger, image)

	err = s.tx.WithTransaction(ctx, func(ctx context.Context) error {
		if err := s.images.Delete(ctx, image.ID, owner); err != nil {
			return mapNotFound(err, "Image not found")
		}
		return s.folders.RemoveImage(ctx, image.Folder, image.ID)
	})
	if err != nil {
		return err
	}

	s.logger.Info("image deleted", "image_id", image.ID.Hex(), "user_id", owner.Hex())
	return nil
}

// Open streams the stored bytes of an image.
func (s *ImageService) Open(ctx context.Context, owner bson.ObjectID, id string) (*Download, error) {
	image, err := s.find(ctx, owner, id)
	if err != nil {
		return nil, err
	}

	body, length, err := s.fetch(ctx, image)
	if err != nil {
		return nil, err
	}

	contentType := image.Mimetype
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	return &Download{
		Body:          body,
		ContentLength: length,
		ContentType:   contentType,
		Filename:      image.Name,
	}, nil
}

// Thumbnail returns a JPEG of the image scaled to fit within size pixels.
func (s *ImageService) Thumbnail(ctx context.Context, owner bson.ObjectID, id string, size int) ([]byte, error) {
	switch {
	case size <= 0:
		size = defaultThumbSize
	case size < minThumbSize:
		size = minThumbSize
	case size > maxThumbSize:
		size = maxThumbSize
	}

	image, err := s.find(ctx, owner, id)
	if err != nil {
		return nil, err
	}
	body, _, err := s.fetch(ctx, image)
	if err != nil {
		return nil, err
	}
	defer body.Close()

	var src io.Reader = body
	if s.maxBytes > 0 {
		src = io.LimitReader(body, s.maxBytes+1)
	}
	var buf bytes.Buffer
	if _, err := io.Copy(&buf, src); err != nil {
		return nil, fmt.Errorf("read image: %w", err)
	}
	if s.maxBytes > 0 && int64(buf.Len()) > s.maxBytes {
		return nil, invalid("Image is too large to thumbnail")
	}

	thumb, err := storage.Thumbnail(&buf, size)
	switch {
	case errors.Is(err, storage.ErrTooManyPixels):
		return nil, invalid("Image dimensions are too large")
	case err != nil:
		return nil, invalid("Image cannot be thumbnailed")
	}
	return thumb, nil
}

func (s *ImageService) fetch(ctx context.Context, image *models.Image) (io.ReadCloser, int64, error) {
	src, err := s.remote.SignedURL(ctx, image.URL)
	if err != nil {
		s.logger.Warn("failed to sign image url", "image_id", image.ID.Hex(), "error", err)
		src = image.URL
	}

	body, length, err := s.fetcher.Fetch(ctx, src)
	if err != nil {
		s.logger.Error("failed to fetch image", "image_id", image.ID.Hex(), "error", err)
		return nil, 0, errors.New("Failed to fetch image from storage")
	}
	return body, length, nil
}

func (s *ImageService) find(ctx context.Context, owner bson.ObjectID, id string) (*models.Image, error) {
	iid, err := parseID(id, "image")
	if err != nil {
		return nil, err
	}
	image, err := s.images.FindOne(ctx, iid, owner)
	if err != nil {
		return nil, mapNotFound(err, "Image not found")
	}
	return image, nil
}

// releaseObject deletes the stored bytes of image when its url carries the
// storage marker. Errors are logged, never returned.
func releaseObject(ctx context.Context, remote ObjectStorage, logger *slog.Logger, image *models.Image) {
	publicID, ok := remote.PublicID(image.URL)
	if !ok {
		logger.Warn("image url has no storage marker, skipping remote delete",
			"image_id", image.ID.Hex(), "url", image.URL)
		return
	}
	if err := remote.Destroy(ctx, publicID); err != nil {
		logger.Warn("failed to delete remote object",
			"image_id", image.ID.Hex(), "public_id", publicID, "error", err)
	}
}

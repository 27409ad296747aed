package controller

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"mime"
	"net/http"
	"os"
	"path/filepath"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/v2/bson"

	"imagefolders/models"
	"imagefolders/service"
)

type ImageService interface {
	Upload(ctx context.Context, owner bson.ObjectID, folderID string, file *service.UploadFile) (*models.Image, error)
	List(ctx context.Context, owner bson.ObjectID, req service.PageRequest) (*models.ImagePage, error)
	Search(ctx context.Context, owner bson.ObjectID, query string, req service.PageRequest) (*models.ImagePage, error)
	Delete(ctx context.Context, owner bson.ObjectID, id string) error
	Open(ctx context.Context, owner bson.ObjectID, id string) (*service.Download, error)
	Thumbnail(ctx context.Context, owner bson.ObjectID, id string, size int) ([]byte, error)
}

// multipartOverhead is the allowance for form fields and part headers on
// top of the file itself.
const multipartOverhead = 64 << 10

type ImageController struct {
	images   ImageService
	tmpDir   string
	maxBytes int64
	logger   *slog.Logger
}

func NewImageController(images ImageService, tmpDir string, maxBytes int64, logger *slog.Logger) *ImageController {
	return &ImageController{images: images, tmpDir: tmpDir, maxBytes: maxBytes, logger: logger}
}

// UploadImage takes a multipart form with the file in "image" and the
// target folder in "folderId".
func (h *ImageController) UploadImage(c *gin.Context) {
	userID, ok := owner(c)
	if !ok {
		return
	}

	if h.maxBytes > 0 {
		c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, h.maxBytes+multipartOverhead)
	}
	file, err := c.FormFile("image")
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			h.rejectOversized(c)
			return
		}
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "message": "No image file uploaded"})
		return
	}
	if h.maxBytes > 0 && file.Size > h.maxBytes {
		h.rejectOversized(c)
		return
	}

	tmpPath := filepath.Join(h.tmpDir, "upload-"+uuid.NewString()+filepath.Ext(file.Filename))
	if err := c.SaveUploadedFile(file, tmpPath); err != nil {
		_ = os.Remove(tmpPath)
		respondError(c, h.logger, fmt.Errorf("save upload: %w", err))
		return
	}

	ctx, cancel := requestContext(c)
	defer cancel()

	image, err := h.images.Upload(ctx, userID, c.PostForm("folderId"), &service.UploadFile{
		Path:     tmpPath,
		Filename: file.Filename,
		Size:     file.Size,
	})
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{
		"success": true,
		"message": "Image uploaded successfully",
		"image":   image,
	})
}

func (h *ImageController) rejectOversized(c *gin.Context) {
	c.JSON(http.StatusBadRequest, gin.H{
		"success": false,
		"message": fmt.Sprintf("Image exceeds the %d byte upload limit", h.maxBytes),
	})
}

func (h *ImageController) GetUserImages(c *gin.Context) {
	userID, ok := owner(c)
	if !ok {
		return
	}
	ctx, cancel := requestContext(c)
	defer cancel()

	page, err := h.images.List(ctx, userID, pageRequest(c))
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "images": page.Images, "pagination": page.Pagination})
}

func (h *ImageController) SearchImages(c *gin.Context) {
	userID, ok := owner(c)
	if !ok {
		return
	}
	ctx, cancel := requestContext(c)
	defer cancel()

	page, err := h.images.Search(ctx, userID, c.Query("query"), pageRequest(c))
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "images": page.Images, "pagination": page.Pagination})
}

func (h *ImageController) DeleteImage(c *gin.Context) {
	userID, ok := owner(c)
	if !ok {
		return
	}
	ctx, cancel := requestContext(c)
	defer cancel()

	if err := h.images.Delete(ctx, userID, c.Param("id")); err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "message": "Image deleted successfully"})
}

// DownloadImage streams the stored bytes as an attachment.
func (h *ImageController) DownloadImage(c *gin.Context) {
	userID, ok := owner(c)
	if !ok {
		return
	}

	dl, err := h.images.Open(c.Request.Context(), userID, c.Param("id"))
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	defer dl.Body.Close()

	disposition := mime.FormatMediaType("attachment", map[string]string{"filename": dl.Filename})
	if disposition == "" {
		disposition = "attachment"
	}
	c.DataFromReader(http.StatusOK, dl.ContentLength, dl.ContentType, dl.Body, map[string]string{
		"Content-Disposition": disposition,
	})
}

func (h *ImageController) GetThumbnail(c *gin.Context) {
	userID, ok := owner(c)
	if !ok {
		return
	}
	size, _ := strconv.Atoi(c.Query("size"))

	ctx, cancel := requestContext(c)
	defer cancel()

	thumb, err := h.images.Thumbnail(ctx, userID, c.Param("id"), size)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.Header("Cache-Control", "private, max-age=3600")
	c.Data(http.StatusOK, "image/jpeg", thumb)
}

// pageRequest reads page and limit; unparsable values fall back to defaults.
func pageRequest(c *gin.Context) service.PageRequest {
	page, _ := strconv.Atoi(c.Query("page"))
	limit, _ := strconv.Atoi(c.Query("limit"))
	return service.PageRequest{Page: page, Limit: limit}
}

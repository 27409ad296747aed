package controller

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.mongodb.org/mongo-driver/v2/bson"

	"imagefolders/models"
	"imagefolders/service"
)

type FolderService interface {
	Create(ctx context.Context, owner bson.ObjectID, name, parentID string) (*models.FolderDetail, error)
	Get(ctx context.Context, owner bson.ObjectID, id string) (*models.FolderDetail, error)
	ListRoots(ctx context.Context, owner bson.ObjectID) ([]models.FolderDetail, error)
	Update(ctx context.Context, owner bson.ObjectID, id, name string) (*models.FolderDetail, error)
	Delete(ctx context.Context, owner bson.ObjectID, id string, mode service.DeleteMode) (*models.DeleteResult, error)
	Tree(ctx context.Context, owner bson.ObjectID) ([]*models.TreeNode, error)
	Children(ctx context.Context, owner bson.ObjectID, id string) (*models.FolderChildren, error)
}

type FolderController struct {
	folders FolderService
	logger  *slog.Logger
}

func NewFolderController(folders FolderService, logger *slog.Logger) *FolderController {
	return &FolderController{folders: folders, logger: logger}
}

// folderRequest accepts the parent as "parent" (null for a root folder) or
// as "parentId".
type folderRequest struct {
	Name     string  `json:"name"`
	Parent   *string `json:"parent"`
	ParentID string  `json:"parentId"`
}

func (r *folderRequest) parent() string {
	if r.Parent != nil {
		return *r.Parent
	}
	return r.ParentID
}

func (h *FolderController) CreateFolder(c *gin.Context) {
	userID, ok := owner(c)
	if !ok {
		return
	}
	var req folderRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "message": "Invalid request body"})
		return
	}

	ctx, cancel := requestContext(c)
	defer cancel()

	folder, err := h.folders.Create(ctx, userID, req.Name, req.parent())
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"success": true, "folder": folder})
}

func (h *FolderController) GetFolders(c *gin.Context) {
	userID, ok := owner(c)
	if !ok {
		return
	}
	ctx, cancel := requestContext(c)
	defer cancel()

	folders, err := h.folders.ListRoots(ctx, userID)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "count": len(folders), "folders": folders})
}

func (h *FolderController) GetFolder(c *gin.Context) {
	userID, ok := owner(c)
	if !ok {
		return
	}
	ctx, cancel := requestContext(c)
	defer cancel()

	folder, err := h.folders.Get(ctx, userID, c.Param("id"))
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "folder": folder})
}

func (h *FolderController) UpdateFolder(c *gin.Context) {
	userID, ok := owner(c)
	if !ok {
		return
	}
	var req folderRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "message": "Invalid request body"})
		return
	}

	ctx, cancel := requestContext(c)
	defer cancel()

	folder, err := h.folders.Update(ctx, userID, c.Param("id"), req.Name)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "folder": folder})
}

// DeleteFolder accepts ?mode=detach|cascade|reparent; without it the
// configured default applies.
func (h *FolderController) DeleteFolder(c *gin.Context) {
	userID, ok := owner(c)
	if !ok {
		return
	}

	var mode service.DeleteMode
	if raw := c.Query("mode"); raw != "" {
		parsed, err := service.ParseDeleteMode(raw)
		if err != nil {
			respondError(c, h.logger, err)
			return
		}
		mode = parsed
	}

	ctx, cancel := requestContext(c)
	defer cancel()

	result, err := h.folders.Delete(ctx, userID, c.Param("id"), mode)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"message": "Folder deleted successfully",
		"deleted": result,
	})
}

func (h *FolderController) GetFolderTree(c *gin.Context) {
	userID, ok := owner(c)
	if !ok {
		return
	}
	ctx, cancel := requestContext(c)
	defer cancel()

	tree, err := h.folders.Tree(ctx, userID)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "tree": tree})
}

func (h *FolderController) GetFolderChildren(c *gin.Context) {
	userID, ok := owner(c)
	if !ok {
		return
	}
	ctx, cancel := requestContext(c)
	defer cancel()

	children, err := h.folders.Children(ctx, userID, c.Param("id"))
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"success":    true,
		"folder":     children.Folder,
		"subfolders": children.Subfolders,
		"images":     children.Images,
	})
}

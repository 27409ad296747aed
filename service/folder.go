package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"unicode/utf8"

	"go.mongodb.org/mongo-driver/v2/bson"

	"imagefolders/models"
)

const maxFolderNameLen = 100

// DeleteMode selects what happens to the contents of a deleted folder.
type DeleteMode string

const (
	// DeleteDetach removes only the folder; subfolders and images keep
	// pointing at the removed id.
	DeleteDetach DeleteMode = "detach"
	// DeleteCascade removes the folder, all descendants and their images.
	DeleteCascade DeleteMode = "cascade"
	// DeleteReparent hands subfolders and images to the folder's parent.
	DeleteReparent DeleteMode = "reparent"
)

func ParseDeleteMode(v string) (DeleteMode, error) {
	switch m := DeleteMode(strings.ToLower(strings.TrimSpace(v))); m {
	case DeleteDetach, DeleteCascade, DeleteReparent:
		return m, nil
	default:
		return "", invalid(fmt.Sprintf("Unknown delete mode %q", v))
	}
}

type FolderService struct {
	folders       FolderStore
	images        ImageStore
	users         UserStore
	tx            TxRunner
	remote        ObjectStorage
	defaultDelete DeleteMode
	logger        *slog.Logger
}

func NewFolderService(
	folders FolderStore,
	images ImageStore,
	users UserStore,
	tx TxRunner,
	remote ObjectStorage,
	defaultDelete DeleteMode,
	logger *slog.Logger,
) *FolderService {
	if defaultDelete == "" {
		defaultDelete = DeleteDetach
	}
	return &FolderService{
		folders:       folders,
		images:        images,
		users:         users,
		tx:            tx,
		remote:        remote,
		defaultDelete: defaultDelete,
		logger:        logger,
	}
}

// Create inserts a folder and, for nested folders, links it into the
// parent's children in the same transaction.
func (s *FolderService) Create(ctx context.Context, owner bson.ObjectID, name, parentID string) (*models.FolderDetail, error) {
	name, err := cleanFolderName(name)
	if err != nil {
		return nil, err
	}

	folder := &models.Folder{Name: name, User: owner}
	if parentID = strings.TrimSpace(parentID); parentID != "" {
		pid, err := parseID(parentID, "parent folder")
		if err != nil {
			return nil, err
		}
		folder.Parent = &pid
	}

	err = s.tx.WithTransaction(ctx, func(ctx context.Context) error {
		if folder.Parent != nil {
			if _, err := s.folders.FindOne(ctx, *folder.Parent, owner); err != nil {
				return mapNotFound(err, "Parent folder not found")
			}
		}
		if err := s.folders.Insert(ctx, folder); err != nil {
			return err
		}
		if folder.Parent != nil {
			return s.folders.AddChildren(ctx, *folder.Parent, folder.ID)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("folder created",
		"folder_id", folder.ID.Hex(),
		"user_id", owner.Hex(),
		"nested", folder.Parent != nil,
	)
	return s.detail(ctx, folder)
}

func (s *FolderService) Get(ctx context.Context, owner bson.ObjectID, id string) (*models.FolderDetail, error) {
	folder, err := s.find(ctx, owner, id)
	if err != nil {
		return nil, err
	}
	return s.detail(ctx, folder)
}

// ListRoots returns the owner's top level folders in insertion order.
func (s *FolderService) ListRoots(ctx context.Context, owner bson.ObjectID) ([]models.FolderDetail, error) {
	roots, err := s.folders.FindRoots(ctx, owner)
	if err != nil {
		return nil, err
	}
	return s.populate(ctx, owner, roots)
}

func (s *FolderService) Update(ctx context.Context, owner bson.ObjectID, id, name string) (*models.FolderDetail, error) {
	fid, err := parseID(id, "folder")
	if err != nil {
		return nil, err
	}
	name, err = cleanFolderName(name)
	if err != nil {
		return nil, err
	}

	folder, err := s.folders.Rename(ctx, fid, owner, name)
	if err != nil {
		return nil, mapNotFound(err, "Folder not found")
	}
	return s.detail(ctx, folder)
}

// Delete removes a folder. An empty mode uses the service default.
func (s *FolderService) Delete(ctx context.Context, owner bson.ObjectID, id string, mode DeleteMode) (*models.DeleteResult, error) {
	if mode == "" {
		mode = s.defaultDelete
	}
	folder, err := s.find(ctx, owner, id)
	if err != nil {
		return nil, err
	}

	var result *models.DeleteResult
	switch mode {
	case DeleteDetach:
		result, err = s.deleteDetached(ctx, folder)
	case DeleteCascade:
		result, err = s.deleteCascade(ctx, folder)
	case DeleteReparent:
		result, err = s.deleteReparent(ctx, folder)
	default:
		return nil, invalid(fmt.Sprintf("Unknown delete mode %q", mode))
	}
	if err != nil {
		return nil, err
	}

	s.logger.Info("folder deleted",
		"folder_id", folder.ID.Hex(),
		"user_id", owner.Hex(),
		"mode", string(mode),
		"folders", result.Folders,
		"images", result.Images,
	)
	return result, nil
}

func (s *FolderService) deleteDetached(ctx context.Context, folder *models.Folder) (*models.DeleteResult, error) {
	err := s.tx.WithTransaction(ctx, func(ctx context.Context) error {
		if folder.Parent != nil {
			if err := s.folders.RemoveChild(ctx, *folder.Parent, folder.ID); err != nil {
				return err
			}
		}
		return mapNotFound(s.folders.Delete(ctx, folder.ID, folder.User), "Folder not found")
	})
	if err != nil {
		return nil, err
	}
	return &models.DeleteResult{Folders: 1}, nil
}

func (s *FolderService) deleteCascade(ctx context.Context, folder *models.Folder) (*models.DeleteResult, error) {
	all, err := s.folders.FindByOwner(ctx, folder.User)
	if err != nil {
		return nil, err
	}
	ids := Descendants(all, folder.ID)

	doomed, err := s.images.FindByFolders(ctx, ids, folder.User)
	if err != nil {
		return nil, err
	}

	result := &models.DeleteResult{}
	err = s.tx.WithTransaction(ctx, func(ctx context.Context) error {
		if folder.Parent != nil {
			if err := s.folders.RemoveChild(ctx, *folder.Parent, folder.ID); err != nil {
				return err
			}
		}
		n, err := s.images.DeleteByFolders(ctx, ids, folder.User)
		if err != nil {
			return err
		}
		result.Images = n
		result.Folders, err = s.folders.DeleteMany(ctx, ids, folder.User)
		return err
	})
	if err != nil {
		return nil, err
	}

	for i := range doomed {
		releaseObject(ctx, s.remote, s.logger, &doomed[i])
	}
	return result, nil
}

func (s *FolderService) deleteReparent(ctx context.Context, folder *models.Folder) (*models.DeleteResult, error) {
	children, err := s.folders.FindChildren(ctx, folder.ID, folder.User)
	if err != nil {
		return nil, err
	}
	images, err := s.images.FindByFolder(ctx, folder.ID, folder.User)
	if err != nil {
		return nil, err
	}
	if folder.IsRoot() && len(images) > 0 {
		return nil, invalid("Images of a root folder cannot be moved to a parent; move or delete them first")
	}

	childIDs := make([]bson.ObjectID, len(children))
	for i := range children {
		childIDs[i] = children[i].ID
	}
	imageIDs := make([]bson.ObjectID, len(images))
	for i := range images {
		imageIDs[i] = images[i].ID
	}

	err = s.tx.WithTransaction(ctx, func(ctx context.Context) error {
		if err := s.folders.SetParent(ctx, childIDs, folder.Parent, folder.User); err != nil {
			return err
		}
		if folder.Parent != nil {
			parent := *folder.Parent
			if len(childIDs) > 0 {
				if err := s.folders.AddChildren(ctx, parent, childIDs...); err != nil {
					return err
				}
			}
			if len(imageIDs) > 0 {
				if _, err := s.images.MoveFolder(ctx, folder.ID, parent, folder.User); err != nil {
					return err
				}
				if err := s.folders.AddImages(ctx, parent, imageIDs...); err != nil {
					return err
				}
			}
			if err := s.folders.RemoveChild(ctx, parent, folder.ID); err != nil {
				return err
			}
		}
		return mapNotFound(s.folders.Delete(ctx, folder.ID, folder.User), "Folder not found")
	})
	if err != nil {
		return nil, err
	}
	return &models.DeleteResult{Folders: 1}, nil
}

// Tree materializes every root folder of owner with nested subfolders and images.
func (s *FolderService) Tree(ctx context.Context, owner bson.ObjectID) ([]*models.TreeNode, error) {
	folders, err := s.folders.FindByOwner(ctx, owner)
	if err != nil {
		return nil, err
	}
	images, err := s.images.FindByOwner(ctx, owner)
	if err != nil {
		return nil, err
	}

	tree := BuildTree(folders, images)
	s.logger.Debug("folder tree built",
		"user_id", owner.Hex(),
		"folder_count", len(folders),
		"image_count", len(images),
		"root_count", len(tree),
	)
	return tree, nil
}

// Children lists the direct subfolders and images of one folder.
func (s *FolderService) Children(ctx context.Context, owner bson.ObjectID, id string) (*models.FolderChildren, error) {
	folder, err := s.find(ctx, owner, id)
	if err != nil {
		return nil, err
	}

	subfolders, err := s.folders.FindChildren(ctx, folder.ID, owner)
	if err != nil {
		return nil, err
	}
	images, err := s.images.FindByFolder(ctx, folder.ID, owner)
	if err != nil {
		return nil, err
	}

	ids := make([]bson.ObjectID, len(subfolders))
	for i := range subfolders {
		ids[i] = subfolders[i].ID
	}
	counts, err := s.images.CountByFolder(ctx, ids, owner)
	if err != nil {
		return nil, err
	}

	views := make([]models.SubfolderView, len(subfolders))
	for i, sub := range subfolders {
		views[i] = models.SubfolderView{
			Folder:         sub,
			SubfolderCount: len(sub.Children),
			ImageCount:     counts[sub.ID],
		}
	}

	return &models.FolderChildren{
		Folder:     folder.Name,
		Subfolders: views,
		Images:     images,
	}, nil
}

func (s *FolderService) find(ctx context.Context, owner bson.ObjectID, id string) (*models.Folder, error) {
	fid, err := parseID(id, "folder")
	if err != nil {
		return nil, err
	}
	folder, err := s.folders.FindOne(ctx, fid, owner)
	if err != nil {
		return nil, mapNotFound(err, "Folder not found")
	}
	return folder, nil
}

func (s *FolderService) detail(ctx context.Context, folder *models.Folder) (*models.FolderDetail, error) {
	details, err := s.populate(ctx, folder.User, []models.Folder{*folder})
	if err != nil {
		return nil, err
	}
	return &details[0], nil
}

// populate resolves owner, parent, children and image references of folders
// that all belong to owner. Dangling references are dropped.
func (s *FolderService) populate(ctx context.Context, owner bson.ObjectID, folders []models.Folder) ([]models.FolderDetail, error) {
	details := make([]models.FolderDetail, 0, len(folders))
	if len(folders) == 0 {
		return details, nil
	}

	var summary *models.UserSummary
	user, err := s.users.FindByID(ctx, owner)
	switch {
	case err == nil:
		summary = user.Summary()
	case !errors.Is(err, ErrNotFound):
		return nil, err
	}

	var folderIDs, imageIDs []bson.ObjectID
	for _, f := range folders {
		if f.Parent != nil {
			folderIDs = append(folderIDs, *f.Parent)
		}
		folderIDs = append(folderIDs, f.Children...)
		imageIDs = append(imageIDs, f.Images...)
	}

	related, err := s.folders.FindByIDs(ctx, folderIDs, owner)
	if err != nil {
		return nil, err
	}
	names := make(map[bson.ObjectID]string, len(related))
	for _, f := range related {
		names[f.ID] = f.Name
	}

	images, err := s.images.FindByIDs(ctx, imageIDs, owner)
	if err != nil {
		return nil, err
	}
	byID := make(map[bson.ObjectID]models.Image, len(images))
	for _, img := range images {
		byID[img.ID] = img
	}

	for _, f := range folders {
		d := models.FolderDetail{
			ID:        f.ID,
			Name:      f.Name,
			User:      summary,
			Children:  []models.FolderRef{},
			Images:    []models.ImageSummary{},
			CreatedAt: f.CreatedAt,
			UpdatedAt: f.UpdatedAt,
		}
		if f.Parent != nil {
			if name, ok := names[*f.Parent]; ok {
				d.Parent = &models.FolderRef{ID: *f.Parent, Name: name}
			}
		}
		for _, id := range f.Children {
			if name, ok := names[id]; ok {
				d.Children = append(d.Children, models.FolderRef{ID: id, Name: name})
			}
		}
		for _, id := range f.Images {
			if img, ok := byID[id]; ok {
				d.Images = append(d.Images, models.ImageSummary{ID: img.ID, Name: img.Name, URL: img.URL})
			}
		}
		details = append(details, d)
	}
	return details, nil
}

func cleanFolderName(name string) (string, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return "", invalid("Folder name is required")
	}
	if utf8.RuneCountInString(name) > maxFolderNameLen {
		return "", invalid(fmt.Sprintf("Folder name must be at most %d characters", maxFolderNameLen))
	}
	return name, nil
}

func parseID(raw, what string) (bson.ObjectID, error) {
	id, err := bson.ObjectIDFromHex(strings.TrimSpace(raw))
	if err != nil {
		return bson.NilObjectID, invalid(fmt.Sprintf("Invalid %s id", what))
	}
	return id, nil
}

// mapNotFound turns a store-level ErrNotFound into a NotFoundError carrying msg.
func mapNotFound(err error, msg string) error {
	if err == nil {
		return nil
	}
	var nf *NotFoundError
	if errors.Is(err, ErrNotFound) && !errors.As(err, &nf) {
		return notFound(msg)
	}
	return err
}

package service

import (
	"context"
	"io"

	"go.mongodb.org/mongo-driver/v2/bson"

	"imagefolders/models"
	"imagefolders/storage"
)

// Stores report a missing document with ErrNotFound (or an error that matches it).

type FolderStore interface {
	Insert(ctx context.Context, folder *models.Folder) error
	FindOne(ctx context.Context, id, owner bson.ObjectID) (*models.Folder, error)
	FindRoots(ctx context.Context, owner bson.ObjectID) ([]models.Folder, error)
	FindChildren(ctx context.Context, parent, owner bson.ObjectID) ([]models.Folder, error)
	FindByOwner(ctx context.Context, owner bson.ObjectID) ([]models.Folder, error)
	FindByIDs(ctx context.Context, ids []bson.ObjectID, owner bson.ObjectID) ([]models.Folder, error)
	Rename(ctx context.Context, id, owner bson.ObjectID, name string) (*models.Folder, error)
	AddChildren(ctx context.Context, parent bson.ObjectID, children ...bson.ObjectID) error
	RemoveChild(ctx context.Context, parent, child bson.ObjectID) error
	AddImages(ctx context.Context, folder bson.ObjectID, images ...bson.ObjectID) error
	RemoveImage(ctx context.Context, folder, image bson.ObjectID) error
	SetParent(ctx context.Context, ids []bson.ObjectID, parent *bson.ObjectID, owner bson.ObjectID) error
	Delete(ctx context.Context, id, owner bson.ObjectID) error
	DeleteMany(ctx context.Context, ids []bson.ObjectID, owner bson.ObjectID) (int64, error)
}

type ImageQuery struct {
	Owner bson.ObjectID
	// Search is matched as a case-insensitive substring of the image name.
	Search string
	Skip   int64
	Limit  int64
}

type ImageStore interface {
	Insert(ctx context.Context, image *models.Image) error
	FindOne(ctx context.Context, id, owner bson.ObjectID) (*models.Image, error)
	FindByFolder(ctx context.Context, folder, owner bson.ObjectID) ([]models.Image, error)
	FindByFolders(ctx context.Context, folders []bson.ObjectID, owner bson.ObjectID) ([]models.Image, error)
	FindByOwner(ctx context.Context, owner bson.ObjectID) ([]models.Image, error)
	FindByIDs(ctx context.Context, ids []bson.ObjectID, owner bson.ObjectID) ([]models.Image, error)
	List(ctx context.Context, q ImageQuery) ([]models.Image, int64, error)
	CountByFolder(ctx context.Context, folders []bson.ObjectID, owner bson.ObjectID) (map[bson.ObjectID]int64, error)
	MoveFolder(ctx context.Context, from, to, owner bson.ObjectID) (int64, error)
	Delete(ctx context.Context, id, owner bson.ObjectID) error
	DeleteByFolders(ctx context.Context, folders []bson.ObjectID, owner bson.ObjectID) (int64, error)
}

type UserStore interface {
	Insert(ctx context.Context, user *models.User) error
	FindByID(ctx context.Context, id bson.ObjectID) (*models.User, error)
	FindByEmail(ctx context.Context, email string) (*models.User, error)
}

// TxRunner runs fn atomically. Stores called with the ctx passed to fn join the transaction.
type TxRunner interface {
	WithTransaction(ctx context.Context, fn func(ctx context.Context) error) error
}

// ObjectStorage holds the image bytes.
type ObjectStorage interface {
	Upload(ctx context.Context, in storage.UploadInput) (*storage.Object, error)
	Destroy(ctx context.Context, publicID string) error
	PublicID(rawURL string) (string, bool)
	SignedURL(ctx context.Context, rawURL string) (string, error)
}

// Fetcher retrieves the bytes behind a stored url.
type Fetcher interface {
	Fetch(ctx context.Context, rawURL string) (io.ReadCloser, int64, error)
}

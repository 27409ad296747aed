package database

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"

	"imagefolders/models"
	"imagefolders/service"
)

type FolderStore struct {
	collection *mongo.Collection
}

func NewFolderStore(db *DB) *FolderStore {
	return &FolderStore{collection: db.Database.Collection(foldersCollection)}
}

func (s *FolderStore) Insert(ctx context.Context, folder *models.Folder) error {
	if folder.ID.IsZero() {
		folder.ID = bson.NewObjectID()
	}
	now := time.Now().UTC()
	folder.CreatedAt, folder.UpdatedAt = now, now
	if folder.Children == nil {
		folder.Children = []bson.ObjectID{}
	}
	if folder.Images == nil {
		folder.Images = []bson.ObjectID{}
	}

	if _, err := s.collection.InsertOne(ctx, folder); err != nil {
		return fmt.Errorf("insert folder: %w", err)
	}
	return nil
}

func (s *FolderStore) FindOne(ctx context.Context, id, owner bson.ObjectID) (*models.Folder, error) {
	var folder models.Folder
	err := s.collection.FindOne(ctx, bson.M{"_id": id, "user": owner}).Decode(&folder)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, fmt.Errorf("folder %s: %w", id.Hex(), service.ErrNotFound)
		}
		return nil, fmt.Errorf("find folder: %w", err)
	}
	return &folder, nil
}

func (s *FolderStore) FindRoots(ctx context.Context, owner bson.ObjectID) ([]models.Folder, error) {
	return s.find(ctx, bson.M{"user": owner, "parent": nil})
}

func (s *FolderStore) FindChildren(ctx context.Context, parent, owner bson.ObjectID) ([]models.Folder, error) {
	return s.find(ctx, bson.M{"user": owner, "parent": parent})
}

func (s *FolderStore) FindByOwner(ctx context.Context, owner bson.ObjectID) ([]models.Folder, error) {
	return s.find(ctx, bson.M{"user": owner})
}

func (s *FolderStore) FindByIDs(ctx context.Context, ids []bson.ObjectID, owner bson.ObjectID) ([]models.Folder, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	return s.find(ctx, bson.M{"_id": bson.M{"$in": ids}, "user": owner})
}

func (s *FolderStore) Rename(ctx context.Context, id, owner bson.ObjectID, name string) (*models.Folder, error) {
	opts := options.FindOneAndUpdate().SetReturnDocument(options.After)
	update := bson.M{"$set": bson.M{"name": name, "updatedAt": time.Now().UTC()}}

	var folder models.Folder
	err := s.collection.FindOneAndUpdate(ctx, bson.M{"_id": id, "user": owner}, update, opts).Decode(&folder)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, fmt.Errorf("folder %s: %w", id.Hex(), service.ErrNotFound)
		}
		return nil, fmt.Errorf("rename folder: %w", err)
	}
	return &folder, nil
}

func (s *FolderStore) AddChildren(ctx context.Context, parent bson.ObjectID, children ...bson.ObjectID) error {
	return s.updateOne(ctx, parent, bson.M{"$addToSet": bson.M{"children": bson.M{"$each": children}}})
}

func (s *FolderStore) RemoveChild(ctx context.Context, parent, child bson.ObjectID) error {
	return s.updateOne(ctx, parent, bson.M{"$pull": bson.M{"children": child}})
}

func (s *FolderStore) AddImages(ctx context.Context, folder bson.ObjectID, images ...bson.ObjectID) error {
	return s.updateOne(ctx, folder, bson.M{"$addToSet": bson.M{"images": bson.M{"$each": images}}})
}

func (s *FolderStore) RemoveImage(ctx context.Context, folder, image bson.ObjectID) error {
	return s.updateOne(ctx, folder, bson.M{"$pull": bson.M{"images": image}})
}

func (s *FolderStore) SetParent(ctx context.Context, ids []bson.ObjectID, parent *bson.ObjectID, owner bson.ObjectID) error {
	if len(ids) == 0 {
		return nil
	}
	filter := bson.M{"_id": bson.M{"$in": ids}, "user": owner}
	update := bson.M{"$set": bson.M{"parent": parent, "updatedAt": time.Now().UTC()}}
	if _, err := s.collection.UpdateMany(ctx, filter, update); err != nil {
		return fmt.Errorf("reparent folders: %w", err)
	}
	return nil
}

func (s *FolderStore) Delete(ctx context.Context, id, owner bson.ObjectID) error {
	res, err := s.collection.DeleteOne(ctx, bson.M{"_id": id, "user": owner})
	if err != nil {
		return fmt.Errorf("delete folder: %w", err)
	}
	if res.DeletedCount == 0 {
		return fmt.Errorf("folder %s: %w", id.Hex(), service.ErrNotFound)
	}
	return nil
}

func (s *FolderStore) DeleteMany(ctx context.Context, ids []bson.ObjectID, owner bson.ObjectID) (int64, error) {
	if len(ids) == 0 {
		return 0, nil
	}
	res, err := s.collection.DeleteMany(ctx, bson.M{"_id": bson.M{"$in": ids}, "user": owner})
	if err != nil {
		return 0, fmt.Errorf("delete folders: %w", err)
	}
	return res.DeletedCount, nil
}

func (s *FolderStore) find(ctx context.Context, filter bson.M) ([]models.Folder, error) {
	opts := options.Find().SetSort(bson.D{{Key: "_id", Value: 1}})
	cursor, err := s.collection.Find(ctx, filter, opts)
	if err != nil {
		return nil, fmt.Errorf("find folders: %w", err)
	}
	defer cursor.Close(ctx)

	folders := []models.Folder{}
	if err := cursor.All(ctx, &folders); err != nil {
		return nil, fmt.Errorf("decode folders: %w", err)
	}
	return folders, nil
}

// updateOne updates a folder by id. A missing folder is not an error: the
// id lists are caches and the referenced folder may already be gone.
func (s *FolderStore) updateOne(ctx context.Context, id bson.ObjectID, update bson.M) error {
	if _, err := s.collection.UpdateOne(ctx, bson.M{"_id": id}, update); err != nil {
		return fmt.Errorf("update folder %s: %w", id.Hex(), err)
	}
	return nil
}

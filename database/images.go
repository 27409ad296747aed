package database

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"

	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"

	"imagefolders/models"
	"imagefolders/service"
)

type ImageStore struct {
	collection *mongo.Collection
}

func NewImageStore(db *DB) *ImageStore {
	return &ImageStore{collection: db.Database.Collection(imagesCollection)}
}

func (s *ImageStore) Insert(ctx context.Context, image *models.Image) error {
	if image.ID.IsZero() {
		image.ID = bson.NewObjectID()
	}
	now := time.Now().UTC()
	if image.CreatedAt.IsZero() {
		image.CreatedAt = now
	}
	image.UpdatedAt = now

	if _, err := s.collection.InsertOne(ctx, image); err != nil {
		return fmt.Errorf("insert image: %w", err)
	}
	return nil
}

func (s *ImageStore) FindOne(ctx context.Context, id, owner bson.ObjectID) (*models.Image, error) {
	var image models.Image
	err := s.collection.FindOne(ctx, bson.M{"_id": id, "user": owner}).Decode(&image)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, fmt.Errorf("image %s: %w", id.Hex(), service.ErrNotFound)
		}
		return nil, fmt.Errorf("find image: %w", err)
	}
	return &image, nil
}

func (s *ImageStore) FindByFolder(ctx context.Context, folder, owner bson.ObjectID) ([]models.Image, error) {
	return s.find(ctx, bson.M{"folder": folder, "user": owner}, nil)
}

func (s *ImageStore) FindByFolders(ctx context.Context, folders []bson.ObjectID, owner bson.ObjectID) ([]models.Image, error) {
	if len(folders) == 0 {
		return []models.Image{}, nil
	}
	return s.find(ctx, bson.M{"folder": bson.M{"$in": folders}, "user": owner}, nil)
}

func (s *ImageStore) FindByOwner(ctx context.Context, owner bson.ObjectID) ([]models.Image, error) {
	return s.find(ctx, bson.M{"user": owner}, nil)
}

func (s *ImageStore) FindByIDs(ctx context.Context, ids []bson.ObjectID, owner bson.ObjectID) ([]models.Image, error) {
	if len(ids) == 0 {
		return []models.Image{}, nil
	}
	return s.find(ctx, bson.M{"_id": bson.M{"$in": ids}, "user": owner}, nil)
}

// List returns one page of the owner's images, newest first, and the total
// number of matches.
func (s *ImageStore) List(ctx context.Context, q service.ImageQuery) ([]models.Image, int64, error) {
	filter := bson.M{"user": q.Owner}
	if search := strings.TrimSpace(q.Search); search != "" {
		filter["name"] = bson.M{
			"$regex":   regexp.QuoteMeta(search),
			"$options": "i",
		}
	}

	total, err := s.collection.CountDocuments(ctx, filter)
	if err != nil {
		return nil, 0, fmt.Errorf("count images: %w", err)
	}

	opts := options.Find().
		SetSkip(q.Skip).
		SetLimit(q.Limit).
		SetSort(bson.D{{Key: "createdAt", Value: -1}, {Key: "_id", Value: -1}})

	images, err := s.find(ctx, filter, opts)
	if err != nil {
		return nil, 0, err
	}
	return images, total, nil
}

func (s *ImageStore) CountByFolder(ctx context.Context, folders []bson.ObjectID, owner bson.ObjectID) (map[bson.ObjectID]int64, error) {
	counts := make(map[bson.ObjectID]int64, len(folders))
	if len(folders) == 0 {
		return counts, nil
	}

	pipeline := mongo.Pipeline{
		{{Key: "$match", Value: bson.D{
			{Key: "user", Value: owner},
			{Key: "folder", Value: bson.D{{Key: "$in", Value: folders}}},
		}}},
		{{Key: "$group", Value: bson.D{
			{Key: "_id", Value: "$folder"},
			{Key: "count", Value: bson.D{{Key: "$sum", Value: 1}}},
		}}},
	}

	cursor, err := s.collection.Aggregate(ctx, pipeline)
	if err != nil {
		return nil, fmt.Errorf("count images by folder: %w", err)
	}
	defer cursor.Close(ctx)

	var rows []struct {
		Folder bson.ObjectID `bson:"_id"`
		Count  int64         `bson:"count"`
	}
	if err := cursor.All(ctx, &rows); err != nil {
		return nil, fmt.Errorf("decode image counts: %w", err)
	}
	for _, row := range rows {
		counts[row.Folder] = row.Count
	}
	return counts, nil
}

func (s *ImageStore) MoveFolder(ctx context.Context, from, to, owner bson.ObjectID) (int64, error) {
	res, err := s.collection.UpdateMany(ctx,
		bson.M{"folder": from, "user": owner},
		bson.M{"$set": bson.M{"folder": to, "updatedAt": time.Now().UTC()}},
	)
	if err != nil {
		return 0, fmt.Errorf("move images: %w", err)
	}
	return res.ModifiedCount, nil
}

func (s *ImageStore) Delete(ctx context.Context, id, owner bson.ObjectID) error {
	res, err := s.collection.DeleteOne(ctx, bson.M{"_id": id, "user": owner})
	if err != nil {
		return fmt.Errorf("delete image: %w", err)
	}
	if res.DeletedCount == 0 {
		return fmt.Errorf("image %s: %w", id.Hex(), service.ErrNotFound)
	}
	return nil
}

func (s *ImageStore) DeleteByFolders(ctx context.Context, folders []bson.ObjectID, owner bson.ObjectID) (int64, error) {
	if len(folders) == 0 {
		return 0, nil
	}
	res, err := s.collection.DeleteMany(ctx, bson.M{"folder": bson.M{"$in": folders}, "user": owner})
	if err != nil {
		return 0, fmt.Errorf("delete images: %w", err)
	}
	return res.DeletedCount, nil
}

func (s *ImageStore) find(ctx context.Context, filter bson.M, opts *options.FindOptionsBuilder) ([]models.Image, error) {
	if opts == nil {
		opts = options.Find().SetSort(bson.D{{Key: "createdAt", Value: -1}, {Key: "_id", Value: -1}})
	}
	cursor, err := s.collection.Find(ctx, filter, opts)
	if err != nil {
		return nil, fmt.Errorf("find images: %w", err)
	}
	defer cursor.Close(ctx)

	images := []models.Image{}
	if err := cursor.All(ctx, &images); err != nil {
		return nil, fmt.Errorf("decode images: %w", err)
	}
	return images, nil
}

package models

import (
	"time"

	"go.mongodb.org/mongo-driver/v2/bson"
)

// Image is the metadata record of an image stored in object storage.
type Image struct {
	ID        bson.ObjectID `json:"_id" bson:"_id,omitempty"`
	Name      string        `json:"name" bson:"name"`
	URL       string        `json:"url" bson:"url"`
	Folder    bson.ObjectID `json:"folder" bson:"folder"`
	User      bson.ObjectID `json:"user" bson:"user"`
	Size      int64         `json:"size,omitempty" bson:"size,omitempty"`
	Mimetype  string        `json:"mimetype,omitempty" bson:"mimetype,omitempty"`
	Width     int           `json:"width,omitempty" bson:"width,omitempty"`
	Height    int           `json:"height,omitempty" bson:"height,omitempty"`
	CreatedAt time.Time     `json:"createdAt" bson:"createdAt"`
	UpdatedAt time.Time     `json:"updatedAt" bson:"updatedAt"`
}

type ImageSummary struct {
	ID   bson.ObjectID `json:"_id"`
	Name string        `json:"name"`
	URL  string        `json:"url"`
}

// ImageResponse adds a short-lived signed url to an image record.
type ImageResponse struct {
	Image
	SignedURL string `json:"signedUrl,omitempty"`
}

type Pagination struct {
	TotalImages int64 `json:"totalImages"`
	TotalPages  int   `json:"totalPages"`
	CurrentPage int   `json:"currentPage"`
	PageSize    int   `json:"pageSize"`
}

type ImagePage struct {
	Images     []ImageResponse `json:"images"`
	Pagination Pagination      `json:"pagination"`
}

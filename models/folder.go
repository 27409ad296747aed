package models

import (
	"time"

	"go.mongodb.org/mongo-driver/v2/bson"
)

// Folder is a node in a user's folder forest. Parent == nil marks a root folder.
// Children and Images are denormalized id caches kept next to the parent/folder
// back-references.
type Folder struct {
	ID        bson.ObjectID   `json:"_id" bson:"_id,omitempty"`
	Name      string          `json:"name" bson:"name"`
	User      bson.ObjectID   `json:"user" bson:"user"`
	Parent    *bson.ObjectID  `json:"parent" bson:"parent"`
	Children  []bson.ObjectID `json:"children" bson:"children"`
	Images    []bson.ObjectID `json:"images" bson:"images"`
	CreatedAt time.Time       `json:"createdAt" bson:"createdAt"`
	UpdatedAt time.Time       `json:"updatedAt" bson:"updatedAt"`
}

func (f *Folder) IsRoot() bool {
	return f.Parent == nil
}

type FolderRef struct {
	ID   bson.ObjectID `json:"_id"`
	Name string        `json:"name"`
}

// FolderDetail is a folder with its references resolved.
type FolderDetail struct {
	ID        bson.ObjectID  `json:"_id"`
	Name      string         `json:"name"`
	User      *UserSummary   `json:"user"`
	Parent    *FolderRef     `json:"parent"`
	Children  []FolderRef    `json:"children"`
	Images    []ImageSummary `json:"images"`
	CreatedAt time.Time      `json:"createdAt"`
	UpdatedAt time.Time      `json:"updatedAt"`
}

// TreeNode is one folder of the materialized tree.
type TreeNode struct {
	ID         bson.ObjectID   `json:"_id"`
	Name       string          `json:"name"`
	User       bson.ObjectID   `json:"user"`
	Parent     *bson.ObjectID  `json:"parent"`
	Children   []bson.ObjectID `json:"children"`
	Images     []Image         `json:"images"`
	CreatedAt  time.Time       `json:"createdAt"`
	UpdatedAt  time.Time       `json:"updatedAt"`
	Subfolders []*TreeNode     `json:"subfolders"`
}

type SubfolderView struct {
	Folder
	SubfolderCount int   `json:"subfolderCount"`
	ImageCount     int64 `json:"imageCount"`
}

type FolderChildren struct {
	Folder     string          `json:"folder"`
	Subfolders []SubfolderView `json:"subfolders"`
	Images     []Image         `json:"images"`
}

type DeleteResult struct {
	Folders int64 `json:"folders"`
	Images  int64 `json:"images"`
}

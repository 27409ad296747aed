package service

import (
	"go.mongodb.org/mongo-driver/v2/bson"

	"imagefolders/models"
)

// BuildTree nests a flat list of one owner's folders and images. Folders
// whose parent is missing from the list are left out, as are their
// descendants. Input order is kept at every level.
func BuildTree(folders []models.Folder, images []models.Image) []*models.TreeNode {
	nodes := make(map[bson.ObjectID]*models.TreeNode, len(folders))

	// First pass: one node per folder
	for _, f := range folders {
		children := f.Children
		if children == nil {
			children = []bson.ObjectID{}
		}
		nodes[f.ID] = &models.TreeNode{
			ID:         f.ID,
			Name:       f.Name,
			User:       f.User,
			Parent:     f.Parent,
			Children:   children,
			Images:     []models.Image{},
			CreatedAt:  f.CreatedAt,
			UpdatedAt:  f.UpdatedAt,
			Subfolders: []*models.TreeNode{},
		}
	}

	// Second pass: link subfolders to parents
	roots := []*models.TreeNode{}
	for _, f := range folders {
		node := nodes[f.ID]
		if f.IsRoot() {
			roots = append(roots, node)
			continue
		}
		if parent, ok := nodes[*f.Parent]; ok && parent != node {
			parent.Subfolders = append(parent.Subfolders, node)
		}
	}

	// Third pass: attach images
	for _, img := range images {
		if node, ok := nodes[img.Folder]; ok {
			node.Images = append(node.Images, img)
		}
	}

	return roots
}

// Descendants returns root followed by every folder below it, breadth first.
func Descendants(folders []models.Folder, root bson.ObjectID) []bson.ObjectID {
	byParent := make(map[bson.ObjectID][]bson.ObjectID)
	for _, f := range folders {
		if f.Parent != nil {
			byParent[*f.Parent] = append(byParent[*f.Parent], f.ID)
		}
	}

	out := []bson.ObjectID{root}
	seen := map[bson.ObjectID]bool{root: true}
	for i := 0; i < len(out); i++ {
		for _, child := range byParent[out[i]] {
			if seen[child] {
				continue
			}
			seen[child] = true
			out = append(out, child)
		}
	}
	return out
}

package service

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"slices"
	"strings"
	"sync"
	"time"

	"go.mongodb.org/mongo-driver/v2/bson"

	"imagefolders/models"
	"imagefolders/storage"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// memFolders keeps folders in insertion order, like a collection sorted by _id.
type memFolders struct {
	mu      sync.Mutex
	folders []*models.Folder
}

func (m *memFolders) index(id bson.ObjectID) int {
	return slices.IndexFunc(m.folders, func(f *models.Folder) bool { return f.ID == id })
}

func (m *memFolders) get(id bson.ObjectID) *models.Folder {
	m.mu.Lock()
	defer m.mu.Unlock()
	if i := m.index(id); i >= 0 {
		cp := *m.folders[i]
		return &cp
	}
	return nil
}

func (m *memFolders) Insert(_ context.Context, folder *models.Folder) error {
	m.mu.Lock()
	defer m.mu.Unlock()
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
	cp := *folder
	m.folders = append(m.folders, &cp)
	return nil
}

func (m *memFolders) FindOne(_ context.Context, id, owner bson.ObjectID) (*models.Folder, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if i := m.index(id); i >= 0 && m.folders[i].User == owner {
		cp := *m.folders[i]
		return &cp, nil
	}
	return nil, fmt.Errorf("folder %s: %w", id.Hex(), ErrNotFound)
}

func (m *memFolders) filter(keep func(*models.Folder) bool) []models.Folder {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := []models.Folder{}
	for _, f := range m.folders {
		if keep(f) {
			out = append(out, *f)
		}
	}
	return out
}

func (m *memFolders) FindRoots(_ context.Context, owner bson.ObjectID) ([]models.Folder, error) {
	return m.filter(func(f *models.Folder) bool { return f.User == owner && f.Parent == nil }), nil
}

func (m *memFolders) FindChildren(_ context.Context, parent, owner bson.ObjectID) ([]models.Folder, error) {
	return m.filter(func(f *models.Folder) bool {
		return f.User == owner && f.Parent != nil && *f.Parent == parent
	}), nil
}

func (m *memFolders) FindByOwner(_ context.Context, owner bson.ObjectID) ([]models.Folder, error) {
	return m.filter(func(f *models.Folder) bool { return f.User == owner }), nil
}

func (m *memFolders) FindByIDs(_ context.Context, ids []bson.ObjectID, owner bson.ObjectID) ([]models.Folder, error) {
	return m.filter(func(f *models.Folder) bool { return f.User == owner && slices.Contains(ids, f.ID) }), nil
}

func (m *memFolders) Rename(_ context.Context, id, owner bson.ObjectID, name string) (*models.Folder, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	i := m.index(id)
	if i < 0 || m.folders[i].User != owner {
		return nil, ErrNotFound
	}
	m.folders[i].Name = name
	m.folders[i].UpdatedAt = time.Now().UTC().Add(time.Millisecond)
	cp := *m.folders[i]
	return &cp, nil
}

func (m *memFolders) update(id bson.ObjectID, fn func(*models.Folder)) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if i := m.index(id); i >= 0 {
		fn(m.folders[i])
	}
	return nil
}

func addToSet(set []bson.ObjectID, ids ...bson.ObjectID) []bson.ObjectID {
	for _, id := range ids {
		if !slices.Contains(set, id) {
			set = append(set, id)
		}
	}
	return set
}

func (m *memFolders) AddChildren(_ context.Context, parent bson.ObjectID, children ...bson.ObjectID) error {
	return m.update(parent, func(f *models.Folder) { f.Children = addToSet(f.Children, children...) })
}

func (m *memFolders) RemoveChild(_ context.Context, parent, child bson.ObjectID) error {
	return m.update(parent, func(f *models.Folder) {
		f.Children = slices.DeleteFunc(f.Children, func(id bson.ObjectID) bool { return id == child })
	})
}

func (m *memFolders) AddImages(_ context.Context, folder bson.ObjectID, images ...bson.ObjectID) error {
	return m.update(folder, func(f *models.Folder) { f.Images = addToSet(f.Images, images...) })
}

func (m *memFolders) RemoveImage(_ context.Context, folder, image bson.ObjectID) error {
	return m.update(folder, func(f *models.Folder) {
		f.Images = slices.DeleteFunc(f.Images, func(id bson.ObjectID) bool { return id == image })
	})
}

func (m *memFolders) SetParent(_ context.Context, ids []bson.ObjectID, parent *bson.ObjectID, owner bson.ObjectID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, f := range m.folders {
		if f.User == owner && slices.Contains(ids, f.ID) {
			f.Parent = parent
		}
	}
	return nil
}

func (m *memFolders) Delete(_ context.Context, id, owner bson.ObjectID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	i := m.index(id)
	if i < 0 || m.folders[i].User != owner {
		return ErrNotFound
	}
	m.folders = slices.Delete(m.folders, i, i+1)
	return nil
}

func (m *memFolders) DeleteMany(_ context.Context, ids []bson.ObjectID, owner bson.ObjectID) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	before := len(m.folders)
	m.folders = slices.DeleteFunc(m.folders, func(f *models.Folder) bool {
		return f.User == owner && slices.Contains(ids, f.ID)
	})
	return int64(before - len(m.folders)), nil
}

type memImages struct {
	mu     sync.Mutex
	images []*models.Image
}

func (m *memImages) Insert(_ context.Context, image *models.Image) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if image.ID.IsZero() {
		image.ID = bson.NewObjectID()
	}
	now := time.Now().UTC()
	if image.CreatedAt.IsZero() {
		image.CreatedAt = now
	}
	image.UpdatedAt = now
	cp := *image
	m.images = append(m.images, &cp)
	return nil
}

func (m *memImages) filter(keep func(*models.Image) bool) []models.Image {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := []models.Image{}
	for _, img := range m.images {
		if keep(img) {
			out = append(out, *img)
		}
	}
	return out
}

func (m *memImages) FindOne(_ context.Context, id, owner bson.ObjectID) (*models.Image, error) {
	found := m.filter(func(img *models.Image) bool { return img.ID == id && img.User == owner })
	if len(found) == 0 {
		return nil, fmt.Errorf("image %s: %w", id.Hex(), ErrNotFound)
	}
	return &found[0], nil
}

func (m *memImages) FindByFolder(_ context.Context, folder, owner bson.ObjectID) ([]models.Image, error) {
	return m.filter(func(img *models.Image) bool { return img.Folder == folder && img.User == owner }), nil
}

func (m *memImages) FindByFolders(_ context.Context, folders []bson.ObjectID, owner bson.ObjectID) ([]models.Image, error) {
	return m.filter(func(img *models.Image) bool { return img.User == owner && slices.Contains(folders, img.Folder) }), nil
}

func (m *memImages) FindByOwner(_ context.Context, owner bson.ObjectID) ([]models.Image, error) {
	return m.filter(func(img *models.Image) bool { return img.User == owner }), nil
}

func (m *memImages) FindByIDs(_ context.Context, ids []bson.ObjectID, owner bson.ObjectID) ([]models.Image, error) {
	return m.filter(func(img *models.Image) bool { return img.User == owner && slices.Contains(ids, img.ID) }), nil
}

func (m *memImages) List(_ context.Context, q ImageQuery) ([]models.Image, int64, error) {
	needle := strings.ToLower(q.Search)
	matched := m.filter(func(img *models.Image) bool {
		return img.User == q.Owner && strings.Contains(strings.ToLower(img.Name), needle)
	})
	slices.SortStableFunc(matched, func(a, b models.Image) int { return b.CreatedAt.Compare(a.CreatedAt) })

	total := int64(len(matched))
	if q.Skip >= total {
		return []models.Image{}, total, nil
	}
	end := min(q.Skip+q.Limit, total)
	return matched[q.Skip:end], total, nil
}

func (m *memImages) CountByFolder(_ context.Context, folders []bson.ObjectID, owner bson.ObjectID) (map[bson.ObjectID]int64, error) {
	counts := make(map[bson.ObjectID]int64)
	for _, img := range m.filter(func(img *models.Image) bool { return img.User == owner }) {
		if slices.Contains(folders, img.Folder) {
			counts[img.Folder]++
		}
	}
	return counts, nil
}

func (m *memImages) MoveFolder(_ context.Context, from, to, owner bson.ObjectID) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var n int64
	for _, img := range m.images {
		if img.User == owner && img.Folder == from {
			img.Folder = to
			n++
		}
	}
	return n, nil
}

func (m *memImages) Delete(_ context.Context, id, owner bson.ObjectID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	i := slices.IndexFunc(m.images, func(img *models.Image) bool { return img.ID == id && img.User == owner })
	if i < 0 {
		return ErrNotFound
	}
	m.images = slices.Delete(m.images, i, i+1)
	return nil
}

func (m *memImages) DeleteByFolders(_ context.Context, folders []bson.ObjectID, owner bson.ObjectID) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	before := len(m.images)
	m.images = slices.DeleteFunc(m.images, func(img *models.Image) bool {
		return img.User == owner && slices.Contains(folders, img.Folder)
	})
	return int64(before - len(m.images)), nil
}

type memUsers struct {
	mu    sync.Mutex
	users []*models.User
}

func (m *memUsers) Insert(_ context.Context, user *models.User) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, u := range m.users {
		if u.Email == user.Email {
			return ErrConflict
		}
	}
	if user.ID.IsZero() {
		user.ID = bson.NewObjectID()
	}
	cp := *user
	m.users = append(m.users, &cp)
	return nil
}

func (m *memUsers) find(match func(*models.User) bool) (*models.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, u := range m.users {
		if match(u) {
			cp := *u
			return &cp, nil
		}
	}
	return nil, ErrNotFound
}

func (m *memUsers) FindByID(_ context.Context, id bson.ObjectID) (*models.User, error) {
	return m.find(func(u *models.User) bool { return u.ID == id })
}

func (m *memUsers) FindByEmail(_ context.Context, email string) (*models.User, error) {
	return m.find(func(u *models.User) bool { return u.Email == email })
}

// directTx runs fn without isolation, like TxManager with transactions off.
type directTx struct{ calls int }

func (d *directTx) WithTransaction(ctx context.Context, fn func(ctx context.Context) error) error {
	d.calls++
	return fn(ctx)
}

// memObjects records uploads and destroys and serves bytes by url.
type memObjects struct {
	mu         sync.Mutex
	marker     string
	objects    map[string][]byte
	destroyed  []string
	destroyErr error
	uploadErr  error
}

func newMemObjects() *memObjects {
	return &memObjects{marker: "/upload/", objects: map[string][]byte{}}
}

func (m *memObjects) Upload(_ context.Context, in storage.UploadInput) (*storage.Object, error) {
	if m.uploadErr != nil {
		return nil, m.uploadErr
	}
	data, err := io.ReadAll(in.Body)
	if err != nil {
		return nil, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	publicID := in.Namespace + "/" + bson.NewObjectID().Hex()
	url := "https://bucket.test" + m.marker + publicID + in.Extension
	m.objects[url] = data
	return &storage.Object{Key: strings.TrimPrefix(m.marker, "/") + publicID + in.Extension, URL: url, PublicID: publicID}, nil
}

func (m *memObjects) Destroy(_ context.Context, publicID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.destroyed = append(m.destroyed, publicID)
	return m.destroyErr
}

func (m *memObjects) PublicID(rawURL string) (string, bool) {
	return storage.PublicIDFromURL(rawURL, m.marker)
}

func (m *memObjects) SignedURL(_ context.Context, rawURL string) (string, error) {
	return rawURL + "?sig=test", nil
}

func (m *memObjects) Fetch(_ context.Context, rawURL string) (io.ReadCloser, int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	data, ok := m.objects[strings.TrimSuffix(rawURL, "?sig=test")]
	if !ok {
		return nil, 0, fmt.Errorf("%w: %s", storage.ErrFetch, fs.ErrNotExist)
	}
	return io.NopCloser(bytes.NewReader(data)), int64(len(data)), nil
}

type fixture struct {
	folders *memFolders
	images  *memImages
	users   *memUsers
	tx      *directTx
	remote  *memObjects

	folderSvc *FolderService
	imageSvc  *ImageService
}

func newFixture(mode DeleteMode) *fixture {
	f := &fixture{
		folders: &memFolders{},
		images:  &memImages{},
		users:   &memUsers{},
		tx:      &directTx{},
		remote:  newMemObjects(),
	}
	logger := discardLogger()
	f.folderSvc = NewFolderService(f.folders, f.images, f.users, f.tx, f.remote, mode, logger)
	f.imageSvc = NewImageService(f.images, f.folders, f.tx, f.remote, f.remote, 10<<20, logger)
	return f
}

// addImage stores an image record directly, bypassing upload.
func (f *fixture) addImage(owner, folder bson.ObjectID, name, url string) models.Image {
	img := &models.Image{Name: name, URL: url, Folder: folder, User: owner}
	_ = f.images.Insert(context.Background(), img)
	_ = f.folders.AddImages(context.Background(), folder, img.ID)
	return *img
}

package service

import (
	"bytes"
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"hash/crc32"
	"image"
	"image/color"
	"image/jpeg"
	"image/png"
	"io"
	"os"
	"path/filepath"
	"testing"
	"time"

	"go.mongodb.org/mongo-driver/v2/bson"

	"imagefolders/models"
)

func writeTemp(t *testing.T, name string, data []byte) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, data, 0o600); err != nil {
		t.Fatalf("write temp: %v", err)
	}
	return path
}

func pngBytes(t *testing.T, w, h int) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for x := 0; x < w; x++ {
		img.Set(x, 0, color.RGBA{R: 200, A: 255})
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatalf("encode png: %v", err)
	}
	return buf.Bytes()
}

// headerOnlyPNG carries a valid IHDR claiming w x h RGBA pixels and no data.
func headerOnlyPNG(w, h uint32) []byte {
	chunk := make([]byte, 4+13)
	copy(chunk, "IHDR")
	binary.BigEndian.PutUint32(chunk[4:], w)
	binary.BigEndian.PutUint32(chunk[8:], h)
	chunk[12], chunk[13] = 8, 6

	var buf bytes.Buffer
	buf.WriteString("\x89PNG\r\n\x1a\n")
	_ = binary.Write(&buf, binary.BigEndian, uint32(13))
	buf.Write(chunk)
	_ = binary.Write(&buf, binary.BigEndian, crc32.ChecksumIEEE(chunk))
	return buf.Bytes()
}

func TestUpload(t *testing.T) {
	ctx := context.Background()
	fx := newFixture(DeleteDetach)
	owner := bson.NewObjectID()
	folder, _ := fx.folderSvc.Create(ctx, owner, "F", "")

	path := writeTemp(t, "upload-1", pngBytes(t, 40, 30))
	img, err := fx.imageSvc.Upload(ctx, owner, folder.ID.Hex(), &UploadFile{Path: path, Filename: "holiday.png"})
	if err != nil {
		t.Fatalf("Upload: %v", err)
	}

	if img.Name != "holiday.png" || img.Mimetype != "image/png" {
		t.Errorf("image = %+v", img)
	}
	if img.Width != 40 || img.Height != 30 || img.Size == 0 {
		t.Errorf("metadata = %dx%d size %d", img.Width, img.Height, img.Size)
	}
	if img.Folder != folder.ID || img.User != owner {
		t.Errorf("ownership = folder %s user %s", img.Folder.Hex(), img.User.Hex())
	}
	if got := fx.folders.get(folder.ID).Images; len(got) != 1 || got[0] != img.ID {
		t.Errorf("folder images = %v", got)
	}
	if _, ok := fx.remote.PublicID(img.URL); !ok {
		t.Errorf("url %q has no storage marker", img.URL)
	}
	if _, err := os.Stat(path); !errors.Is(err, os.ErrNotExist) {
		t.Errorf("temp file not removed: %v", err)
	}
}

func TestUpload_Rejected(t *testing.T) {
	ctx := context.Background()
	fx := newFixture(DeleteDetach)
	owner := bson.NewObjectID()
	folder, _ := fx.folderSvc.Create(ctx, owner, "F", "")
	foreign, _ := fx.folderSvc.Create(ctx, bson.NewObjectID(), "G", "")

	tests := []struct {
		name    string
		folder  string
		content []byte
		want    error
		message string
	}{
		{name: "no folder id", folder: " ", content: pngBytes(t, 2, 2), want: ErrValidation, message: "Folder id is required"},
		{name: "bad folder id", folder: "xyz", content: pngBytes(t, 2, 2), want: ErrValidation},
		{name: "missing folder", folder: bson.NewObjectID().Hex(), content: pngBytes(t, 2, 2), want: ErrNotFound, message: "Folder not found"},
		{name: "foreign folder", folder: foreign.ID.Hex(), content: pngBytes(t, 2, 2), want: ErrNotFound},
		{name: "not an image", folder: folder.ID.Hex(), content: []byte("plain text, not pixels"), want: ErrValidation, message: "Only image files can be uploaded"},
		{name: "forged dimensions", folder: folder.ID.Hex(), content: headerOnlyPNG(60000, 60000), want: ErrValidation, message: "Image dimensions are too large"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := writeTemp(t, "upload", tt.content)
			_, err := fx.imageSvc.Upload(ctx, owner, tt.folder, &UploadFile{Path: path, Filename: "x"})
			if !errors.Is(err, tt.want) {
				t.Fatalf("err = %v, want %v", err, tt.want)
			}
			if tt.message != "" && err.Error() != tt.message {
				t.Errorf("message = %q, want %q", err.Error(), tt.message)
			}
			if _, err := os.Stat(path); !errors.Is(err, os.ErrNotExist) {
				t.Error("temp file left behind")
			}
		})
	}

	if _, err := fx.imageSvc.Upload(ctx, owner, folder.ID.Hex(), nil); !errors.Is(err, ErrValidation) {
		t.Errorf("nil file err = %v", err)
	}
	if len(fx.remote.objects) != 0 {
		t.Errorf("rejected uploads reached storage: %d objects", len(fx.remote.objects))
	}
}

func TestUpload_StorageFailureRemovesTempFile(t *testing.T) {
	ctx := context.Background()
	fx := newFixture(DeleteDetach)
	fx.remote.uploadErr = errors.New("bucket unavailable")
	owner := bson.NewObjectID()
	folder, _ := fx.folderSvc.Create(ctx, owner, "F", "")

	path := writeTemp(t, "upload", pngBytes(t, 2, 2))
	if _, err := fx.imageSvc.Upload(ctx, owner, folder.ID.Hex(), &UploadFile{Path: path, Filename: "a.png"}); err == nil {
		t.Fatal("expected error")
	}
	if _, err := os.Stat(path); !errors.Is(err, os.ErrNotExist) {
		t.Error("temp file left behind")
	}
	if n := len(fx.images.images); n != 0 {
		t.Errorf("%d image records written", n)
	}
}

func seedImages(fx *fixture, owner, folder bson.ObjectID, names ...string) {
	base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	for i, name := range names {
		img := &models.Image{
			Name:      name,
			URL:       fmt.Sprintf("https://bucket.test/upload/%s/%d.png", owner.Hex(), i),
			Folder:    folder,
			User:      owner,
			CreatedAt: base.Add(time.Duration(i) * time.Minute),
		}
		_ = fx.images.Insert(context.Background(), img)
	}
}

func TestSearch_ScopedCaseInsensitivePaged(t *testing.T) {
	ctx := context.Background()
	fx := newFixture(DeleteDetach)
	owner, other := bson.NewObjectID(), bson.NewObjectID()
	folder := bson.NewObjectID()

	seedImages(fx, owner, folder, "cat-1.png", "dog.png", "Big CAT.jpg", "concatenate.gif", "bird.png")
	seedImages(fx, other, folder, "cat-of-someone-else.png")

	page, err := fx.imageSvc.Search(ctx, owner, "cat", PageRequest{Page: 1, Limit: 2})
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if page.Pagination.TotalImages != 3 || page.Pagination.TotalPages != 2 || page.Pagination.PageSize != 2 {
		t.Errorf("pagination = %+v", page.Pagination)
	}
	if len(page.Images) != 2 || page.Images[0].Name != "concatenate.gif" || page.Images[1].Name != "Big CAT.jpg" {
		t.Errorf("page 1 = %+v", page.Images)
	}

	page2, err := fx.imageSvc.Search(ctx, owner, "CAT", PageRequest{Page: 2, Limit: 2})
	if err != nil {
		t.Fatalf("Search page 2: %v", err)
	}
	if len(page2.Images) != 1 || page2.Images[0].Name != "cat-1.png" || page2.Pagination.CurrentPage != 2 {
		t.Errorf("page 2 = %+v", page2)
	}
	for _, img := range append(page.Images, page2.Images...) {
		if img.User != owner {
			t.Errorf("foreign image %q returned", img.Name)
		}
		if img.SignedURL == "" {
			t.Errorf("image %q has no signed url", img.Name)
		}
	}

	if _, err := fx.imageSvc.Search(ctx, owner, "  ", PageRequest{}); !errors.Is(err, ErrValidation) {
		t.Errorf("blank query err = %v", err)
	}
}

func TestList_Defaults(t *testing.T) {
	ctx := context.Background()
	fx := newFixture(DeleteDetach)
	owner := bson.NewObjectID()
	names := make([]string, 12)
	for i := range names {
		names[i] = fmt.Sprintf("img-%02d.png", i)
	}
	seedImages(fx, owner, bson.NewObjectID(), names...)

	tests := []struct {
		name      string
		req       PageRequest
		wantLen   int
		wantPage  int
		wantSize  int
		wantPages int
	}{
		{name: "zero values", req: PageRequest{}, wantLen: 10, wantPage: 1, wantSize: 10, wantPages: 2},
		{name: "second page", req: PageRequest{Page: 2}, wantLen: 2, wantPage: 2, wantSize: 10, wantPages: 2},
		{name: "limit capped", req: PageRequest{Limit: 1000}, wantLen: 12, wantPage: 1, wantSize: 100, wantPages: 1},
		{name: "past the end", req: PageRequest{Page: 9, Limit: 5}, wantLen: 0, wantPage: 9, wantSize: 5, wantPages: 3},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			page, err := fx.imageSvc.List(ctx, owner, tt.req)
			if err != nil {
				t.Fatalf("List: %v", err)
			}
			p := page.Pagination
			if len(page.Images) != tt.wantLen || p.CurrentPage != tt.wantPage || p.PageSize != tt.wantSize || p.TotalPages != tt.wantPages {
				t.Errorf("got %d images, pagination %+v", len(page.Images), p)
			}
			if p.TotalImages != 12 {
				t.Errorf("total = %d", p.TotalImages)
			}
		})
	}
}

func TestDeleteImage_DerivesPublicID(t *testing.T) {
	ctx := context.Background()
	fx := newFixture(DeleteDetach)
	owner := bson.NewObjectID()
	folder, _ := fx.folderSvc.Create(ctx, owner, "F", "")
	img := fx.addImage(owner, folder.ID, "a.png", "https://bucket.test/upload/abc/xyz123.png")

	if err := fx.imageSvc.Delete(ctx, owner, img.ID.Hex()); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if len(fx.remote.destroyed) != 1 || fx.remote.destroyed[0] != "abc/xyz123" {
		t.Errorf("destroyed = %v, want [abc/xyz123]", fx.remote.destroyed)
	}
	if _, err := fx.images.FindOne(ctx, img.ID, owner); !errors.Is(err, ErrNotFound) {
		t.Error("record still stored")
	}
	if got := fx.folders.get(folder.ID).Images; len(got) != 0 {
		t.Errorf("folder images = %v", got)
	}
}

func TestDeleteImage_RemoteProblemsStillRemoveRecord(t *testing.T) {
	ctx := context.Background()
	owner := bson.NewObjectID()

	t.Run("url without marker", func(t *testing.T) {
		fx := newFixture(DeleteDetach)
		folder, _ := fx.folderSvc.Create(ctx, owner, "F", "")
		img := fx.addImage(owner, folder.ID, "a.png", "https://elsewhere.test/a.png")

		if err := fx.imageSvc.Delete(ctx, owner, img.ID.Hex()); err != nil {
			t.Fatalf("Delete: %v", err)
		}
		if len(fx.remote.destroyed) != 0 {
			t.Errorf("remote delete issued: %v", fx.remote.destroyed)
		}
		if _, err := fx.images.FindOne(ctx, img.ID, owner); !errors.Is(err, ErrNotFound) {
			t.Error("record still stored")
		}
	})

	t.Run("remote delete fails", func(t *testing.T) {
		fx := newFixture(DeleteDetach)
		fx.remote.destroyErr = errors.New("access denied")
		folder, _ := fx.folderSvc.Create(ctx, owner, "F", "")
		img := fx.addImage(owner, folder.ID, "a.png", "https://bucket.test/upload/o/a.png")

		if err := fx.imageSvc.Delete(ctx, owner, img.ID.Hex()); err != nil {
			t.Fatalf("Delete: %v", err)
		}
		if _, err := fx.images.FindOne(ctx, img.ID, owner); !errors.Is(err, ErrNotFound) {
			t.Error("record still stored")
		}
	})

	t.Run("foreign image", func(t *testing.T) {
		fx := newFixture(DeleteDetach)
		folder, _ := fx.folderSvc.Create(ctx, owner, "F", "")
		img := fx.addImage(owner, folder.ID, "a.png", "https://bucket.test/upload/o/a.png")

		if err := fx.imageSvc.Delete(ctx, bson.NewObjectID(), img.ID.Hex()); !errors.Is(err, ErrNotFound) {
			t.Fatalf("err = %v, want not found", err)
		}
		if len(fx.remote.destroyed) != 0 {
			t.Error("foreign delete reached storage")
		}
	})
}

func TestOpenAndThumbnail(t *testing.T) {
	ctx := context.Background()
	fx := newFixture(DeleteDetach)
	owner := bson.NewObjectID()
	folder, _ := fx.folderSvc.Create(ctx, owner, "F", "")

	data := pngBytes(t, 600, 300)
	img, err := fx.imageSvc.Upload(ctx, owner, folder.ID.Hex(), &UploadFile{Path: writeTemp(t, "u", data), Filename: "wide.png"})
	if err != nil {
		t.Fatalf("Upload: %v", err)
	}

	dl, err := fx.imageSvc.Open(ctx, owner, img.ID.Hex())
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	got, _ := io.ReadAll(dl.Body)
	dl.Body.Close()
	if !bytes.Equal(got, data) || dl.ContentType != "image/png" || dl.Filename != "wide.png" {
		t.Errorf("download = %d bytes, %q, %q", len(got), dl.ContentType, dl.Filename)
	}

	thumb, err := fx.imageSvc.Thumbnail(ctx, owner, img.ID.Hex(), 0)
	if err != nil {
		t.Fatalf("Thumbnail: %v", err)
	}
	cfg, err := jpeg.DecodeConfig(bytes.NewReader(thumb))
	if err != nil {
		t.Fatalf("thumbnail is not a jpeg: %v", err)
	}
	if cfg.Width != 256 || cfg.Height != 128 {
		t.Errorf("thumbnail = %dx%d, want 256x128", cfg.Width, cfg.Height)
	}

	missing := fx.addImage(owner, folder.ID, "gone.png", "https://bucket.test/upload/o/gone.png")
	if _, err := fx.imageSvc.Open(ctx, owner, missing.ID.Hex()); err == nil || err.Error() != "Failed to fetch image from storage" {
		t.Errorf("missing object err = %v", err)
	}
}

func TestThumbnail_Limits(t *testing.T) {
	ctx := context.Background()
	owner := bson.NewObjectID()

	t.Run("pixel budget", func(t *testing.T) {
		fx := newFixture(DeleteDetach)
		folder, _ := fx.folderSvc.Create(ctx, owner, "F", "")
		url := "https://bucket.test/upload/o/bomb.png"
		fx.remote.objects[url] = headerOnlyPNG(60000, 60000)
		img := fx.addImage(owner, folder.ID, "bomb.png", url)

		_, err := fx.imageSvc.Thumbnail(ctx, owner, img.ID.Hex(), 64)
		if !errors.Is(err, ErrValidation) || err.Error() != "Image dimensions are too large" {
			t.Fatalf("err = %v", err)
		}
	})

	t.Run("byte cap", func(t *testing.T) {
		fx := newFixture(DeleteDetach)
		fx.imageSvc.maxBytes = 64
		folder, _ := fx.folderSvc.Create(ctx, owner, "F", "")
		url := "https://bucket.test/upload/o/big.png"
		fx.remote.objects[url] = pngBytes(t, 300, 300)
		if len(fx.remote.objects[url]) <= 64 {
			t.Fatal("fixture image is not over the cap")
		}
		img := fx.addImage(owner, folder.ID, "big.png", url)

		_, err := fx.imageSvc.Thumbnail(ctx, owner, img.ID.Hex(), 64)
		if !errors.Is(err, ErrValidation) || err.Error() != "Image is too large to thumbnail" {
			t.Fatalf("err = %v", err)
		}

		fx.imageSvc.maxBytes = 10 << 20
		if _, err := fx.imageSvc.Thumbnail(ctx, owner, img.ID.Hex(), 64); err != nil {
			t.Errorf("under the cap: %v", err)
		}
	})
}

package storage

import (
	"context"
	"io"
	"log"
	"time"

	"github.com/cloudinary/cloudinary-go/v2"
	"github.com/cloudinary/cloudinary-go/v2/api/uploader"
)

// BlobStore holds attachments and avatars as opaque blobs addressed by a
// public id, fetched through the returned URL. Uploads happen before the
// metadata write that references them; Compensate removes the blob when that
// write fails, so the saga never leaves a referenced-but-missing file.
type BlobStore struct {
	cld *cloudinary.Cloudinary
}

type Blob struct {
	URL      string
	PublicID string
}

func NewBlobStore(cloudinaryURL string) (*BlobStore, error) {
	cld, err := cloudinary.NewFromURL(cloudinaryURL)
	if err != nil {
		return nil, err
	}
	return &BlobStore{cld: cld}, nil
}

func (b *BlobStore) Upload(ctx context.Context, r io.Reader, folder, publicID string) (*Blob, error) {
	result, err := b.cld.Upload.Upload(ctx, r, uploader.UploadParams{
		Folder:   folder,
		PublicID: publicID,
	})
	if err != nil {
		return nil, err
	}
	return &Blob{URL: result.SecureURL, PublicID: result.PublicID}, nil
}

func (b *BlobStore) Destroy(ctx context.Context, publicID string) error {
	_, err := b.cld.Upload.Destroy(ctx, uploader.DestroyParams{PublicID: publicID})
	return err
}

// Compensate is the saga's second step on metadata-write failure: best-effort
// removal of the orphaned blob. A failed compensation only logs; the orphan is
// unreferenced and harmless.
func (b *BlobStore) Compensate(publicID string) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := b.Destroy(ctx, publicID); err != nil {
		log.Printf("storage: compensation failed for %s: %v", publicID, err)
	}
}

package documents

import (
	"context"
	"fmt"
	"io"
	"path"
	"strings"
	"time"

	"github.com/google/uuid"

	"bidready/portal-backend/pkg/storage"
)

// StorageProvider places company files under a predictable key layout
type StorageProvider struct {
	s3        storage.S3Client
	linkTTL   time.Duration
	newObject func() uuid.UUID
}

// NewStorageProvider creates a new StorageProvider
func NewStorageProvider(s3 storage.S3Client, linkTTL time.Duration) *StorageProvider {
	if linkTTL <= 0 {
		linkTTL = 15 * time.Minute
	}
	return &StorageProvider{s3: s3, linkTTL: linkTTL, newObject: uuid.New}
}

func (p *StorageProvider) Upload(ctx context.Context, key string, body io.Reader, size int64, contentType string) error {
	return p.s3.Upload(ctx, key, body, size, contentType)
}

func (p *StorageProvider) Delete(ctx context.Context, key string) error {
	return p.s3.Delete(ctx, key)
}

func (p *StorageProvider) DownloadURL(ctx context.Context, key string) (string, error) {
	return p.s3.GetPresignedURL(ctx, key, p.linkTTL)
}

// GenerateKey builds companies/<company>/documents/<type>/<object>-<file>
func (p *StorageProvider) GenerateKey(companyID uuid.UUID, docType *string, fileName string) string {
	folder := "untyped"
	if docType != nil && strings.TrimSpace(*docType) != "" {
		folder = sanitizeSegment(*docType)
	}
	return fmt.Sprintf("companies/%s/documents/%s/%s-%s",
		companyID, folder, p.newObject(), sanitizeSegment(path.Base(fileName)))
}

func sanitizeSegment(s string) string {
	s = strings.ToLower(strings.TrimSpace(s))
	var b strings.Builder
	for _, r := range s {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9', r == '.', r == '-', r == '_':
			b.WriteRune(r)
		default:
			b.WriteRune('_')
		}
	}
	if b.Len() == 0 {
		return "file"
	}
	return b.String()
}

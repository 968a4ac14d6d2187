package documents

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"bidready/portal-backend/internal/company"
)

// ErrEmptyFile is returned for zero-byte uploads
var ErrEmptyFile = errors.New("file is empty")

// ReadinessInvalidator drops cached readiness results for a company
type ReadinessInvalidator interface {
	Invalidate(companyID uuid.UUID)
}

type Service interface {
	Attach(ctx context.Context, req AttachRequest) (*DocumentView, error)
	List(ctx context.Context, orgID, companyID uuid.UUID) ([]DocumentView, error)
}

type documentService struct {
	repo      company.Repository
	storage   *StorageProvider
	readiness ReadinessInvalidator
	logger    *zap.Logger
	now       func() time.Time
}

// NewService creates a new document service
func NewService(repo company.Repository, storage *StorageProvider, readiness ReadinessInvalidator, logger *zap.Logger) Service {
	return &documentService{
		repo:      repo,
		storage:   storage,
		readiness: readiness,
		logger:    logger,
		now:       time.Now,
	}
}

func (s *documentService) Attach(ctx context.Context, req AttachRequest) (*DocumentView, error) {
	if req.Size == 0 {
		return nil, ErrEmptyFile
	}
	if _, err := company.GetOwnedCompany(ctx, s.repo, req.OrganizationID, req.CompanyID); err != nil {
		return nil, err
	}

	key := s.storage.GenerateKey(req.CompanyID, req.Type, req.FileName)
	if err := s.storage.Upload(ctx, key, req.Content, req.Size, req.ContentType); err != nil {
		return nil, fmt.Errorf("failed to upload document: %w", err)
	}

	doc := &company.Document{
		ID:          uuid.New(),
		CompanyID:   req.CompanyID,
		Type:        normalizeType(req.Type),
		Tags:        normalizeTags(req.Tags),
		FileName:    req.FileName,
		StorageKey:  key,
		SizeBytes:   req.Size,
		UploadedBy:  req.UploadedBy,
		UploadedAt:  s.now().UTC(),
		Description: req.Description,
	}
	if err := s.repo.CreateDocument(ctx, doc); err != nil {
		if delErr := s.storage.Delete(ctx, key); delErr != nil {
			s.logger.Warn("Failed to remove orphaned object", zap.String("key", key), zap.Error(delErr))
		}
		return nil, fmt.Errorf("failed to save document: %w", err)
	}

	if s.readiness != nil {
		s.readiness.Invalidate(req.CompanyID)
	}
	s.logger.Info("Document attached",
		zap.String("company_id", req.CompanyID.String()),
		zap.String("document_id", doc.ID.String()),
		zap.Int64("size", req.Size))

	return s.view(ctx, *doc), nil
}

func (s *documentService) List(ctx context.Context, orgID, companyID uuid.UUID) ([]DocumentView, error) {
	if _, err := company.GetOwnedCompany(ctx, s.repo, orgID, companyID); err != nil {
		return nil, err
	}
	docs, err := s.repo.ListDocuments(ctx, companyID)
	if err != nil {
		return nil, err
	}
	views := make([]DocumentView, 0, len(docs))
	for _, doc := range docs {
		views = append(views, *s.view(ctx, doc))
	}
	return views, nil
}

// view attaches a download link. A presign failure leaves the link empty.
func (s *documentService) view(ctx context.Context, doc company.Document) *DocumentView {
	v := &DocumentView{Document: doc}
	if doc.StorageKey == "" {
		return v
	}
	link, err := s.storage.DownloadURL(ctx, doc.StorageKey)
	if err != nil {
		s.logger.Warn("Failed to presign document", zap.String("document_id", doc.ID.String()), zap.Error(err))
		return v
	}
	v.DownloadURL = link
	return v
}

func normalizeType(t *string) *string {
	if t == nil {
		return nil
	}
	trimmed := strings.ToLower(strings.TrimSpace(*t))
	if trimmed == "" {
		return nil
	}
	return &trimmed
}

func normalizeTags(tags []string) []string {
	seen := make(map[string]bool, len(tags))
	out := make([]string, 0, len(tags))
	for _, tag := range tags {
		tag = strings.ToLower(strings.TrimSpace(tag))
		if tag == "" || seen[tag] {
			continue
		}
		seen[tag] = true
		out = append(out, tag)
	}
	return out
}

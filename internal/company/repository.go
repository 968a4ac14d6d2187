package company

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// ErrNotFound is returned when the company does not exist
var ErrNotFound = errors.New("company not found")

// Repository reads company records
type Repository interface {
	GetCompany(ctx context.Context, id uuid.UUID) (*Company, error)
	Snapshot(ctx context.Context, id uuid.UUID) (*Records, error)
	CreateDocument(ctx context.Context, doc *Document) error
	ListDocuments(ctx context.Context, companyID uuid.UUID) ([]Document, error)
}

// GetOwnedCompany loads a company on behalf of an organization. Companies of
// other organizations are reported as ErrNotFound so their existence is not
// revealed.
func GetOwnedCompany(ctx context.Context, repo Repository, orgID, companyID uuid.UUID) (*Company, error) {
	if orgID == uuid.Nil {
		return nil, ErrNotFound
	}
	c, err := repo.GetCompany(ctx, companyID)
	if err != nil {
		return nil, err
	}
	if c.OrganizationID != orgID {
		return nil, ErrNotFound
	}
	return c, nil
}

type gormRepository struct {
	db *gorm.DB
}

// NewRepository creates a gorm-backed company repository
func NewRepository(db *gorm.DB) Repository {
	return &gormRepository{db: db}
}

func (r *gormRepository) GetCompany(ctx context.Context, id uuid.UUID) (*Company, error) {
	var c Company
	err := r.db.WithContext(ctx).Where("id = ?", id).First(&c).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load company: %w", err)
	}
	return &c, nil
}

// Snapshot loads the company and all of its sub-records in a fixed order.
func (r *gormRepository) Snapshot(ctx context.Context, id uuid.UUID) (*Records, error) {
	c, err := r.GetCompany(ctx, id)
	if err != nil {
		return nil, err
	}

	db := r.db.WithContext(ctx)
	records := &Records{Company: c}

	if err := db.Where("company_id = ?", id).Find(&records.Documents).Error; err != nil {
		return nil, fmt.Errorf("failed to load documents: %w", err)
	}
	if err := db.Where("company_id = ?", id).Find(&records.Staff).Error; err != nil {
		return nil, fmt.Errorf("failed to load staff: %w", err)
	}
	if err := db.Where("company_id = ?", id).Find(&records.Insurance).Error; err != nil {
		return nil, fmt.Errorf("failed to load insurance: %w", err)
	}

	var bonding []BondingRecord
	if err := db.Where("company_id = ?", id).Limit(1).Find(&bonding).Error; err != nil {
		return nil, fmt.Errorf("failed to load bonding: %w", err)
	}
	if len(bonding) > 0 {
		records.Bonding = &bonding[0]
	}

	return records, nil
}

func (r *gormRepository) CreateDocument(ctx context.Context, doc *Document) error {
	if err := r.db.WithContext(ctx).Create(doc).Error; err != nil {
		return fmt.Errorf("failed to create document: %w", err)
	}
	return nil
}

func (r *gormRepository) ListDocuments(ctx context.Context, companyID uuid.UUID) ([]Document, error) {
	var docs []Document
	err := r.db.WithContext(ctx).
		Where("company_id = ?", companyID).
		Order("uploaded_at DESC").
		Find(&docs).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list documents: %w", err)
	}
	return docs, nil
}

package company

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// Company is the contractor organization record
type Company struct {
	ID             uuid.UUID                   `gorm:"type:uuid;default:gen_random_uuid();primaryKey" json:"id"`
	OrganizationID uuid.UUID                   `gorm:"type:uuid;not null;index" json:"organization_id"`
	LegalName      string                      `json:"legal_name"`
	DBAName        string                      `json:"dba_name"`
	UEI            string                      `gorm:"column:uei" json:"uei"`
	CAGECode       string                      `gorm:"column:cage_code" json:"cage_code"`
	EIN            string                      `gorm:"column:ein" json:"ein"`
	NAICSCodes     datatypes.JSONSlice[string] `gorm:"column:naics_codes;type:jsonb" json:"naics_codes"`
	AddressLine1   string                      `json:"address_line1"`
	City           string                      `json:"city"`
	State          string                      `json:"state"`
	PostalCode     string                      `json:"postal_code"`
	CreatedAt      time.Time                   `json:"created_at"`
	UpdatedAt      time.Time                   `json:"updated_at"`
	DeletedAt      gorm.DeletedAt              `gorm:"index" json:"-"`
}

// Document is a file reference attached to a company. Type is nullable because
// older uploads were stored without a declared type.
type Document struct {
	ID          uuid.UUID                   `gorm:"type:uuid;default:gen_random_uuid();primaryKey" json:"id"`
	CompanyID   uuid.UUID                   `gorm:"type:uuid;not null;index" json:"company_id"`
	Type        *string                     `json:"type"`
	Tags        datatypes.JSONSlice[string] `gorm:"type:jsonb" json:"tags"`
	FileName    string                      `gorm:"not null" json:"file_name"`
	StorageKey  string                      `json:"storage_key"`
	SizeBytes   int64                       `json:"size_bytes"`
	UploadedBy  uuid.UUID                   `gorm:"type:uuid" json:"uploaded_by"`
	UploadedAt  time.Time                   `json:"uploaded_at"`
	Description string                      `json:"description"`
}

// TableName keeps documents namespaced under the company schema
func (Document) TableName() string { return "company_documents" }

// StaffMember is a key personnel record
type StaffMember struct {
	ID        uuid.UUID `gorm:"type:uuid;default:gen_random_uuid();primaryKey" json:"id"`
	CompanyID uuid.UUID `gorm:"type:uuid;not null;index" json:"company_id"`
	FullName  string    `gorm:"not null" json:"full_name"`
	Title     string    `json:"title"`
	Email     string    `json:"email"`
	CreatedAt time.Time `json:"created_at"`
}

// TableName for staff records
func (StaffMember) TableName() string { return "company_staff" }

// InsurancePolicy is a structured insurance certificate record
type InsurancePolicy struct {
	ID             uuid.UUID  `gorm:"type:uuid;default:gen_random_uuid();primaryKey" json:"id"`
	CompanyID      uuid.UUID  `gorm:"type:uuid;not null;index" json:"company_id"`
	Type           string     `gorm:"not null" json:"type"`
	Carrier        string     `json:"carrier"`
	PolicyNumber   string     `json:"policy_number"`
	CoverageAmount float64    `json:"coverage_amount"`
	ExpiresAt      *time.Time `json:"expires_at,omitempty"`
	CreatedAt      time.Time  `json:"created_at"`
}

// TableName for insurance policies
func (InsurancePolicy) TableName() string { return "company_insurance_policies" }

// BondingRecord holds surety bonding capacity
type BondingRecord struct {
	ID             uuid.UUID `gorm:"type:uuid;default:gen_random_uuid();primaryKey" json:"id"`
	CompanyID      uuid.UUID `gorm:"type:uuid;not null;uniqueIndex" json:"company_id"`
	SuretyName     string    `json:"surety_name"`
	SingleLimit    float64   `json:"single_limit"`
	AggregateLimit float64   `json:"aggregate_limit"`
	CreatedAt      time.Time `json:"created_at"`
	UpdatedAt      time.Time `json:"updated_at"`
}

// TableName for bonding records
func (BondingRecord) TableName() string { return "company_bonding" }

// Records is the snapshot of everything known about one company
type Records struct {
	Company   *Company
	Documents []Document
	Staff     []StaffMember
	Insurance []InsurancePolicy
	Bonding   *BondingRecord
}

package documents

import (
	"io"

	"github.com/google/uuid"

	"bidready/portal-backend/internal/company"
)

// MaxUploadSize caps a single attached file
const MaxUploadSize = 25 << 20

// AttachRequest describes a file being attached to a company
type AttachRequest struct {
	CompanyID      uuid.UUID
	OrganizationID uuid.UUID
	FileName       string
	ContentType    string
	Size           int64
	Type           *string
	Tags           []string
	Description    string
	UploadedBy     uuid.UUID
	Content        io.Reader
}

// DocumentView is a stored document with a short-lived download link
type DocumentView struct {
	company.Document
	DownloadURL string `json:"download_url,omitempty"`
}

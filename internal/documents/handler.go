package documents

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"bidready/portal-backend/internal/auth"
	"bidready/portal-backend/internal/company"
)

type Handler struct {
	service Service
	logger  *zap.Logger
}

func NewHandler(service Service, logger *zap.Logger) *Handler {
	return &Handler{service: service, logger: logger}
}

func (h *Handler) RegisterRoutes(rg *gin.RouterGroup) {
	docs := rg.Group("/companies/:id/documents")
	{
		docs.POST("", h.Attach)
		docs.GET("", h.List)
	}
}

// Attach handles POST /api/v1/companies/:id/documents (multipart)
func (h *Handler) Attach(c *gin.Context) {
	companyID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid company ID"})
		return
	}

	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, MaxUploadSize+1<<20)
	file, err := c.FormFile("file")
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "file is required"})
		return
	}
	if file.Size > MaxUploadSize {
		c.JSON(http.StatusRequestEntityTooLarge, gin.H{"error": "file too large"})
		return
	}

	f, err := file.Open()
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	defer f.Close()

	var docType *string
	if t := c.PostForm("type"); t != "" {
		docType = &t
	}
	contentType := file.Header.Get("Content-Type")
	if contentType == "" {
		contentType = "application/octet-stream"
	}

	view, err := h.service.Attach(c.Request.Context(), AttachRequest{
		CompanyID:      companyID,
		OrganizationID: auth.CurrentOrganizationID(c),
		FileName:       file.Filename,
		ContentType:    contentType,
		Size:           file.Size,
		Type:           docType,
		Tags:           splitTags(c.PostFormArray("tags")),
		Description:    c.PostForm("description"),
		UploadedBy:     uploader(c),
		Content:        f,
	})
	if err != nil {
		h.writeError(c, companyID, err)
		return
	}

	c.JSON(http.StatusCreated, view)
}

// List handles GET /api/v1/companies/:id/documents
func (h *Handler) List(c *gin.Context) {
	companyID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid company ID"})
		return
	}

	docs, err := h.service.List(c.Request.Context(), auth.CurrentOrganizationID(c), companyID)
	if err != nil {
		h.writeError(c, companyID, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"documents": docs})
}

func (h *Handler) writeError(c *gin.Context, companyID uuid.UUID, err error) {
	switch {
	case errors.Is(err, company.ErrNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
	case errors.Is(err, ErrEmptyFile):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	default:
		h.logger.Error("Document request failed", zap.Error(err), zap.String("company_id", companyID.String()))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to process document"})
	}
}

// uploader returns the caller's user ID, or uuid.Nil when the subject is not a UUID
func uploader(c *gin.Context) uuid.UUID {
	session, err := auth.CurrentSession(c)
	if err != nil {
		return uuid.Nil
	}
	id, err := uuid.Parse(session.UserID)
	if err != nil {
		return uuid.Nil
	}
	return id
}

// splitTags accepts repeated fields and comma-separated values
func splitTags(values []string) []string {
	var tags []string
	for _, v := range values {
		for _, tag := range strings.Split(v, ",") {
			if tag = strings.TrimSpace(tag); tag != "" {
				tags = append(tags, tag)
			}
		}
	}
	return tags
}

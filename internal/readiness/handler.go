package readiness

import (
	"bytes"
	"errors"
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"bidready/portal-backend/internal/auth"
	"bidready/portal-backend/internal/company"
)

const xlsxContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

// Handler handles HTTP requests for readiness scoring
type Handler struct {
	service *Service
	logger  *zap.Logger
}

// NewHandler creates a new readiness handler
func NewHandler(service *Service, logger *zap.Logger) *Handler {
	return &Handler{service: service, logger: logger}
}

// RegisterRoutes registers readiness routes
func (h *Handler) RegisterRoutes(router *gin.RouterGroup) {
	companies := router.Group("/companies")
	{
		companies.GET("/:id/readiness", h.getReadiness)
		companies.GET("/:id/readiness/export", h.exportReadiness)
	}
}

// getReadiness handles GET /api/v1/companies/:id/readiness
func (h *Handler) getReadiness(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid company ID"})
		return
	}

	result, err := h.service.CompanyReadiness(c.Request.Context(), auth.CurrentOrganizationID(c), id)
	if err != nil {
		h.writeError(c, id, err)
		return
	}

	c.JSON(http.StatusOK, result)
}

// exportReadiness handles GET /api/v1/companies/:id/readiness/export
func (h *Handler) exportReadiness(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid company ID"})
		return
	}

	var buf bytes.Buffer
	if err := h.service.ExportXLSX(c.Request.Context(), auth.CurrentOrganizationID(c), id, &buf); err != nil {
		h.writeError(c, id, err)
		return
	}

	c.Header("Content-Disposition", fmt.Sprintf(`attachment; filename="readiness-%s.xlsx"`, id))
	c.Data(http.StatusOK, xlsxContentType, buf.Bytes())
}

func (h *Handler) writeError(c *gin.Context, id uuid.UUID, err error) {
	if errors.Is(err, company.ErrNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
		return
	}
	h.logger.Error("Failed to score company", zap.Error(err), zap.String("company_id", id.String()))
	c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to compute readiness"})
}

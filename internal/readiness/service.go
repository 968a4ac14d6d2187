package readiness

import (
	"context"
	"io"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"bidready/portal-backend/internal/cache"
	"bidready/portal-backend/internal/company"
)

// Service scores companies from their stored records
type Service struct {
	repo    company.Repository
	scorer  *Scorer
	results *cache.TTLCache[Result]
	logger  *zap.Logger
}

// NewService creates a new readiness service. results may be nil to disable caching.
func NewService(repo company.Repository, scorer *Scorer, results *cache.TTLCache[Result], logger *zap.Logger) *Service {
	return &Service{
		repo:    repo,
		scorer:  scorer,
		results: results,
		logger:  logger,
	}
}

func cacheKey(companyID uuid.UUID) string {
	return "readiness:" + companyID.String()
}

// CompanyReadiness returns the current readiness result for a company owned
// by orgID. Companies of other organizations are reported as not found.
func (s *Service) CompanyReadiness(ctx context.Context, orgID, companyID uuid.UUID) (Result, error) {
	if _, err := company.GetOwnedCompany(ctx, s.repo, orgID, companyID); err != nil {
		return Result{}, err
	}
	return s.score(ctx, companyID)
}

func (s *Service) score(ctx context.Context, companyID uuid.UUID) (Result, error) {
	compute := func() (Result, error) {
		records, err := s.repo.Snapshot(ctx, companyID)
		if err != nil {
			return Result{}, err
		}
		result := s.scorer.Score(InputsFromRecords(records))

		s.logger.Debug("Readiness computed",
			zap.String("company_id", companyID.String()),
			zap.Int("score", result.Score),
			zap.Int("missing", len(result.MissingKeys)))
		return result, nil
	}

	if s.results == nil {
		return compute()
	}
	return s.results.GetOrSet(cacheKey(companyID), compute)
}

// Invalidate drops the cached result after a company's records change
func (s *Service) Invalidate(companyID uuid.UUID) {
	if s.results != nil {
		s.results.Delete(cacheKey(companyID))
	}
}

// ExportXLSX writes the company's readiness breakdown as a spreadsheet
func (s *Service) ExportXLSX(ctx context.Context, orgID, companyID uuid.UUID, w io.Writer) error {
	c, err := company.GetOwnedCompany(ctx, s.repo, orgID, companyID)
	if err != nil {
		return err
	}
	result, err := s.score(ctx, companyID)
	if err != nil {
		return err
	}
	return WriteXLSX(w, c.LegalName, result)
}

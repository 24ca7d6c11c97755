// Package query is the read-only facade over the current aggregation index.
package query

import (
	"github.com/sells-group/cyberrisk/internal/aggregate"
	"github.com/sells-group/cyberrisk/internal/model"
)

// maxSelectors bounds each selector list of a segment query.
const maxSelectors = 64

// Segment filters companies by revenue and industry. An empty list matches
// everything on that dimension.
type Segment struct {
	Revenues   []RevenueSelector `json:"revenues"`
	Industries []string          `json:"industries"`
}

// Service answers point and segment queries against whatever index the
// holder currently publishes.
type Service struct {
	holder *aggregate.Holder
}

// NewService creates a query service.
func NewService(holder *aggregate.Holder) *Service {
	return &Service{holder: holder}
}

// ResultsByID returns the aggregate of one company.
func (s *Service) ResultsByID(companyID string) (model.CompanyAggregate, error) {
	if companyID == "" {
		return model.CompanyAggregate{}, model.NewValidationError("company_id", "must not be empty")
	}
	return s.holder.Load().Get(companyID)
}

// ResultsBySegment validates the selectors and averages the matching
// companies. Zero matches yield NotFoundError.
func (s *Service) ResultsBySegment(seg Segment) (aggregate.SegmentResult, error) {
	if len(seg.Revenues) > maxSelectors || len(seg.Industries) > maxSelectors {
		return aggregate.SegmentResult{}, model.NewValidationError("segment", "at most %d selectors per dimension", maxSelectors)
	}

	bands := make([]model.RevenueBand, 0, len(seg.Revenues))
	for _, r := range seg.Revenues {
		b, err := r.Band()
		if err != nil {
			return aggregate.SegmentResult{}, err
		}
		bands = append(bands, b)
	}

	industries := make([]model.Industry, 0, len(seg.Industries))
	for _, name := range seg.Industries {
		ind, err := model.ParseIndustry(name)
		if err != nil {
			return aggregate.SegmentResult{}, err
		}
		industries = append(industries, ind)
	}

	return s.holder.Load().Segment(bands, industries)
}

package model

import (
	"time"
)

// CompanyProfile is a synthetic company. Immutable once generated.
type CompanyProfile struct {
	ID       string   `json:"company_id"`
	Revenue  float64  `json:"revenue"`
	Industry Industry `json:"industry"`
}

// Validate checks the profile against the enumerated industries and the
// revenue range covered by the bands.
func (c CompanyProfile) Validate() error {
	if c.ID == "" {
		return NewValidationError("company_id", "must not be empty")
	}
	if !c.Industry.Valid() {
		return NewValidationError("industry", "unknown industry %q", c.Industry)
	}
	_, err := BandForRevenue(c.Revenue)
	return err
}

// Generation describes one simulation batch over a fixed set of companies.
// Seed drew the companies; Simulations and BatchSeed are zero until the
// generation has been simulated.
type Generation struct {
	ID          string    `json:"id"`
	Seed        uint64    `json:"seed"`
	Companies   int       `json:"companies"`
	Simulations int       `json:"simulations"`
	BatchSeed   uint64    `json:"batch_seed"`
	CreatedAt   time.Time `json:"created_at"`
}

// Corpus is the full persisted state of one generation: every company and
// every simulation run (without per-attack events).
type Corpus struct {
	Companies []CompanyProfile
	Runs      map[string][]SimulationRun
}

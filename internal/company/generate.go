// Package company generates the synthetic company profiles a batch simulates.
package company

import (
	"math"
	"math/rand/v2"
	"strconv"

	"github.com/sells-group/cyberrisk/internal/model"
)

const (
	minRevenueMillions = 1
	maxRevenueMillions = 1000
)

// Generate returns n companies with IDs C1..Cn, revenue drawn uniformly from
// [1, 1000] million dollars rounded to the nearest million, and an industry
// drawn uniformly from the enum. Equal seeds give equal companies.
func Generate(n int, seed uint64) ([]model.CompanyProfile, error) {
	if n <= 0 {
		return nil, model.NewValidationError("num_companies", "must be positive, got %d", n)
	}

	rng := rand.New(rand.NewPCG(seed, 0))
	out := make([]model.CompanyProfile, n)
	for i := range out {
		millions := minRevenueMillions + rng.Float64()*(maxRevenueMillions-minRevenueMillions)
		out[i] = model.CompanyProfile{
			ID:       "C" + strconv.Itoa(i+1),
			Revenue:  math.Round(millions) * 1_000_000,
			Industry: model.Industries[rng.IntN(len(model.Industries))],
		}
	}
	return out, nil
}

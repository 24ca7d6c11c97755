package model

import (
	"math"
)

// CostStdRatio is the cost standard deviation as a fraction of the mean.
const CostStdRatio = 0.1

// DistributionParams parameterizes the frequency and severity draws for one
// (industry, revenue band) cell. Shared read-only between simulations.
type DistributionParams struct {
	Lambda   float64 `json:"lambda"`
	CostMean float64 `json:"cost_mean"`
	CostStd  float64 `json:"cost_std"`
}

// NewDistributionParams derives the cost deviation from the mean.
func NewDistributionParams(lambda, costMean float64) DistributionParams {
	return DistributionParams{
		Lambda:   lambda,
		CostMean: costMean,
		CostStd:  CostStdRatio * costMean,
	}
}

// Validate rejects non-positive or non-finite parameters.
func (p DistributionParams) Validate() error {
	fields := []struct {
		name string
		v    float64
	}{{"lambda", p.Lambda}, {"cost_mean", p.CostMean}, {"cost_std", p.CostStd}}
	for _, f := range fields {
		if math.IsNaN(f.v) || math.IsInf(f.v, 0) || f.v <= 0 {
			return NewValidationError(f.name, "must be a positive finite number, got %v", f.v)
		}
	}
	return nil
}

// NegativeCostPolicy decides what happens to a Normal draw below zero.
type NegativeCostPolicy string

const (
	// NegativeCostAllow keeps raw Normal draws, negative ones included.
	NegativeCostAllow NegativeCostPolicy = "allow"
	// NegativeCostClamp replaces negative draws with zero.
	NegativeCostClamp NegativeCostPolicy = "clamp"
)

// Valid reports whether p is a known policy.
func (p NegativeCostPolicy) Valid() bool {
	return p == NegativeCostAllow || p == NegativeCostClamp
}

// AttackEvent is one simulated attack and its cost.
type AttackEvent struct {
	SimulationID int     `json:"simulation_id" csv:"simulation_id"`
	AttackID     int     `json:"attack_id" csv:"attack_id"`
	Cost         float64 `json:"cost" csv:"cost"`
}

// SimulationRun is one draw of attack count and costs for a company.
// TotalCost always equals the sum of Events' costs.
type SimulationRun struct {
	CompanyID    string        `json:"company_id"`
	SimulationID int           `json:"simulation_id"`
	TotalCost    float64       `json:"total_cost"`
	Events       []AttackEvent `json:"events,omitempty"`
}

// SimulationMetrics summarizes the per-run totals of one company.
type SimulationMetrics struct {
	Total  float64 `json:"total"`
	Mean   float64 `json:"mean"`
	Median float64 `json:"median"`
	StdDev float64 `json:"std_dev"`
	Min    float64 `json:"min"`
	Max    float64 `json:"max"`
	P95    float64 `json:"p95"`
}

// CompanyAggregate is the derived per-company result served by queries.
// It is always recomputed from a full run set.
type CompanyAggregate struct {
	CompanyID             string            `json:"company_id"`
	Industry              Industry          `json:"industry"`
	Revenue               float64           `json:"revenue"`
	AverageSimulationCost float64           `json:"average_simulation_cost"`
	NumSimulations        int               `json:"num_simulations"`
	Metrics               SimulationMetrics `json:"metrics"`
}

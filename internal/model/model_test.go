package model

import (
	"errors"
	"math"
	"testing"

	"github.com/rotisserie/eris"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseIndustry(t *testing.T) {
	t.Parallel()

	tests := []struct {
		in   string
		want Industry
	}{
		{"finance", IndustryFinance},
		{"FINANCE", IndustryFinance},
		{"  Healthcare ", IndustryHealthcare},
		{"retail", IndustryRetail},
		{"Manufacturing", IndustryManufacturing},
		{"construction", IndustryConstruction},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			t.Parallel()
			got, err := ParseIndustry(tt.in)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestParseIndustry_Unknown(t *testing.T) {
	t.Parallel()

	_, err := ParseIndustry("mining")
	require.Error(t, err)
	assert.Equal(t, KindValidation, ErrorKind(err))
	assert.Contains(t, err.Error(), "mining")
}

func TestBandForRevenue_Boundaries(t *testing.T) {
	t.Parallel()

	tests := []struct {
		revenue float64
		want    RevenueBand
	}{
		{1, Band10M},
		{5_000_000, Band10M},
		{10_000_000, Band10M},
		{10_000_001, Band100M},
		{50_000_000, Band100M},
		{100_000_000, Band100M},
		{200_000_000, Band500M},
		{500_000_000, Band500M},
		{800_000_000, Band1B},
		{1_000_000_000, Band1B},
	}
	for _, tt := range tests {
		got, err := BandForRevenue(tt.revenue)
		require.NoError(t, err, "revenue %v", tt.revenue)
		assert.Equal(t, tt.want, got, "revenue %v", tt.revenue)
	}
}

func TestBandForRevenue_Invalid(t *testing.T) {
	t.Parallel()

	for _, rev := range []float64{0, -1, math.NaN(), math.Inf(1), math.Inf(-1)} {
		_, err := BandForRevenue(rev)
		require.Error(t, err)
		assert.Equal(t, KindValidation, ErrorKind(err), "revenue %v", rev)
	}
}

func TestBandForRevenue_OutOfRange(t *testing.T) {
	t.Parallel()

	_, err := BandForRevenue(1_000_000_001)
	require.Error(t, err)
	assert.Equal(t, KindLookup, ErrorKind(err))
	assert.Contains(t, err.Error(), "1000000001")
}

func TestParseRevenueBand(t *testing.T) {
	t.Parallel()

	b, err := ParseRevenueBand("100m")
	require.NoError(t, err)
	assert.Equal(t, Band100M, b)

	_, err = ParseRevenueBand("2B")
	assert.Equal(t, KindValidation, ErrorKind(err))
}

func TestBandForBounds(t *testing.T) {
	t.Parallel()

	b, ok := BandForBounds(100_000_000, 500_000_000)
	assert.True(t, ok)
	assert.Equal(t, Band500M, b)

	_, ok = BandForBounds(0, 20_000_000)
	assert.False(t, ok)
}

func TestNewDistributionParams(t *testing.T) {
	t.Parallel()

	p := NewDistributionParams(2.0, 100_000)
	assert.InDelta(t, 10_000, p.CostStd, 1e-9)
	assert.NoError(t, p.Validate())

	bad := NewDistributionParams(0, 100)
	err := bad.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "lambda")
}

func TestCompanyProfile_Validate(t *testing.T) {
	t.Parallel()

	assert.NoError(t, CompanyProfile{ID: "C1", Revenue: 50e6, Industry: IndustryFinance}.Validate())
	assert.Error(t, CompanyProfile{Revenue: 50e6, Industry: IndustryFinance}.Validate())
	assert.Error(t, CompanyProfile{ID: "C1", Revenue: 50e6, Industry: "mining"}.Validate())
	assert.Equal(t, KindLookup, ErrorKind(CompanyProfile{ID: "C1", Revenue: 2e9, Industry: IndustryRetail}.Validate()))
}

func TestErrorKind_ThroughWrapping(t *testing.T) {
	t.Parallel()

	base := errors.New("disk full")
	storage := NewStorageError("persist runs", base)

	assert.Equal(t, KindStorage, ErrorKind(eris.Wrap(storage, "batch: persist")))
	assert.True(t, IsStorage(storage))
	assert.ErrorIs(t, storage, base)
	assert.True(t, IsNotFound(&NotFoundError{Resource: "company", ID: "C9"}))
	assert.Equal(t, KindInternal, ErrorKind(errors.New("boom")))
	assert.Equal(t, "", ErrorKind(nil))
	assert.Nil(t, NewStorageError("noop", nil))
}

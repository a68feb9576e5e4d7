package settlement

import (
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"housesplit/internal/core"
)

func shares(pcts ...float64) []core.Share {
	out := make([]core.Share, len(pcts))
	for i, p := range pcts {
		out[i] = core.Share{PersonID: int64(i + 1), Percent: core.PercentFromFloat(p)}
	}
	return out
}

func percents(in []core.Share) []core.Percent {
	out := make([]core.Percent, len(in))
	for i, s := range in {
		out[i] = s.Percent
	}
	return out
}

func TestNormalizeShares(t *testing.T) {
	tests := []struct {
		name    string
		in      []core.Share
		want    []core.Percent
		wantErr error
	}{
		{
			name: "already normalized is unchanged",
			in:   shares(50, 30, 20),
			want: []core.Percent{5000, 3000, 2000},
		},
		{
			name: "sum 99 is rescaled and residual goes to first largest",
			in:   shares(33, 33, 33),
			want: []core.Percent{3340, 3330, 3330},
		},
		{
			name: "within tolerance is only rounded and corrected",
			in:   shares(33.33, 33.33, 33.33),
			want: []core.Percent{3340, 3330, 3330},
		},
		{
			name: "arbitrary weights are rescaled proportionally",
			in:   shares(1, 1, 2),
			want: []core.Percent{2500, 2500, 5000},
		},
		{
			name: "residual lands on the largest share, not the first",
			in:   shares(10, 20, 40),
			want: []core.Percent{1430, 2860, 5710},
		},
		{
			name: "single participant becomes 100",
			in:   shares(7),
			want: []core.Percent{10000},
		},
		{
			name: "zero share participants are kept",
			in:   shares(0, 50, 50),
			want: []core.Percent{0, 5000, 5000},
		},
		{
			name:    "all zero shares cannot be rescaled",
			in:      shares(0, 0),
			wantErr: ErrInvalidShareTotal,
		},
		{
			name:    "negative share is rejected",
			in:      shares(120, -20),
			wantErr: ErrInvalidShareTotal,
		},
		{
			name:    "empty input",
			in:      nil,
			wantErr: ErrInvalidShareTotal,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := NormalizeShares(tt.in)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, percents(got))
			assert.Equal(t, core.FullShare, core.SumPercent(got))
		})
	}
}

func TestNormalizeShares_ManyParticipants(t *testing.T) {
	ids := make([]int64, 150)
	for i := range ids {
		ids[i] = int64(i + 1)
	}

	got, err := NormalizeShares(EqualShares(ids))
	require.NoError(t, err)
	assert.Equal(t, core.FullShare, core.SumPercent(got))
	for _, s := range got {
		assert.GreaterOrEqual(t, s.Percent, core.Percent(60), "person %d", s.PersonID)
		assert.LessOrEqual(t, s.Percent, core.Percent(70), "person %d", s.PersonID)
		assert.Zero(t, s.Percent%core.OneDecimal)
	}
	assert.Equal(t, core.Percent(60), got[0].Percent)
	assert.Equal(t, core.Percent(70), got[149].Percent)

	again, err := NormalizeShares(got)
	require.NoError(t, err)
	assert.Equal(t, got, again)
}

func TestNormalizeShares_DoesNotMutateInput(t *testing.T) {
	in := shares(33, 33, 33)
	_, err := NormalizeShares(in)
	require.NoError(t, err)
	assert.Equal(t, []core.Percent{3300, 3300, 3300}, percents(in))
}

func TestNormalizeShares_Properties(t *testing.T) {
	rng := rand.New(rand.NewSource(42))
	for iter := 0; iter < 500; iter++ {
		n := 1 + rng.Intn(8)
		in := make([]core.Share, n)
		for i := range in {
			in[i] = core.Share{PersonID: int64(i + 1), Percent: core.Percent(1 + rng.Intn(10000))}
		}

		once, err := NormalizeShares(in)
		require.NoError(t, err)
		require.Equal(t, core.FullShare, core.SumPercent(once), "sum must be exactly 100 for %v", in)

		twice, err := NormalizeShares(once)
		require.NoError(t, err)
		require.Equal(t, once, twice, "normalization must be idempotent for %v", in)

		for i := range once {
			require.Equal(t, in[i].PersonID, once[i].PersonID, "order must be preserved")
			require.GreaterOrEqual(t, once[i].Percent, core.Percent(0))
		}
	}
}

func TestCorrectResidual(t *testing.T) {
	// The save path keeps whole shares: the full residual of 1.0 goes
	// to the first of the tied largest shares.
	got, err := CorrectResidual(shares(33, 33, 33))
	require.NoError(t, err)
	assert.Equal(t, []core.Percent{3400, 3300, 3300}, percents(got))
	assert.Equal(t, core.FullShare, core.SumPercent(got))

	got, err = CorrectResidual(shares(60, 40.05))
	require.NoError(t, err)
	assert.Equal(t, []core.Percent{5995, 4005}, percents(got))

	got, err = CorrectResidual(shares(50, 49.99))
	require.NoError(t, err)
	assert.Equal(t, []core.Percent{5000, 4999}, percents(got), "a 0.01 residual is within tolerance")

	_, err = CorrectResidual(shares(0))
	assert.ErrorIs(t, err, ErrInvalidShareTotal)
}

func TestEqualShares(t *testing.T) {
	assert.Nil(t, EqualShares(nil))

	got := EqualShares([]int64{4, 9, 2})
	assert.Equal(t, []core.Percent{3333, 3333, 3333}, percents(got))

	normalized, err := NormalizeShares(got)
	require.NoError(t, err)
	assert.Equal(t, []core.Percent{3340, 3330, 3330}, percents(normalized))
	assert.Equal(t, []int64{4, 9, 2}, []int64{normalized[0].PersonID, normalized[1].PersonID, normalized[2].PersonID})
}

package sample

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wonny/rgm/internal/contracts"
)

func TestGenerate_Deterministic(t *testing.T) {
	a := Generate(LadderSKUs(), DefaultOptions())
	b := Generate(LadderSKUs(), DefaultOptions())
	assert.Equal(t, a, b)

	opts := DefaultOptions()
	opts.Seed = 7
	c := Generate(LadderSKUs(), opts)
	assert.NotEqual(t, a.Observations[0].Price, c.Observations[0].Price)
}

func TestGenerate_Shape(t *testing.T) {
	ds := Generate(LadderSKUs(), DefaultOptions())

	require.Len(t, ds.Products, 3)
	assert.Len(t, ds.Observations, 3*104)
	assert.Equal(t, []string{"COLA-2", "COLA-4", "COLA-8"}, ds.SKUs())
	assert.Equal(t, -1.6, ds.Elasticities["COLA-8"])

	from, to := ds.Period()
	assert.Equal(t, DefaultOptions().Start, from)
	assert.Equal(t, DefaultOptions().Start.AddDate(0, 0, 7*103), to)

	promoted := 0
	for _, o := range ds.Observations {
		require.True(t, o.HasRequiredFields())
		if o.IsPromoted() {
			promoted++
			require.Len(t, o.Promotions, 1)
			assert.Contains(t, Mechanics, o.Promotions[0].Mechanic)
			assert.Equal(t, o.DiscountDepth, o.Promotions[0].DiscountDepth)
		}
	}
	assert.Greater(t, promoted, 10)
	assert.Less(t, promoted, 100)
}

func TestLadderConstraints_Valid(t *testing.T) {
	cfg := contracts.DefaultScenarioConfig()
	cfg.Constraints = LadderConstraints()
	assert.NoError(t, cfg.Validate())
}

package brackets

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/courtflow/tournament-engine/models"
)

func pairKey(a, b int) string {
	if a > b {
		a, b = b, a
	}
	return fmt.Sprintf("%d-%d", a, b)
}

func TestPoolRoundRobinSinglePoolEveryPairOnce(t *testing.T) {
	g := NewPoolRoundRobinGenerator()
	encounters, err := g.GenerateTemplate(context.Background(), GenerateTemplateParams{
		Division:  &models.Division{ID: 1},
		SlotCount: 6,
		PoolCount: 1,
	})
	require.NoError(t, err)
	require.Len(t, encounters, 15) // C(6,2)

	seen := map[string]bool{}
	for _, e := range encounters {
		require.NotNil(t, e.Unit1Number)
		require.NotNil(t, e.Unit2Number)
		assert.Equal(t, models.RoundPool, e.RoundType)
		require.NotNil(t, e.PoolNumber)
		assert.Equal(t, 1, *e.PoolNumber)

		key := pairKey(*e.Unit1Number, *e.Unit2Number)
		assert.False(t, seen[key], "pair %s generated twice", key)
		seen[key] = true
	}
	assert.Len(t, seen, 15)
}

func TestPoolRoundRobinOddPoolUsesGhost(t *testing.T) {
	g := NewPoolRoundRobinGenerator()
	encounters, err := g.GenerateTemplate(context.Background(), GenerateTemplateParams{
		Division:  &models.Division{ID: 1},
		SlotCount: 5,
		PoolCount: 1,
	})
	require.NoError(t, err)
	require.Len(t, encounters, 10) // C(5,2)

	// Каждый слот отдыхает по одному разу: в каждом из 5 кругов по 2 встречи.
	perRound := map[int]int{}
	for _, e := range encounters {
		perRound[e.RoundNumber]++
	}
	require.Len(t, perRound, 5)
	for round, count := range perRound {
		assert.Equal(t, 2, count, "round %d", round)
	}
}

func TestPoolRoundRobinTwoPools(t *testing.T) {
	g := NewPoolRoundRobinGenerator()
	encounters, err := g.GenerateTemplate(context.Background(), GenerateTemplateParams{
		Division:  &models.Division{ID: 1},
		SlotCount: 8,
		PoolCount: 2,
	})
	require.NoError(t, err)
	require.Len(t, encounters, 12) // 2 пула по C(4,2)

	byPool := map[int][]*models.Encounter{}
	for _, e := range encounters {
		require.NotNil(t, e.PoolNumber)
		byPool[*e.PoolNumber] = append(byPool[*e.PoolNumber], e)
	}
	require.Len(t, byPool, 2)
	assert.Len(t, byPool[1], 6)
	assert.Len(t, byPool[2], 6)

	// Слоты раздаются по пулам поочерёдно, встречи не пересекают границу пула.
	for _, e := range byPool[1] {
		assert.Equal(t, 1, *e.Unit1Number%2)
		assert.Equal(t, 1, *e.Unit2Number%2)
	}
	for _, e := range byPool[2] {
		assert.Equal(t, 0, *e.Unit1Number%2)
		assert.Equal(t, 0, *e.Unit2Number%2)
	}
}

func TestPoolRoundRobinRejectsOversplitPools(t *testing.T) {
	g := NewPoolRoundRobinGenerator()
	_, err := g.GenerateTemplate(context.Background(), GenerateTemplateParams{
		Division:  &models.Division{ID: 1},
		SlotCount: 5,
		PoolCount: 3,
	})
	assert.Error(t, err)
}

package brackets

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/courtflow/tournament-engine/models"
)

func TestSeedOrder(t *testing.T) {
	assert.Equal(t, []int{1, 2}, seedOrder(2))
	assert.Equal(t, []int{1, 4, 2, 3}, seedOrder(4))
	assert.Equal(t, []int{1, 8, 4, 5, 2, 7, 3, 6}, seedOrder(8))
}

func TestSingleEliminationTemplateEightSlots(t *testing.T) {
	g := NewSingleEliminationGenerator()
	encounters, err := g.GenerateTemplate(context.Background(), GenerateTemplateParams{
		Division:  &models.Division{ID: 1},
		SlotCount: 8,
	})
	require.NoError(t, err)
	require.Len(t, encounters, 7)

	byRound := map[int][]*models.Encounter{}
	for _, e := range encounters {
		byRound[e.RoundNumber] = append(byRound[e.RoundNumber], e)
	}
	assert.Len(t, byRound[1], 4)
	assert.Len(t, byRound[2], 2)
	assert.Len(t, byRound[3], 1)

	for _, e := range byRound[1] {
		assert.Equal(t, models.RoundBracket, e.RoundType)
		require.NotNil(t, e.Unit1Number)
		require.NotNil(t, e.Unit2Number)
	}
	// Слоты 1 и 2 посеяны в разные половины сетки.
	assert.Equal(t, 1, *byRound[1][0].Unit1Number)
	assert.Equal(t, 8, *byRound[1][0].Unit2Number)
	assert.Equal(t, 2, *byRound[1][2].Unit1Number)

	for _, e := range byRound[2] {
		assert.Equal(t, models.RoundBracket, e.RoundType)
		assert.Nil(t, e.Unit1Number)
		assert.Nil(t, e.Unit2Number)
	}

	final := byRound[3][0]
	assert.Equal(t, models.RoundFinal, final.RoundType)
	assert.Equal(t, 1, final.BracketPosition)

	// Все слоты первого круга уникальны и покрывают 1..8.
	seen := map[int]bool{}
	for _, e := range byRound[1] {
		seen[*e.Unit1Number] = true
		seen[*e.Unit2Number] = true
	}
	assert.Len(t, seen, 8)
}

func TestSingleEliminationTemplateFiveSlots(t *testing.T) {
	g := NewSingleEliminationGenerator()
	encounters, err := g.GenerateTemplate(context.Background(), GenerateTemplateParams{
		Division:  &models.Division{ID: 1},
		SlotCount: 5,
	})
	require.NoError(t, err)
	require.Len(t, encounters, 7) // сетка округляется до 8

	emptySides := 0
	for _, e := range encounters {
		if e.RoundNumber != 1 {
			continue
		}
		// Ни одна пара первого круга не пуста с обеих сторон.
		assert.False(t, e.Unit1Number == nil && e.Unit2Number == nil,
			"position %d has no slots", e.BracketPosition)
		if e.Unit1Number == nil || e.Unit2Number == nil {
			emptySides++
		}
	}
	assert.Equal(t, 3, emptySides)
}

func TestSingleEliminationTemplateWithThirdPlace(t *testing.T) {
	g := NewSingleEliminationGenerator()
	encounters, err := g.GenerateTemplate(context.Background(), GenerateTemplateParams{
		Division:       &models.Division{ID: 1},
		SlotCount:      4,
		WithThirdPlace: true,
	})
	require.NoError(t, err)
	require.Len(t, encounters, 4)

	last := encounters[len(encounters)-1]
	assert.Equal(t, models.RoundThirdPlace, last.RoundType)
	assert.Equal(t, 2, last.RoundNumber)
}

func TestSingleEliminationTemplateRejectsTooFewSlots(t *testing.T) {
	g := NewSingleEliminationGenerator()
	_, err := g.GenerateTemplate(context.Background(), GenerateTemplateParams{
		Division:  &models.Division{ID: 1},
		SlotCount: 1,
	})
	assert.Error(t, err)
}

func TestSingleEliminationEncounterNumbersAreSequential(t *testing.T) {
	g := NewSingleEliminationGenerator()
	encounters, err := g.GenerateTemplate(context.Background(), GenerateTemplateParams{
		Division:  &models.Division{ID: 1},
		SlotCount: 16,
	})
	require.NoError(t, err)
	for i, e := range encounters {
		assert.Equal(t, i+1, e.EncounterNumber)
	}
}

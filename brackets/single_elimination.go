package brackets

import (
	"context"
	"errors"
	"fmt"
	"math"

	"github.com/courtflow/tournament-engine/models"
)

type SingleEliminationGenerator struct {
}

func NewSingleEliminationGenerator() TemplateGenerator {
	return &SingleEliminationGenerator{}
}

func (g *SingleEliminationGenerator) GetName() string {
	return "SingleElimination"
}

// seedOrder раскладывает номера слотов полной сетки так, чтобы слоты 1 и 2
// могли встретиться только в финале. Для size=8: 1,8,4,5,2,7,3,6.
func seedOrder(size int) []int {
	order := []int{1}
	for len(order) < size {
		next := make([]int, 0, len(order)*2)
		for _, s := range order {
			next = append(next, s, len(order)*2+1-s)
		}
		order = next
	}
	return order
}

// GenerateTemplate строит полную сетку single elimination по номерам слотов.
// Первый круг спаривает слоты в порядке посева. Слоты сверх SlotCount
// остаются пустыми, такие встречи превращаются в bye при завершении
// жеребьёвки: сетка округляется до степени двойки, и посев гарантирует
// не больше одного пустого слота на пару. Последующие круги создаются без
// сторон, их заполняет продвижение победителей.
func (g *SingleEliminationGenerator) GenerateTemplate(ctx context.Context, params GenerateTemplateParams) ([]*models.Encounter, error) {
	n := params.SlotCount
	if n < 2 {
		return nil, errors.New("not enough slots to generate a single elimination bracket (minimum 2)")
	}
	if params.Division == nil {
		return nil, errors.New("division is required to generate a bracket")
	}

	numRounds := int(math.Ceil(math.Log2(float64(n))))
	bracketSize := 1 << uint(numRounds)
	seeds := seedOrder(bracketSize)

	encounters := make([]*models.Encounter, 0, bracketSize)
	encounterNumber := 0

	for r := 1; r <= numRounds; r++ {
		encountersInRound := bracketSize >> uint(r)
		roundType := models.RoundBracket
		if r == numRounds {
			roundType = models.RoundFinal
		}

		for pos := 1; pos <= encountersInRound; pos++ {
			encounterNumber++
			e := &models.Encounter{
				DivisionID:      params.Division.ID,
				PhaseID:         params.PhaseID,
				RoundType:       roundType,
				RoundNumber:     r,
				BracketPosition: pos,
				EncounterNumber: encounterNumber,
				Status:          models.EncounterScheduled,
			}

			if r == 1 {
				slot1 := seeds[2*(pos-1)]
				slot2 := seeds[2*pos-1]
				if slot1 <= n {
					e.Unit1Number = &slot1
				}
				if slot2 <= n {
					e.Unit2Number = &slot2
				}
				if e.Unit1Number == nil && e.Unit2Number == nil {
					return nil, fmt.Errorf("empty opening pair at position %d for %d slots", pos, n)
				}
			}

			encounters = append(encounters, e)
		}
	}

	if params.WithThirdPlace && numRounds >= 2 {
		encounterNumber++
		encounters = append(encounters, &models.Encounter{
			DivisionID:      params.Division.ID,
			PhaseID:         params.PhaseID,
			RoundType:       models.RoundThirdPlace,
			RoundNumber:     numRounds,
			BracketPosition: 2,
			EncounterNumber: encounterNumber,
			Status:          models.EncounterScheduled,
		})
	}

	return encounters, nil
}

package brackets

import (
	"context"
	"errors"
	"fmt"

	"github.com/courtflow/tournament-engine/models"
)

type PoolRoundRobinGenerator struct{}

func NewPoolRoundRobinGenerator() TemplateGenerator {
	return &PoolRoundRobinGenerator{}
}

func (g *PoolRoundRobinGenerator) GetName() string {
	return "PoolRoundRobin"
}

// GenerateTemplate создаёт круговые встречи по пулам. Слоты 1..SlotCount
// раздаются по пулам последовательно, внутри пула пары строятся методом
// круга: при нечётном размере добавляется фиктивный слот, встречи с ним
// не создаются.
func (g *PoolRoundRobinGenerator) GenerateTemplate(ctx context.Context, params GenerateTemplateParams) ([]*models.Encounter, error) {
	n := params.SlotCount
	if n < 2 {
		return nil, errors.New("not enough slots for pool play (minimum 2)")
	}
	if params.Division == nil {
		return nil, errors.New("division is required to generate pools")
	}

	poolCount := params.PoolCount
	if poolCount < 1 {
		poolCount = 1
	}
	if poolCount > n/2 {
		return nil, fmt.Errorf("%d pools cannot hold %d slots with at least 2 per pool", poolCount, n)
	}

	pools := make([][]int, poolCount)
	for slot := 1; slot <= n; slot++ {
		idx := (slot - 1) % poolCount
		pools[idx] = append(pools[idx], slot)
	}

	encounters := make([]*models.Encounter, 0, n*(n-1)/2)
	encounterNumber := 0

	for poolIdx, slots := range pools {
		poolNumber := poolIdx + 1

		// Метод круга: первый слот фиксирован, остальные вращаются.
		rotation := make([]int, len(slots))
		copy(rotation, slots)
		if len(rotation)%2 != 0 {
			rotation = append(rotation, 0) // фиктивный слот
		}
		size := len(rotation)
		rounds := size - 1

		for r := 1; r <= rounds; r++ {
			position := 0
			for i := 0; i < size/2; i++ {
				s1 := rotation[i]
				s2 := rotation[size-1-i]
				if s1 == 0 || s2 == 0 {
					continue
				}
				position++
				encounterNumber++
				slot1, slot2 := s1, s2
				pn := poolNumber
				encounters = append(encounters, &models.Encounter{
					DivisionID:      params.Division.ID,
					PhaseID:         params.PhaseID,
					RoundType:       models.RoundPool,
					RoundNumber:     r,
					BracketPosition: position,
					EncounterNumber: encounterNumber,
					PoolNumber:      &pn,
					Unit1Number:     &slot1,
					Unit2Number:     &slot2,
					Status:          models.EncounterScheduled,
				})
			}

			// Вращение против часовой: последний встаёт за фиксированным.
			last := rotation[size-1]
			copy(rotation[2:], rotation[1:size-1])
			rotation[1] = last
		}
	}

	return encounters, nil
}

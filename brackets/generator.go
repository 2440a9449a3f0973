package brackets

import (
	"context"

	"github.com/courtflow/tournament-engine/models"
)

// GenerateTemplateParams описывает заготовку сетки для дивизиона.
// SlotCount — количество слотов жеребьёвки, стороны встреч первого круга
// заполняются номерами слотов, а не юнитами.
type GenerateTemplateParams struct {
	Division  *models.Division
	PhaseID   *int
	SlotCount int

	// Только для single elimination.
	WithThirdPlace bool

	// Только для pool play.
	PoolCount int
}

type TemplateGenerator interface {
	GenerateTemplate(ctx context.Context, params GenerateTemplateParams) ([]*models.Encounter, error)

	GetName() string
}

package services

import "errors"

// Общие ошибки, используемые в разных сервисах и маппинге HTTP.
var (
	// Ресурс не найден
	ErrEventNotFound     = errors.New("event not found")
	ErrDivisionNotFound  = errors.New("division not found")
	ErrPhaseNotFound     = errors.New("phase not found")
	ErrEncounterNotFound = errors.New("encounter not found")
	ErrUnitNotFound      = errors.New("unit not found")
	ErrMatchNotFound     = errors.New("encounter match not found")
	ErrGameNotFound      = errors.New("game not found")

	// Ошибки валидации и бизнес-правил
	ErrRegistrationStillOpen = errors.New("registration is still open for this event")
	ErrScheduleFinalized     = errors.New("division schedule is already finalized")
	ErrNoUnitsToDraw         = errors.New("division has no eligible units to draw")
	ErrNoCourtsAvailable     = errors.New("no courts available for assignment")
	ErrNoEncountersToAssign  = errors.New("no encounters to assign")
	ErrPhaseStartTimeMissing = errors.New("phase has no start time configured")
	ErrGameScoreInvalid      = errors.New("game score is invalid")
	ErrUnknownTemplateKind   = errors.New("unknown bracket template kind")
	ErrNotEnoughSlots        = errors.New("not enough slots to generate a template")

	// Ошибки конфликтов
	ErrNoDrawingInProgress   = errors.New("no drawing is in progress for this division")
	ErrDrawingInProgress     = errors.New("a drawing is already in progress for this division")
	ErrNoUnitsRemaining      = errors.New("no units remaining to draw")
	ErrUnitsNotFullyDrawn    = errors.New("not all eligible units have been drawn")
	ErrDrawingStillActive    = errors.New("a division drawing is still in progress for this event")
	ErrDrawingAlreadyDone    = errors.New("drawing has already been completed for this division")
	ErrEventStatusConflict   = errors.New("event status does not allow this operation")
	ErrTemplateAlreadyExists = errors.New("division already has generated encounters")

	// Ошибки авторизации
	ErrForbiddenOperation = errors.New("operation not allowed for the current user")
)

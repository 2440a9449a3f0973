package services

import (
	"errors"
	"time"

	"github.com/courtflow/tournament-engine/models"
	"github.com/courtflow/tournament-engine/repositories"
)

// Actor — вызывающая сторона операции (из JWT-клеймов запроса).
type Actor struct {
	UserID int
	Role   string
}

const RoleAdmin = "admin"

// canManage разрешает операцию организатору турнира или администратору.
func (a Actor) canManage(event *models.Event) bool {
	return a.Role == RoleAdmin || (event != nil && event.OrganizerID == a.UserID)
}

// defaultScheduleStart — старт расписания по умолчанию: 08:00 локального
// времени даты начала турнира.
func defaultScheduleStart(eventStart time.Time) time.Time {
	return time.Date(eventStart.Year(), eventStart.Month(), eventStart.Day(),
		8, 0, 0, 0, eventStart.Location())
}

func mapEventRepoError(err error) error {
	if errors.Is(err, repositories.ErrEventNotFound) {
		return ErrEventNotFound
	}
	return err
}

func mapDivisionRepoError(err error) error {
	if errors.Is(err, repositories.ErrDivisionNotFound) {
		return ErrDivisionNotFound
	}
	return err
}

func mapPhaseRepoError(err error) error {
	if errors.Is(err, repositories.ErrPhaseNotFound) {
		return ErrPhaseNotFound
	}
	return err
}

func mapEncounterRepoError(err error) error {
	if errors.Is(err, repositories.ErrEncounterNotFound) {
		return ErrEncounterNotFound
	}
	return err
}

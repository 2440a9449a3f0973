package handlers

import (
	"net/http"
	"time"

	"github.com/courtflow/tournament-engine/services"
)

type SchedulingHandler struct {
	schedulingService services.SchedulingService
}

func NewSchedulingHandler(schedulingService services.SchedulingService) *SchedulingHandler {
	return &SchedulingHandler{schedulingService: schedulingService}
}

type assignCourtsRequest struct {
	StartTime           *time.Time `json:"start_time,omitempty"`
	GameDurationMinutes *int       `json:"game_duration_minutes,omitempty"`
	ClearExisting       bool       `json:"clear_existing"`
}

// AssignDivisionCourts распределяет встречи дивизиона по кортам.
// POST /divisions/{divisionID}/schedule
func (h *SchedulingHandler) AssignDivisionCourts(w http.ResponseWriter, r *http.Request) {
	divisionID, err := urlParamInt(r, "divisionID")
	if err != nil {
		badRequestResponse(w, r, err)
		return
	}

	var req assignCourtsRequest
	if r.ContentLength > 0 {
		if err := readJSON(w, r, &req); err != nil {
			badRequestResponse(w, r, err)
			return
		}
	}

	result, err := h.schedulingService.AssignDivisionCourts(r.Context(), divisionID, services.ScheduleOptions{
		StartTime:           req.StartTime,
		GameDurationMinutes: req.GameDurationMinutes,
		ClearExisting:       req.ClearExisting,
	})
	if err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, jsonResponse{"schedule": result}, nil)
}

// AssignPhaseCourts распределяет встречи одной фазы от её стартового времени.
// POST /phases/{phaseID}/schedule
func (h *SchedulingHandler) AssignPhaseCourts(w http.ResponseWriter, r *http.Request) {
	phaseID, err := urlParamInt(r, "phaseID")
	if err != nil {
		badRequestResponse(w, r, err)
		return
	}

	result, err := h.schedulingService.AssignPhaseCourts(r.Context(), phaseID)
	if err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, jsonResponse{"schedule": result}, nil)
}

// ClearAssignments снимает назначения кортов с незавершённых встреч.
// DELETE /divisions/{divisionID}/schedule
func (h *SchedulingHandler) ClearAssignments(w http.ResponseWriter, r *http.Request) {
	divisionID, err := urlParamInt(r, "divisionID")
	if err != nil {
		badRequestResponse(w, r, err)
		return
	}

	cleared, err := h.schedulingService.ClearAssignments(r.Context(), divisionID)
	if err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, jsonResponse{"cleared": cleared}, nil)
}

// RecalculateTimes пересчитывает времена фазы, сохраняя привязку к кортам.
// POST /phases/{phaseID}/schedule/recalculate
func (h *SchedulingHandler) RecalculateTimes(w http.ResponseWriter, r *http.Request) {
	phaseID, err := urlParamInt(r, "phaseID")
	if err != nil {
		badRequestResponse(w, r, err)
		return
	}

	result, err := h.schedulingService.RecalculateTimes(r.Context(), phaseID)
	if err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, jsonResponse{"schedule": result}, nil)
}

type assignEncounterRequest struct {
	CourtID   int       `json:"court_id"`
	StartTime time.Time `json:"start_time"`
}

// AssignSingleEncounter ставит одну встречу на корт и время вручную.
// POST /encounters/{encounterID}/assign
func (h *SchedulingHandler) AssignSingleEncounter(w http.ResponseWriter, r *http.Request) {
	encounterID, err := urlParamInt(r, "encounterID")
	if err != nil {
		badRequestResponse(w, r, err)
		return
	}

	var req assignEncounterRequest
	if err := readJSON(w, r, &req); err != nil {
		badRequestResponse(w, r, err)
		return
	}

	if err := h.schedulingService.AssignSingleEncounter(r.Context(), encounterID, req.CourtID, req.StartTime); err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, jsonResponse{"assigned": true}, nil)
}

// ListAvailableCourts возвращает корты, пригодные для дивизиона или фазы.
// GET /divisions/{divisionID}/courts?phase_id=N
func (h *SchedulingHandler) ListAvailableCourts(w http.ResponseWriter, r *http.Request) {
	divisionID, err := urlParamInt(r, "divisionID")
	if err != nil {
		badRequestResponse(w, r, err)
		return
	}

	var phaseID *int
	if raw := r.URL.Query().Get("phase_id"); raw != "" {
		id, err := queryParamInt(raw, "phase_id")
		if err != nil {
			badRequestResponse(w, r, err)
			return
		}
		phaseID = &id
	}

	courts, err := h.schedulingService.ListAvailableCourts(r.Context(), divisionID, phaseID)
	if err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, jsonResponse{"courts": courts}, nil)
}

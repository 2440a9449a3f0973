package handlers

import (
	"net/http"

	"github.com/courtflow/tournament-engine/services"
)

type ScoreHandler struct {
	progressionService services.ProgressionService
}

func NewScoreHandler(progressionService services.ProgressionService) *ScoreHandler {
	return &ScoreHandler{progressionService: progressionService}
}

type gameScoreRequest struct {
	GameNumber  int  `json:"game_number"`
	Unit1Points int  `json:"unit1_points"`
	Unit2Points int  `json:"unit2_points"`
	Finished    bool `json:"finished"`
}

// RecordGameScore записывает счёт гейма, затем обрабатывает встречу целиком:
// победа в серии, статистика и продвижение по сетке происходят в этом же вызове.
// POST /matches/{matchID}/games
func (h *ScoreHandler) RecordGameScore(w http.ResponseWriter, r *http.Request) {
	matchID, err := urlParamInt(r, "matchID")
	if err != nil {
		badRequestResponse(w, r, err)
		return
	}

	var req gameScoreRequest
	if err := readJSON(w, r, &req); err != nil {
		badRequestResponse(w, r, err)
		return
	}
	if req.GameNumber <= 0 {
		badRequestResponse(w, r, services.ErrGameScoreInvalid)
		return
	}

	result, err := h.progressionService.RecordGameScore(r.Context(), matchID, req.GameNumber, services.GameScoreInput{
		Unit1Points: req.Unit1Points,
		Unit2Points: req.Unit2Points,
		Finished:    req.Finished,
	})
	if err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, jsonResponse{"progression": result}, nil)
}

// ProcessEncounterResult переоценивает встречу по уже записанным геймам.
// POST /encounters/{encounterID}/process
func (h *ScoreHandler) ProcessEncounterResult(w http.ResponseWriter, r *http.Request) {
	encounterID, err := urlParamInt(r, "encounterID")
	if err != nil {
		badRequestResponse(w, r, err)
		return
	}

	result, err := h.progressionService.ProcessEncounterResult(r.Context(), encounterID)
	if err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, jsonResponse{"progression": result}, nil)
}

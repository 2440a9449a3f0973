package handlers

import (
	"net/http"

	"github.com/courtflow/tournament-engine/middleware"
	"github.com/courtflow/tournament-engine/services"
)

type DrawingHandler struct {
	drawingService services.DrawingService
	eventService   services.EventService
}

func NewDrawingHandler(drawingService services.DrawingService, eventService services.EventService) *DrawingHandler {
	return &DrawingHandler{
		drawingService: drawingService,
		eventService:   eventService,
	}
}

// StartDrawingMode переводит турнир в режим жеребьёвки.
// POST /events/{eventID}/drawing/start
func (h *DrawingHandler) StartDrawingMode(w http.ResponseWriter, r *http.Request) {
	eventID, err := urlParamInt(r, "eventID")
	if err != nil {
		badRequestResponse(w, r, err)
		return
	}
	actor, err := middleware.ActorFromContext(r.Context())
	if err != nil {
		unauthorizedResponse(w, r, err.Error())
		return
	}

	if err := h.eventService.StartDrawingMode(r.Context(), eventID, actor); err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, jsonResponse{"status": "drawing"}, nil)
}

// EndDrawingMode возвращает турнир в обычный режим.
// POST /events/{eventID}/drawing/end
func (h *DrawingHandler) EndDrawingMode(w http.ResponseWriter, r *http.Request) {
	eventID, err := urlParamInt(r, "eventID")
	if err != nil {
		badRequestResponse(w, r, err)
		return
	}
	actor, err := middleware.ActorFromContext(r.Context())
	if err != nil {
		unauthorizedResponse(w, r, err.Error())
		return
	}

	if err := h.eventService.EndDrawingMode(r.Context(), eventID, actor); err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, jsonResponse{"status": "running"}, nil)
}

// StartDrawing открывает сессию жеребьёвки дивизиона.
// POST /divisions/{divisionID}/drawing/start
func (h *DrawingHandler) StartDrawing(w http.ResponseWriter, r *http.Request) {
	divisionID, err := urlParamInt(r, "divisionID")
	if err != nil {
		badRequestResponse(w, r, err)
		return
	}
	actor, err := middleware.ActorFromContext(r.Context())
	if err != nil {
		unauthorizedResponse(w, r, err.Error())
		return
	}

	snapshot, err := h.drawingService.StartDrawing(r.Context(), divisionID, actor)
	if err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, jsonResponse{"drawing": snapshot}, nil)
}

// DrawNextUnit вытягивает следующий юнит на очередной слот.
// POST /divisions/{divisionID}/drawing/next
func (h *DrawingHandler) DrawNextUnit(w http.ResponseWriter, r *http.Request) {
	divisionID, err := urlParamInt(r, "divisionID")
	if err != nil {
		badRequestResponse(w, r, err)
		return
	}
	actor, err := middleware.ActorFromContext(r.Context())
	if err != nil {
		unauthorizedResponse(w, r, err.Error())
		return
	}

	drawn, err := h.drawingService.DrawNextUnit(r.Context(), divisionID, actor)
	if err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, jsonResponse{"drawn": drawn}, nil)
}

// CompleteDrawing фиксирует результат жеребьёвки в сетке.
// POST /divisions/{divisionID}/drawing/complete
func (h *DrawingHandler) CompleteDrawing(w http.ResponseWriter, r *http.Request) {
	divisionID, err := urlParamInt(r, "divisionID")
	if err != nil {
		badRequestResponse(w, r, err)
		return
	}
	actor, err := middleware.ActorFromContext(r.Context())
	if err != nil {
		unauthorizedResponse(w, r, err.Error())
		return
	}

	result, err := h.drawingService.CompleteDrawing(r.Context(), divisionID, actor)
	if err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, jsonResponse{"result": result}, nil)
}

// CancelDrawing сбрасывает жеребьёвку дивизиона. Повторный вызов безопасен.
// POST /divisions/{divisionID}/drawing/cancel
func (h *DrawingHandler) CancelDrawing(w http.ResponseWriter, r *http.Request) {
	divisionID, err := urlParamInt(r, "divisionID")
	if err != nil {
		badRequestResponse(w, r, err)
		return
	}
	actor, err := middleware.ActorFromContext(r.Context())
	if err != nil {
		unauthorizedResponse(w, r, err.Error())
		return
	}

	result, err := h.drawingService.CancelDrawing(r.Context(), divisionID, actor)
	if err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, jsonResponse{"result": result}, nil)
}

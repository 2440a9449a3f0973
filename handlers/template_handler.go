package handlers

import (
	"net/http"

	"github.com/courtflow/tournament-engine/middleware"
	"github.com/courtflow/tournament-engine/services"
)

type TemplateHandler struct {
	templateService services.TemplateService
}

func NewTemplateHandler(templateService services.TemplateService) *TemplateHandler {
	return &TemplateHandler{templateService: templateService}
}

type generateTemplateRequest struct {
	Kind           string `json:"kind"`
	PhaseID        *int   `json:"phase_id,omitempty"`
	SlotCount      int    `json:"slot_count"`
	WithThirdPlace bool   `json:"with_third_place"`
	PoolCount      int    `json:"pool_count"`
}

// GenerateTemplate создаёт скелет сетки дивизиона по номерам слотов.
// POST /divisions/{divisionID}/template
func (h *TemplateHandler) GenerateTemplate(w http.ResponseWriter, r *http.Request) {
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

	var req generateTemplateRequest
	if err := readJSON(w, r, &req); err != nil {
		badRequestResponse(w, r, err)
		return
	}

	encounters, err := h.templateService.GenerateTemplate(r.Context(), divisionID, actor, services.GenerateTemplateOptions{
		Kind:           req.Kind,
		PhaseID:        req.PhaseID,
		SlotCount:      req.SlotCount,
		WithThirdPlace: req.WithThirdPlace,
		PoolCount:      req.PoolCount,
	})
	if err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}

	writeJSON(w, http.StatusCreated, jsonResponse{"encounters": encounters}, nil)
}

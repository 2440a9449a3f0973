package routes

import (
	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"github.com/courtflow/tournament-engine/handlers"
	"github.com/courtflow/tournament-engine/middleware"
)

func SetupRoutes(
	router *chi.Mux,
	jwtSecret string,
	drawingHandler *handlers.DrawingHandler,
	schedulingHandler *handlers.SchedulingHandler,
	scoreHandler *handlers.ScoreHandler,
	templateHandler *handlers.TemplateHandler,
	webSocketHandler *handlers.WebSocketHandler,
) {
	router.Use(chiMiddleware.RequestID)
	router.Use(chiMiddleware.Recoverer)
	router.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"*"},
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		AllowCredentials: false,
		MaxAge:           300,
	}))

	// WebSocket-подписки на живые обновления, без авторизации.
	router.Get("/ws/events/{eventID}", webSocketHandler.ServeEventWs)
	router.Get("/ws/divisions/{divisionID}", webSocketHandler.ServeDivisionWs)

	// Управление движком доступно организаторам и администраторам.
	router.Group(func(r chi.Router) {
		r.Use(middleware.Authenticate(jwtSecret))
		r.Use(middleware.Authorize("organizer", "admin"))

		r.Route("/events/{eventID}/drawing", func(r chi.Router) {
			r.Post("/start", drawingHandler.StartDrawingMode)
			r.Post("/end", drawingHandler.EndDrawingMode)
		})

		r.Route("/divisions/{divisionID}", func(r chi.Router) {
			r.Post("/template", templateHandler.GenerateTemplate)

			r.Route("/drawing", func(r chi.Router) {
				r.Post("/start", drawingHandler.StartDrawing)
				r.Post("/next", drawingHandler.DrawNextUnit)
				r.Post("/complete", drawingHandler.CompleteDrawing)
				r.Post("/cancel", drawingHandler.CancelDrawing)
			})

			r.Post("/schedule", schedulingHandler.AssignDivisionCourts)
			r.Delete("/schedule", schedulingHandler.ClearAssignments)
			r.Get("/courts", schedulingHandler.ListAvailableCourts)
		})

		r.Route("/phases/{phaseID}/schedule", func(r chi.Router) {
			r.Post("/", schedulingHandler.AssignPhaseCourts)
			r.Post("/recalculate", schedulingHandler.RecalculateTimes)
		})

		r.Post("/encounters/{encounterID}/assign", schedulingHandler.AssignSingleEncounter)
		r.Post("/encounters/{encounterID}/process", scoreHandler.ProcessEncounterResult)
		r.Post("/matches/{matchID}/games", scoreHandler.RecordGameScore)
	})
}

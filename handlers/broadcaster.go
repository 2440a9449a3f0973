package handlers

import (
	"github.com/courtflow/tournament-engine/brackets"
	"github.com/courtflow/tournament-engine/services"
)

// HubBroadcaster транслирует события движка в комнаты хаба: каждое
// сообщение уходит и в комнату дивизиона, и в комнату турнира.
type HubBroadcaster struct {
	hub *brackets.Hub
}

func NewHubBroadcaster(hub *brackets.Hub) *HubBroadcaster {
	return &HubBroadcaster{hub: hub}
}

var _ services.Broadcaster = (*HubBroadcaster)(nil)

func (b *HubBroadcaster) send(eventID, divisionID int, msgType string, payload interface{}) {
	if divisionID != 0 {
		room := brackets.DivisionRoom(divisionID)
		b.hub.BroadcastToRoom(room, brackets.WebSocketMessage{Type: msgType, Payload: payload, RoomID: room})
	}
	room := brackets.EventRoom(eventID)
	b.hub.BroadcastToRoom(room, brackets.WebSocketMessage{Type: msgType, Payload: payload, RoomID: room})
}

func (b *HubBroadcaster) BroadcastDrawingStarted(eventID, divisionID int, state services.DrawingSnapshot) {
	b.send(eventID, divisionID, "DRAWING_STARTED", state)
}

func (b *HubBroadcaster) BroadcastUnitDrawn(eventID, divisionID int, drawn services.DrawnUnitPayload) {
	b.send(eventID, divisionID, "UNIT_DRAWN", drawn)
}

func (b *HubBroadcaster) BroadcastDrawingCompleted(eventID, divisionID int, result []services.DrawingResultEntry) {
	b.send(eventID, divisionID, "DRAWING_COMPLETED", result)
}

func (b *HubBroadcaster) BroadcastDrawingCancelled(eventID, divisionID int) {
	b.send(eventID, divisionID, "DRAWING_CANCELLED", map[string]int{"division_id": divisionID})
}

func (b *HubBroadcaster) BroadcastBracketProgression(eventID, divisionID int, update services.ProgressionPayload) {
	b.send(eventID, divisionID, "BRACKET_PROGRESSION", update)
}

func (b *HubBroadcaster) BroadcastMatchCompleted(eventID, divisionID int, encounterID int, winnerUnitID int) {
	b.send(eventID, divisionID, "MATCH_COMPLETED", map[string]int{
		"encounter_id":   encounterID,
		"winner_unit_id": winnerUnitID,
	})
}

func (b *HubBroadcaster) BroadcastGameScoreUpdated(eventID, divisionID int, update services.GameScorePayload) {
	b.send(eventID, divisionID, "GAME_SCORE_UPDATED", update)
}

func (b *HubBroadcaster) BroadcastScheduleRefresh(eventID, divisionID int) {
	b.send(eventID, divisionID, "SCHEDULE_REFRESH", map[string]int{
		"event_id":    eventID,
		"division_id": divisionID,
	})
}

package live

import (
	"encoding/json"
	"log"
	"sync"
)

// Event types pushed to tournament rooms.
const (
	EventTeamJoined        = "TEAM_JOINED"
	EventTeamLeft          = "TEAM_LEFT"
	EventTeamWithdrawn     = "TEAM_WITHDRAWN" // playing count fell outside the capacity window
	EventTournamentDeleted = "TOURNAMENT_DELETED"
	EventTournamentUpdated = "TOURNAMENT_UPDATED"
)

type Message struct {
	Type    string      `json:"type"`
	Payload interface{} `json:"payload"`
	RoomID  string      `json:"room_id,omitempty"`
}

// Hub fans tournament events out to websocket clients grouped by
// tournament room. It holds no domain state.
type Hub struct {
	register   chan *Client
	unregister chan *Client
	rooms      map[string]map[*Client]bool
	mu         sync.RWMutex
}

func NewHub() *Hub {
	return &Hub{
		register:   make(chan *Client),
		unregister: make(chan *Client),
		rooms:      make(map[string]map[*Client]bool),
	}
}

func (h *Hub) Run() {
	for {
		select {
		case client := <-h.register:
			h.mu.Lock()
			if _, ok := h.rooms[client.room]; !ok {
				h.rooms[client.room] = make(map[*Client]bool)
			}
			h.rooms[client.room][client] = true
			h.mu.Unlock()

		case client := <-h.unregister:
			h.mu.Lock()
			if clients, ok := h.rooms[client.room]; ok {
				if _, okClient := clients[client]; okClient {
					client.closeSend()
					delete(clients, client)
					if len(clients) == 0 {
						delete(h.rooms, client.room)
					}
				}
			}
			h.mu.Unlock()
		}
	}
}

// BroadcastTournament sends a message to every client subscribed to the
// given tournament. Slow clients are skipped rather than blocked on.
func (h *Hub) BroadcastTournament(tournamentID string, msg Message) {
	msg.RoomID = roomID(tournamentID)

	payload, err := json.Marshal(msg)
	if err != nil {
		log.Printf("live: failed to marshal message for tournament %s: %v", tournamentID, err)
		return
	}

	h.mu.RLock()
	defer h.mu.RUnlock()

	for client := range h.rooms[msg.RoomID] {
		client.mu.Lock()
		if !client.closed {
			select {
			case client.send <- payload:
			default:
			}
		}
		client.mu.Unlock()
	}
}

func roomID(tournamentID string) string {
	return "tournament_" + tournamentID
}

package ws

import "math"

// Stats 连接统计
type Stats struct {
	TotalConnections              int            `json:"total_connections"`
	ActiveRooms                   int            `json:"active_rooms"`
	TotalRooms                    int            `json:"total_rooms"`
	AverageSessionDurationMinutes float64        `json:"average_session_duration_minutes"`
	UsersByRoom                   map[string]int `json:"users_by_room"`
	TypingUsers                   map[string]int `json:"typing_users"`
	DroppedEvents                 int64          `json:"dropped_events"`
}

// Stats 统计快照
func (m *Manager) Stats() Stats {
	m.mu.Lock()
	defer m.mu.Unlock()

	stats := Stats{
		TotalConnections: len(m.sessions),
		TotalRooms:       len(m.rooms),
		UsersByRoom:      make(map[string]int, len(m.rooms)),
		TypingUsers:      make(map[string]int, len(m.typing)),
		DroppedEvents:    m.events.DroppedEventCount(),
	}

	for roomID, members := range m.rooms {
		stats.UsersByRoom[roomID] = len(members)
		if len(members) > 0 {
			stats.ActiveRooms++
		}
	}

	for roomID, users := range m.typing {
		if len(users) > 0 {
			stats.TypingUsers[roomID] = len(users)
		}
	}

	if len(m.sessions) > 0 {
		now := m.now()
		var total float64
		for _, s := range m.sessions {
			total += now.Sub(s.connectedAt).Minutes()
		}
		stats.AverageSessionDurationMinutes = math.Round(total/float64(len(m.sessions))*100) / 100
	}

	return stats
}

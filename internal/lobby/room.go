package lobby

import "github.com/arcadelabs/arcade/internal/store"

// Room statuses. A room only ever moves Waiting -> Playing.
const (
	StatusWaiting = "waiting"
	StatusPlaying = "playing"
)

// room exists only while it has members. Guarded by the lobby mutex.
type room struct {
	id      int64
	game    store.Game
	hostID  int64
	members []*Session // join order
	status  string

	// Set exactly once, at the waiting -> playing transition.
	proc Process
	port int
}

func (r *room) isFull() bool {
	return len(r.members) >= r.game.MaxPlayers
}

func (r *room) canStart() bool {
	return len(r.members) >= r.game.MinPlayers
}

func (r *room) host() *Session {
	for _, m := range r.members {
		if m.PlayerID == r.hostID {
			return m
		}
	}
	return nil
}

// removeMember deletes the session from the member list, preserving join
// order of the rest. Reports whether it was present.
func (r *room) removeMember(playerID int64) bool {
	for i, m := range r.members {
		if m.PlayerID == playerID {
			r.members = append(r.members[:i], r.members[i+1:]...)
			return true
		}
	}
	return false
}

// membersExcept snapshots the member sessions, skipping the given player.
func (r *room) membersExcept(playerID int64) []*Session {
	targets := make([]*Session, 0, len(r.members))
	for _, m := range r.members {
		if m.PlayerID != playerID {
			targets = append(targets, m)
		}
	}
	return targets
}

func (r *room) snapshot() RoomSnapshot {
	players := make([]string, len(r.members))
	for i, m := range r.members {
		players[i] = m.Username
	}

	var host string
	if h := r.host(); h != nil {
		host = h.Username
	}

	return RoomSnapshot{
		RoomID:      r.id,
		GameID:      r.game.ID,
		GameName:    r.game.Name,
		Host:        host,
		Players:     players,
		PlayerCount: len(r.members),
		MaxPlayers:  r.game.MaxPlayers,
		MinPlayers:  r.game.MinPlayers,
		Status:      r.status,
	}
}

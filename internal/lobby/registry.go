package lobby

import "github.com/arcadelabs/arcade/internal/store"

// OpenSession registers an authenticated player's connection. It fails with
// [ErrAlreadyOnline] when the player already has a live session; the
// existing session stays untouched.
func (l *Lobby) OpenSession(player store.Player, ch Sender) (*Session, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if _, online := l.sessions[player.ID]; online {
		return nil, ErrAlreadyOnline
	}

	s := &Session{
		PlayerID: player.ID,
		Username: player.Username,
		ch:       ch,
	}
	l.sessions[player.ID] = s

	l.logger.Info("session opened", "player", player.Username)

	return s, nil
}

// CloseSession drops the player's registration. Idempotent; closing an
// unknown or already-closed session is a no-op.
func (l *Lobby) CloseSession(playerID int64) {
	l.mu.Lock()
	s, ok := l.sessions[playerID]
	delete(l.sessions, playerID)
	l.mu.Unlock()

	if ok {
		l.logger.Info("session closed", "player", s.Username)
	}
}

// LookupSession returns the player's live session, if any.
func (l *Lobby) LookupSession(playerID int64) (*Session, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()

	s, ok := l.sessions[playerID]
	return s, ok
}

package lobby

import (
	"fmt"

	"github.com/arcadelabs/arcade/internal/store"
)

// CreateRoom opens a new waiting room for the given game with the session as
// host and only member. Room ids come from a strictly increasing counter and
// are never reused, so a stale id can never address a newer room.
func (l *Lobby) CreateRoom(s *Session, game store.Game) (RoomSnapshot, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if _, inRoom := l.playerRoom[s.PlayerID]; inRoom {
		return RoomSnapshot{}, ErrAlreadyInRoom
	}

	l.nextRoomID++
	r := &room{
		id:      l.nextRoomID,
		game:    game,
		hostID:  s.PlayerID,
		members: []*Session{s},
		status:  StatusWaiting,
	}
	l.rooms[r.id] = r
	l.playerRoom[s.PlayerID] = r.id

	l.logger.Info("room created", "room", r.id, "game", game.Name, "host", s.Username)

	return r.snapshot(), nil
}

// JoinRoom appends the session to the room's members and notifies the
// existing members; the joiner sees the new snapshot in its own response.
func (l *Lobby) JoinRoom(s *Session, roomID int64) (RoomSnapshot, error) {
	l.mu.Lock()

	if _, inRoom := l.playerRoom[s.PlayerID]; inRoom {
		l.mu.Unlock()
		return RoomSnapshot{}, ErrAlreadyInRoom
	}

	r, ok := l.rooms[roomID]
	if !ok {
		l.mu.Unlock()
		return RoomSnapshot{}, ErrRoomNotFound
	}
	if r.status != StatusWaiting {
		l.mu.Unlock()
		return RoomSnapshot{}, ErrRoomNotWaiting
	}
	if r.isFull() {
		l.mu.Unlock()
		return RoomSnapshot{}, ErrRoomFull
	}

	targets := r.membersExcept(s.PlayerID)
	r.members = append(r.members, s)
	l.playerRoom[s.PlayerID] = r.id
	snap := r.snapshot()
	l.mu.Unlock()

	l.logger.Info("player joined room", "room", snap.RoomID, "player", s.Username)
	l.deliver(targets, Push{Type: PushRoomUpdate, Room: &snap})

	return snap, nil
}

// LeaveRoom removes the session from its room. When the room empties it is
// deleted and its game-server process, if any, terminated. When the host
// leaves a non-empty room, the earliest remaining member in join order is
// promoted. Returns the promoted host's name, if any.
func (l *Lobby) LeaveRoom(s *Session) (newHost string, err error) {
	l.mu.Lock()

	roomID, ok := l.playerRoom[s.PlayerID]
	if !ok {
		l.mu.Unlock()
		return "", ErrNotInRoom
	}
	r := l.rooms[roomID]

	wasHost := r.hostID == s.PlayerID
	r.removeMember(s.PlayerID)
	delete(l.playerRoom, s.PlayerID)

	if len(r.members) == 0 {
		delete(l.rooms, roomID)
		proc := r.proc
		l.mu.Unlock()

		l.logger.Info("room closed", "room", roomID)
		if proc != nil {
			proc.Terminate()
		}
		return "", nil
	}

	if wasHost {
		r.hostID = r.members[0].PlayerID
		newHost = r.members[0].Username
	}
	snap := r.snapshot()
	targets := r.membersExcept(s.PlayerID)
	l.mu.Unlock()

	l.logger.Info("player left room", "room", roomID, "player", s.Username, "new_host", newHost)
	l.deliver(targets, Push{Type: PushRoomUpdate, Room: &snap})

	return newHost, nil
}

// StartGame moves the caller's room from waiting to playing: it allocates a
// port, launches the game-server process and hands the connection details to
// the starter, pushing them to every other member. A failed launch rolls the
// room back to waiting and is reported only to the starter, so start stays
// retryable.
func (l *Lobby) StartGame(s *Session) (ServerInfo, error) {
	l.mu.Lock()

	roomID, ok := l.playerRoom[s.PlayerID]
	if !ok {
		l.mu.Unlock()
		return ServerInfo{}, ErrNotInRoom
	}
	r := l.rooms[roomID]

	if r.hostID != s.PlayerID {
		l.mu.Unlock()
		return ServerInfo{}, ErrNotHost
	}
	if r.status == StatusPlaying {
		l.mu.Unlock()
		return ServerInfo{}, ErrAlreadyStarted
	}
	if !r.canStart() {
		l.mu.Unlock()
		return ServerInfo{}, fmt.Errorf("%w: need at least %d players", ErrInsufficientPlayers, r.game.MinPlayers)
	}

	// Claim the transition before releasing the lock: concurrent starts
	// fail AlreadyStarted, concurrent joins fail RoomNotWaiting.
	r.status = StatusPlaying
	game := r.game
	l.mu.Unlock()

	port, err := l.launcher.AllocatePort()
	if err != nil {
		l.abortStart(r)
		return ServerInfo{}, fmt.Errorf("allocate port: %w", err)
	}

	proc, err := l.launcher.Launch(game, port)
	if err != nil {
		l.abortStart(r)
		return ServerInfo{}, fmt.Errorf("launch game server: %w", err)
	}

	info := ServerInfo{
		Host:     l.advertiseHost,
		Port:     port,
		GameName: game.Name,
		GameType: game.Type,
	}

	l.mu.Lock()
	if _, exists := l.rooms[roomID]; !exists {
		// Every member left while the server was starting; the room is
		// gone and nobody is coming. Don't leak the process.
		l.mu.Unlock()
		proc.Terminate()
		return ServerInfo{}, ErrRoomNotFound
	}
	r.proc = proc
	r.port = port
	targets := r.membersExcept(s.PlayerID)
	l.mu.Unlock()

	l.logger.Info("game started",
		"room", roomID,
		"game", game.Name,
		"pid", proc.PID(),
		"port", port,
	)
	l.deliver(targets, Push{Type: PushGameStarted, ServerInfo: &info})

	return info, nil
}

// abortStart rolls a claimed start back to waiting, unless the room is
// already gone.
func (l *Lobby) abortStart(r *room) {
	l.mu.Lock()
	if l.rooms[r.id] == r {
		r.status = StatusWaiting
	}
	l.mu.Unlock()
}

// ListRooms returns a snapshot of every room still waiting for players.
func (l *Lobby) ListRooms() []RoomSnapshot {
	l.mu.Lock()
	defer l.mu.Unlock()

	rooms := make([]RoomSnapshot, 0, len(l.rooms))
	for _, r := range l.rooms {
		if r.status == StatusWaiting {
			rooms = append(rooms, r.snapshot())
		}
	}

	return rooms
}

// RoomStatus reports the caller's room snapshot. Once the room is playing,
// it also reports the game server's connection details, letting a member
// catch up on a missed start notification.
func (l *Lobby) RoomStatus(s *Session) (RoomSnapshot, *ServerInfo, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	roomID, ok := l.playerRoom[s.PlayerID]
	if !ok {
		return RoomSnapshot{}, nil, ErrNotInRoom
	}
	r := l.rooms[roomID]

	snap := r.snapshot()
	if r.status != StatusPlaying || r.proc == nil {
		return snap, nil, nil
	}

	return snap, &ServerInfo{
		Host:     l.advertiseHost,
		Port:     r.port,
		GameName: r.game.Name,
		GameType: r.game.Type,
	}, nil
}

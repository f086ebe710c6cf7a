// Package lobby is the session and room orchestration core.
//
// One Lobby owns the session registry, the rooms and the player-to-room
// index behind a single mutex. Every membership-mutating operation is
// linearized by that mutex, so all observers see a monotonic sequence of
// room snapshots. The mutex is never held across a socket write or a
// process spawn: notification targets and process handles are captured
// under the lock and the I/O happens after it is released.
package lobby

import (
	"log/slog"
	"sync"

	"github.com/arcadelabs/arcade/internal/store"
)

// Sender writes one framed message to a client, serialized against the
// connection's other writers. Implemented by [wire.Channel].
type Sender interface {
	Send(v any) error
}

// Process is a handle to a launched game-server process.
type Process interface {
	PID() int
	// Terminate requests a graceful stop, waits a bounded grace period and
	// then forces termination. Idempotent, safe on an already-dead process.
	Terminate()
}

// Launcher starts game-server processes for playing rooms.
type Launcher interface {
	// AllocatePort returns a free port for a game server to bind. The port
	// may be taken between allocation and the server's bind; that race
	// surfaces as a launch or connect failure, never as a lobby crash.
	AllocatePort() (int, error)
	// Launch starts the game-server artifact with the port as argument.
	// It does not wait for the child to finish binding.
	Launch(game store.Game, port int) (Process, error)
}

// Session is an authenticated identity's live connection context.
type Session struct {
	PlayerID int64
	Username string

	ch Sender
}

// Config configures a Lobby.
type Config struct {
	Launcher Launcher
	// AdvertiseHost is the address handed to room members for connecting
	// to launched game servers.
	AdvertiseHost string
	Logger        *slog.Logger
}

// Lobby tracks online sessions and rooms. Create one per server.
type Lobby struct {
	launcher      Launcher
	advertiseHost string
	logger        *slog.Logger

	mu         sync.Mutex
	sessions   map[int64]*Session // player id -> session
	rooms      map[int64]*room
	playerRoom map[int64]int64 // player id -> room id
	nextRoomID int64
}

func New(cfg Config) *Lobby {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}

	return &Lobby{
		launcher:      cfg.Launcher,
		advertiseHost: cfg.AdvertiseHost,
		logger:        logger,
		sessions:      make(map[int64]*Session),
		rooms:         make(map[int64]*room),
		playerRoom:    make(map[int64]int64),
	}
}

// Close tears down all lobby state: every room's game-server process is
// terminated and all session registrations are dropped. Processes are
// terminated before Close returns so that none outlives the lobby.
func (l *Lobby) Close() {
	l.mu.Lock()
	var procs []Process
	for id, r := range l.rooms {
		if r.proc != nil {
			procs = append(procs, r.proc)
		}
		delete(l.rooms, id)
	}
	clear(l.playerRoom)
	clear(l.sessions)
	l.mu.Unlock()

	for _, p := range procs {
		p.Terminate()
	}
}

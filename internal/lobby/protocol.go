package lobby

import (
	"github.com/arcadelabs/arcade/internal/artifact"
	"github.com/arcadelabs/arcade/internal/store"
)

// Push message types, sent unsolicited to room members.
const (
	PushRoomUpdate  = "room_update"
	PushGameStarted = "game_started"
)

// Request is one client request. Type selects the operation; the remaining
// fields are filled per operation.
type Request struct {
	Type     string `json:"type"`
	Username string `json:"username,omitempty"`
	Password string `json:"password,omitempty"`
	GameID   int64  `json:"game_id,omitempty"`
	RoomID   int64  `json:"room_id,omitempty"`
	Rating   int    `json:"rating,omitempty"`
	Comment  string `json:"comment,omitempty"`
}

// Result is the envelope every response carries.
type Result struct {
	Success bool   `json:"success"`
	Message string `json:"message,omitempty"`
}

func ok() Result                  { return Result{Success: true} }
func okMessage(msg string) Result { return Result{Success: true, Message: msg} }
func fail(msg string) Result      { return Result{Success: false, Message: msg} }

// RoomSnapshot is the client-visible state of a room at one point in time.
// Players are listed in join order; the first promoted on host departure.
type RoomSnapshot struct {
	RoomID      int64    `json:"room_id"`
	GameID      int64    `json:"game_id"`
	GameName    string   `json:"game_name"`
	Host        string   `json:"host"`
	Players     []string `json:"players"`
	PlayerCount int      `json:"player_count"`
	MaxPlayers  int      `json:"max_players"`
	MinPlayers  int      `json:"min_players"`
	Status      string   `json:"status"`
}

// ServerInfo tells room members where their game server listens.
type ServerInfo struct {
	Host     string `json:"host"`
	Port     int    `json:"port"`
	GameName string `json:"game_name"`
	GameType string `json:"game_type"`
}

// Push is an unsolicited message to a room member. Exactly one of Room and
// ServerInfo is set, matching Type.
type Push struct {
	Type       string        `json:"type"`
	Room       *RoomSnapshot `json:"room,omitempty"`
	ServerInfo *ServerInfo   `json:"server_info,omitempty"`
}

// LoginResponse also carries the authenticated player.
type LoginResponse struct {
	Result
	Player *store.Player `json:"player,omitempty"`
}

type GamesResponse struct {
	Result
	Games []store.Game `json:"games,omitempty"`
}

type GameDetailResponse struct {
	Result
	Game    *store.Game    `json:"game,omitempty"`
	Ratings []store.Rating `json:"ratings,omitempty"`
}

type DownloadResponse struct {
	Result
	GameInfo *store.Game     `json:"game_info,omitempty"`
	Files    []artifact.File `json:"files,omitempty"`
}

type RoomResponse struct {
	Result
	Room *RoomSnapshot `json:"room,omitempty"`
}

type RoomsResponse struct {
	Result
	Rooms []RoomSnapshot `json:"rooms,omitempty"`
}

// LeaveResponse reports the promoted host when the leaver was hosting.
type LeaveResponse struct {
	Result
	NewHost string `json:"new_host,omitempty"`
}

type StartResponse struct {
	Result
	ServerInfo *ServerInfo `json:"server_info,omitempty"`
}

// StatusResponse reports the caller's room; ServerInfo is present once the
// room is playing.
type StatusResponse struct {
	Result
	Room       *RoomSnapshot `json:"room,omitempty"`
	Status     string        `json:"status,omitempty"`
	ServerInfo *ServerInfo   `json:"server_info,omitempty"`
}

type RatingsResponse struct {
	Result
	Ratings []store.Rating `json:"ratings,omitempty"`
}

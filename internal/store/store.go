// Package store defines the persistence boundary of the platform: accounts,
// the game catalog, ratings and download records.
package store

import (
	"context"
	"errors"
	"time"
)

var (
	ErrUsernameTaken      = errors.New("username already taken")
	ErrInvalidCredentials = errors.New("invalid username or password")
	ErrGameNotFound       = errors.New("game not found")
	ErrNotGameOwner       = errors.New("game belongs to another developer")
	ErrVersionExists      = errors.New("version already published")
)

// Player is a player account.
type Player struct {
	ID       int64  `json:"id" bson:"_id"`
	Username string `json:"username" bson:"username"`
}

// Developer is a developer account.
type Developer struct {
	ID       int64  `json:"id" bson:"_id"`
	Username string `json:"username" bson:"username"`
}

// Game is one catalog entry. Version is the current published version;
// ServerFile names the launchable server artifact inside the version
// directory.
type Game struct {
	ID          int64  `json:"id" bson:"_id"`
	Name        string `json:"name" bson:"name"`
	Developer   string `json:"developer" bson:"developer"`
	Version     string `json:"version" bson:"version"`
	Description string `json:"description" bson:"description"`
	Type        string `json:"type" bson:"type"`
	MinPlayers  int    `json:"min_players" bson:"min_players"`
	MaxPlayers  int    `json:"max_players" bson:"max_players"`
	ServerFile  string `json:"server_file" bson:"server_file"`
	Active      bool   `json:"is_active" bson:"active"`
}

// Rating is one player's rating of a game. A player has at most one rating
// per game; re-rating replaces the previous one.
type Rating struct {
	Username  string    `json:"username" bson:"username"`
	Rating    int       `json:"rating" bson:"rating"`
	Comment   string    `json:"comment,omitempty" bson:"comment,omitempty"`
	CreatedAt time.Time `json:"created_at" bson:"created_at"`
}

// Submission is the metadata for publishing a game or a new version of it.
type Submission struct {
	Name        string
	DeveloperID int64
	Version     string
	Description string
	Type        string
	MinPlayers  int
	MaxPlayers  int
	ServerFile  string
}

// Store is the synchronous persistence interface. Implementations must be
// safe for concurrent use. Failures surface as errors and never leave the
// caller's in-memory state inconsistent: callers mutate orchestration state
// only after the store confirmed the operation.
type Store interface {
	RegisterPlayer(ctx context.Context, username, password string) error
	AuthenticatePlayer(ctx context.Context, username, password string) (Player, error)

	RegisterDeveloper(ctx context.Context, username, password string) error
	AuthenticateDeveloper(ctx context.Context, username, password string) (Developer, error)

	// ListActiveGames returns the catalog entries available to players.
	ListActiveGames(ctx context.Context) ([]Game, error)
	// GetGame returns a game by id, active or not.
	GetGame(ctx context.Context, id int64) (Game, error)
	// PublishGame creates a game, or publishes a new version when a game
	// with the same name already belongs to the submitting developer.
	// Re-publishing reactivates a deactivated game.
	PublishGame(ctx context.Context, sub Submission) (Game, error)
	DeactivateGame(ctx context.Context, gameID, developerID int64) error
	ListDeveloperGames(ctx context.Context, developerID int64) ([]Game, error)

	AddRating(ctx context.Context, gameID, playerID int64, rating int, comment string) error
	ListRatings(ctx context.Context, gameID int64, limit int) ([]Rating, error)
	RecordDownload(ctx context.Context, playerID, gameID int64, version string) error
}

// Package memstore is an in-memory [store.Store], used in tests and when the
// lobby runs without a database.
package memstore

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/arcadelabs/arcade/internal/store"
	"golang.org/x/crypto/bcrypt"
)

type account struct {
	id           int64
	username     string
	passwordHash []byte
}

type rating struct {
	playerID  int64
	username  string
	rating    int
	comment   string
	createdAt time.Time
}

type download struct {
	playerID int64
	gameID   int64
	version  string
	at       time.Time
}

// Store keeps everything in maps behind one mutex.
type Store struct {
	mu         sync.Mutex
	players    map[string]*account
	developers map[string]*account
	games      map[int64]*gameRecord
	ratings    map[int64]map[int64]*rating // game id -> player id -> rating
	downloads  []download

	nextPlayerID    int64
	nextDeveloperID int64
	nextGameID      int64
}

type gameRecord struct {
	game        store.Game
	developerID int64
	versions    map[string]struct{}
}

func New() *Store {
	return &Store{
		players:    make(map[string]*account),
		developers: make(map[string]*account),
		games:      make(map[int64]*gameRecord),
		ratings:    make(map[int64]map[int64]*rating),
	}
}

var _ store.Store = (*Store)(nil)

func (s *Store) RegisterPlayer(_ context.Context, username, password string) error {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.players[username]; ok {
		return store.ErrUsernameTaken
	}

	s.nextPlayerID++
	s.players[username] = &account{
		id:           s.nextPlayerID,
		username:     username,
		passwordHash: hash,
	}

	return nil
}

func (s *Store) AuthenticatePlayer(_ context.Context, username, password string) (store.Player, error) {
	s.mu.Lock()
	acc, ok := s.players[username]
	s.mu.Unlock()

	if !ok {
		return store.Player{}, store.ErrInvalidCredentials
	}
	if err := bcrypt.CompareHashAndPassword(acc.passwordHash, []byte(password)); err != nil {
		return store.Player{}, store.ErrInvalidCredentials
	}

	return store.Player{ID: acc.id, Username: acc.username}, nil
}

func (s *Store) RegisterDeveloper(_ context.Context, username, password string) error {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.developers[username]; ok {
		return store.ErrUsernameTaken
	}

	s.nextDeveloperID++
	s.developers[username] = &account{
		id:           s.nextDeveloperID,
		username:     username,
		passwordHash: hash,
	}

	return nil
}

func (s *Store) AuthenticateDeveloper(_ context.Context, username, password string) (store.Developer, error) {
	s.mu.Lock()
	acc, ok := s.developers[username]
	s.mu.Unlock()

	if !ok {
		return store.Developer{}, store.ErrInvalidCredentials
	}
	if err := bcrypt.CompareHashAndPassword(acc.passwordHash, []byte(password)); err != nil {
		return store.Developer{}, store.ErrInvalidCredentials
	}

	return store.Developer{ID: acc.id, Username: acc.username}, nil
}

func (s *Store) ListActiveGames(_ context.Context) ([]store.Game, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var games []store.Game
	for _, rec := range s.games {
		if rec.game.Active {
			games = append(games, rec.game)
		}
	}
	sort.Slice(games, func(i, j int) bool { return games[i].ID < games[j].ID })

	return games, nil
}

func (s *Store) GetGame(_ context.Context, id int64) (store.Game, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec, ok := s.games[id]
	if !ok {
		return store.Game{}, store.ErrGameNotFound
	}

	return rec.game, nil
}

func (s *Store) PublishGame(_ context.Context, sub store.Submission) (store.Game, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	developer := s.developerName(sub.DeveloperID)

	for _, rec := range s.games {
		if rec.game.Name != sub.Name {
			continue
		}
		if rec.developerID != sub.DeveloperID {
			return store.Game{}, store.ErrNotGameOwner
		}
		if _, ok := rec.versions[sub.Version]; ok {
			return store.Game{}, store.ErrVersionExists
		}

		rec.versions[sub.Version] = struct{}{}
		rec.game.Version = sub.Version
		rec.game.Description = sub.Description
		rec.game.Type = sub.Type
		rec.game.MinPlayers = sub.MinPlayers
		rec.game.MaxPlayers = sub.MaxPlayers
		rec.game.ServerFile = sub.ServerFile
		rec.game.Active = true

		return rec.game, nil
	}

	s.nextGameID++
	game := store.Game{
		ID:          s.nextGameID,
		Name:        sub.Name,
		Developer:   developer,
		Version:     sub.Version,
		Description: sub.Description,
		Type:        sub.Type,
		MinPlayers:  sub.MinPlayers,
		MaxPlayers:  sub.MaxPlayers,
		ServerFile:  sub.ServerFile,
		Active:      true,
	}
	s.games[game.ID] = &gameRecord{
		game:        game,
		developerID: sub.DeveloperID,
		versions:    map[string]struct{}{sub.Version: {}},
	}

	return game, nil
}

func (s *Store) DeactivateGame(_ context.Context, gameID, developerID int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec, ok := s.games[gameID]
	if !ok {
		return store.ErrGameNotFound
	}
	if rec.developerID != developerID {
		return store.ErrNotGameOwner
	}

	rec.game.Active = false

	return nil
}

func (s *Store) ListDeveloperGames(_ context.Context, developerID int64) ([]store.Game, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var games []store.Game
	for _, rec := range s.games {
		if rec.developerID == developerID {
			games = append(games, rec.game)
		}
	}
	sort.Slice(games, func(i, j int) bool { return games[i].ID < games[j].ID })

	return games, nil
}

func (s *Store) AddRating(_ context.Context, gameID, playerID int64, score int, comment string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.games[gameID]; !ok {
		return store.ErrGameNotFound
	}

	if s.ratings[gameID] == nil {
		s.ratings[gameID] = make(map[int64]*rating)
	}
	s.ratings[gameID][playerID] = &rating{
		playerID:  playerID,
		username:  s.playerName(playerID),
		rating:    score,
		comment:   comment,
		createdAt: time.Now(),
	}

	return nil
}

func (s *Store) ListRatings(_ context.Context, gameID int64, limit int) ([]store.Rating, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var out []store.Rating
	for _, r := range s.ratings[gameID] {
		out = append(out, store.Rating{
			Username:  r.username,
			Rating:    r.rating,
			Comment:   r.comment,
			CreatedAt: r.createdAt,
		})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })

	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}

	return out, nil
}

func (s *Store) RecordDownload(_ context.Context, playerID, gameID int64, version string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.games[gameID]; !ok {
		return store.ErrGameNotFound
	}

	s.downloads = append(s.downloads, download{
		playerID: playerID,
		gameID:   gameID,
		version:  version,
		at:       time.Now(),
	})

	return nil
}

// Downloads returns the number of recorded downloads for a game.
func (s *Store) Downloads(gameID int64) int {
	s.mu.Lock()
	defer s.mu.Unlock()

	n := 0
	for _, d := range s.downloads {
		if d.gameID == gameID {
			n++
		}
	}

	return n
}

func (s *Store) developerName(id int64) string {
	for _, acc := range s.developers {
		if acc.id == id {
			return acc.username
		}
	}
	return ""
}

func (s *Store) playerName(id int64) string {
	for _, acc := range s.players {
		if acc.id == id {
			return acc.username
		}
	}
	return ""
}

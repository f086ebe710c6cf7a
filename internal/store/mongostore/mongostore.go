// Package mongostore is the MongoDB implementation of [store.Store].
package mongostore

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/arcadelabs/arcade/internal/store"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"golang.org/x/crypto/bcrypt"
)

const (
	collPlayers    = "players"
	collDevelopers = "developers"
	collGames      = "games"
	collRatings    = "ratings"
	collDownloads  = "downloads"
	collCounters   = "counters"
)

// Store persists accounts, the catalog, ratings and downloads in MongoDB.
type Store struct {
	db *mongo.Database
}

var _ store.Store = (*Store)(nil)

// New creates a store on the given database and ensures its indexes.
func New(ctx context.Context, db *mongo.Database) (*Store, error) {
	s := &Store{db: db}
	if err := s.ensureIndexes(ctx); err != nil {
		return nil, fmt.Errorf("ensure indexes: %w", err)
	}

	return s, nil
}

func (s *Store) ensureIndexes(ctx context.Context) error {
	unique := options.Index().SetUnique(true)

	for coll, keys := range map[string]bson.D{
		collPlayers:    {{Key: "username", Value: 1}},
		collDevelopers: {{Key: "username", Value: 1}},
		collGames:      {{Key: "name", Value: 1}},
		collRatings:    {{Key: "game_id", Value: 1}, {Key: "player_id", Value: 1}},
	} {
		_, err := s.db.Collection(coll).Indexes().CreateOne(ctx, mongo.IndexModel{
			Keys:    keys,
			Options: unique,
		})
		if err != nil {
			return fmt.Errorf("index %s: %w", coll, err)
		}
	}

	return nil
}

// nextID increments and returns a named monotonic counter.
func (s *Store) nextID(ctx context.Context, name string) (int64, error) {
	var counter struct {
		Value int64 `bson:"value"`
	}
	err := s.db.Collection(collCounters).FindOneAndUpdate(ctx,
		bson.M{"_id": name},
		bson.M{"$inc": bson.M{"value": 1}},
		options.FindOneAndUpdate().SetUpsert(true).SetReturnDocument(options.After),
	).Decode(&counter)
	if err != nil {
		return 0, fmt.Errorf("counter %s: %w", name, err)
	}

	return counter.Value, nil
}

type accountDoc struct {
	ID           int64     `bson:"_id"`
	Username     string    `bson:"username"`
	PasswordHash []byte    `bson:"password_hash"`
	CreatedAt    time.Time `bson:"created_at"`
}

func (s *Store) registerAccount(ctx context.Context, coll, counter, username, password string) error {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return err
	}

	id, err := s.nextID(ctx, counter)
	if err != nil {
		return err
	}

	_, err = s.db.Collection(coll).InsertOne(ctx, accountDoc{
		ID:           id,
		Username:     username,
		PasswordHash: hash,
		CreatedAt:    time.Now(),
	})
	if mongo.IsDuplicateKeyError(err) {
		return store.ErrUsernameTaken
	}
	if err != nil {
		return fmt.Errorf("insert %s: %w", coll, err)
	}

	return nil
}

func (s *Store) authenticate(ctx context.Context, coll, username, password string) (accountDoc, error) {
	var doc accountDoc
	err := s.db.Collection(coll).FindOne(ctx, bson.M{"username": username}).Decode(&doc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return accountDoc{}, store.ErrInvalidCredentials
	}
	if err != nil {
		return accountDoc{}, fmt.Errorf("find %s: %w", coll, err)
	}

	if err := bcrypt.CompareHashAndPassword(doc.PasswordHash, []byte(password)); err != nil {
		return accountDoc{}, store.ErrInvalidCredentials
	}

	return doc, nil
}

func (s *Store) RegisterPlayer(ctx context.Context, username, password string) error {
	return s.registerAccount(ctx, collPlayers, "player_id", username, password)
}

func (s *Store) AuthenticatePlayer(ctx context.Context, username, password string) (store.Player, error) {
	doc, err := s.authenticate(ctx, collPlayers, username, password)
	if err != nil {
		return store.Player{}, err
	}

	return store.Player{ID: doc.ID, Username: doc.Username}, nil
}

func (s *Store) RegisterDeveloper(ctx context.Context, username, password string) error {
	return s.registerAccount(ctx, collDevelopers, "developer_id", username, password)
}

func (s *Store) AuthenticateDeveloper(ctx context.Context, username, password string) (store.Developer, error) {
	doc, err := s.authenticate(ctx, collDevelopers, username, password)
	if err != nil {
		return store.Developer{}, err
	}

	return store.Developer{ID: doc.ID, Username: doc.Username}, nil
}

type gameDoc struct {
	store.Game  `bson:",inline"`
	DeveloperID int64     `bson:"developer_id"`
	Versions    []string  `bson:"versions"`
	UpdatedAt   time.Time `bson:"updated_at"`
}

func (s *Store) ListActiveGames(ctx context.Context) ([]store.Game, error) {
	cursor, err := s.db.Collection(collGames).Find(ctx,
		bson.M{"active": true},
		options.Find().SetSort(bson.M{"_id": 1}),
	)
	if err != nil {
		return nil, fmt.Errorf("find games: %w", err)
	}

	var docs []gameDoc
	if err := cursor.All(ctx, &docs); err != nil {
		return nil, fmt.Errorf("decode games: %w", err)
	}

	games := make([]store.Game, len(docs))
	for i, d := range docs {
		games[i] = d.Game
	}

	return games, nil
}

func (s *Store) GetGame(ctx context.Context, id int64) (store.Game, error) {
	var doc gameDoc
	err := s.db.Collection(collGames).FindOne(ctx, bson.M{"_id": id}).Decode(&doc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return store.Game{}, store.ErrGameNotFound
	}
	if err != nil {
		return store.Game{}, fmt.Errorf("find game: %w", err)
	}

	return doc.Game, nil
}

func (s *Store) PublishGame(ctx context.Context, sub store.Submission) (store.Game, error) {
	games := s.db.Collection(collGames)

	var existing gameDoc
	err := games.FindOne(ctx, bson.M{"name": sub.Name}).Decode(&existing)
	switch {
	case errors.Is(err, mongo.ErrNoDocuments):
		return s.insertGame(ctx, sub)
	case err != nil:
		return store.Game{}, fmt.Errorf("find game: %w", err)
	}

	if existing.DeveloperID != sub.DeveloperID {
		return store.Game{}, store.ErrNotGameOwner
	}
	for _, v := range existing.Versions {
		if v == sub.Version {
			return store.Game{}, store.ErrVersionExists
		}
	}

	update := bson.M{
		"$set": bson.M{
			"version":     sub.Version,
			"description": sub.Description,
			"type":        sub.Type,
			"min_players": sub.MinPlayers,
			"max_players": sub.MaxPlayers,
			"server_file": sub.ServerFile,
			"active":      true,
			"updated_at":  time.Now(),
		},
		"$push": bson.M{"versions": sub.Version},
	}

	var updated gameDoc
	err = games.FindOneAndUpdate(ctx,
		bson.M{"_id": existing.ID},
		update,
		options.FindOneAndUpdate().SetReturnDocument(options.After),
	).Decode(&updated)
	if err != nil {
		return store.Game{}, fmt.Errorf("update game: %w", err)
	}

	return updated.Game, nil
}

func (s *Store) insertGame(ctx context.Context, sub store.Submission) (store.Game, error) {
	var dev accountDoc
	err := s.db.Collection(collDevelopers).FindOne(ctx, bson.M{"_id": sub.DeveloperID}).Decode(&dev)
	if err != nil {
		return store.Game{}, fmt.Errorf("find developer: %w", err)
	}

	id, err := s.nextID(ctx, "game_id")
	if err != nil {
		return store.Game{}, err
	}

	doc := gameDoc{
		Game: store.Game{
			ID:          id,
			Name:        sub.Name,
			Developer:   dev.Username,
			Version:     sub.Version,
			Description: sub.Description,
			Type:        sub.Type,
			MinPlayers:  sub.MinPlayers,
			MaxPlayers:  sub.MaxPlayers,
			ServerFile:  sub.ServerFile,
			Active:      true,
		},
		DeveloperID: sub.DeveloperID,
		Versions:    []string{sub.Version},
		UpdatedAt:   time.Now(),
	}
	if _, err := s.db.Collection(collGames).InsertOne(ctx, doc); err != nil {
		return store.Game{}, fmt.Errorf("insert game: %w", err)
	}

	return doc.Game, nil
}

func (s *Store) DeactivateGame(ctx context.Context, gameID, developerID int64) error {
	res := s.db.Collection(collGames).FindOneAndUpdate(ctx,
		bson.M{"_id": gameID, "developer_id": developerID},
		bson.M{"$set": bson.M{"active": false, "updated_at": time.Now()}},
	)
	if err := res.Err(); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			// Distinguish a missing game from someone else's game.
			if _, err := s.GetGame(ctx, gameID); err != nil {
				return err
			}
			return store.ErrNotGameOwner
		}
		return fmt.Errorf("deactivate game: %w", err)
	}

	return nil
}

func (s *Store) ListDeveloperGames(ctx context.Context, developerID int64) ([]store.Game, error) {
	cursor, err := s.db.Collection(collGames).Find(ctx,
		bson.M{"developer_id": developerID},
		options.Find().SetSort(bson.M{"_id": 1}),
	)
	if err != nil {
		return nil, fmt.Errorf("find games: %w", err)
	}

	var docs []gameDoc
	if err := cursor.All(ctx, &docs); err != nil {
		return nil, fmt.Errorf("decode games: %w", err)
	}

	games := make([]store.Game, len(docs))
	for i, d := range docs {
		games[i] = d.Game
	}

	return games, nil
}

type ratingDoc struct {
	GameID    int64     `bson:"game_id"`
	PlayerID  int64     `bson:"player_id"`
	Username  string    `bson:"username"`
	Rating    int       `bson:"rating"`
	Comment   string    `bson:"comment,omitempty"`
	CreatedAt time.Time `bson:"created_at"`
}

func (s *Store) AddRating(ctx context.Context, gameID, playerID int64, rating int, comment string) error {
	if _, err := s.GetGame(ctx, gameID); err != nil {
		return err
	}

	var player accountDoc
	err := s.db.Collection(collPlayers).FindOne(ctx, bson.M{"_id": playerID}).Decode(&player)
	if err != nil {
		return fmt.Errorf("find player: %w", err)
	}

	_, err = s.db.Collection(collRatings).ReplaceOne(ctx,
		bson.M{"game_id": gameID, "player_id": playerID},
		ratingDoc{
			GameID:    gameID,
			PlayerID:  playerID,
			Username:  player.Username,
			Rating:    rating,
			Comment:   comment,
			CreatedAt: time.Now(),
		},
		options.Replace().SetUpsert(true),
	)
	if err != nil {
		return fmt.Errorf("upsert rating: %w", err)
	}

	return nil
}

func (s *Store) ListRatings(ctx context.Context, gameID int64, limit int) ([]store.Rating, error) {
	opts := options.Find().SetSort(bson.M{"created_at": -1})
	if limit > 0 {
		opts = opts.SetLimit(int64(limit))
	}

	cursor, err := s.db.Collection(collRatings).Find(ctx, bson.M{"game_id": gameID}, opts)
	if err != nil {
		return nil, fmt.Errorf("find ratings: %w", err)
	}

	var docs []ratingDoc
	if err := cursor.All(ctx, &docs); err != nil {
		return nil, fmt.Errorf("decode ratings: %w", err)
	}

	ratings := make([]store.Rating, len(docs))
	for i, d := range docs {
		ratings[i] = store.Rating{
			Username:  d.Username,
			Rating:    d.Rating,
			Comment:   d.Comment,
			CreatedAt: d.CreatedAt,
		}
	}

	return ratings, nil
}

func (s *Store) RecordDownload(ctx context.Context, playerID, gameID int64, version string) error {
	_, err := s.db.Collection(collDownloads).InsertOne(ctx, bson.M{
		"player_id":  playerID,
		"game_id":    gameID,
		"version":    version,
		"created_at": time.Now(),
	})
	if err != nil {
		return fmt.Errorf("insert download: %w", err)
	}

	return nil
}

package memstore_test

import (
	"context"
	"errors"
	"testing"

	"github.com/arcadelabs/arcade/internal/store"
	"github.com/arcadelabs/arcade/internal/store/memstore"
)

func TestAccounts(t *testing.T) {
	ctx := context.Background()
	s := memstore.New()

	if err := s.RegisterPlayer(ctx, "alice", "secret"); err != nil {
		t.Fatalf("RegisterPlayer: %v", err)
	}

	err := s.RegisterPlayer(ctx, "alice", "other")
	if !errors.Is(err, store.ErrUsernameTaken) {
		t.Fatalf("expected ErrUsernameTaken, got %v", err)
	}

	player, err := s.AuthenticatePlayer(ctx, "alice", "secret")
	if err != nil {
		t.Fatalf("AuthenticatePlayer: %v", err)
	}
	if player.Username != "alice" || player.ID == 0 {
		t.Fatalf("unexpected player %+v", player)
	}

	if _, err := s.AuthenticatePlayer(ctx, "alice", "wrong"); !errors.Is(err, store.ErrInvalidCredentials) {
		t.Fatalf("expected ErrInvalidCredentials for wrong password, got %v", err)
	}
	if _, err := s.AuthenticatePlayer(ctx, "nobody", "secret"); !errors.Is(err, store.ErrInvalidCredentials) {
		t.Fatalf("expected ErrInvalidCredentials for unknown player, got %v", err)
	}

	// Player and developer namespaces are independent.
	if err := s.RegisterDeveloper(ctx, "alice", "secret"); err != nil {
		t.Fatalf("RegisterDeveloper: %v", err)
	}
}

func TestPublishGame_Lifecycle(t *testing.T) {
	ctx := context.Background()
	s := memstore.New()

	dev := registerDeveloper(t, s, "studio")

	game, err := s.PublishGame(ctx, submission(dev.ID, "1.0.0"))
	if err != nil {
		t.Fatalf("PublishGame: %v", err)
	}
	if !game.Active || game.Developer != "studio" {
		t.Fatalf("unexpected game %+v", game)
	}

	// Same version again is rejected.
	if _, err := s.PublishGame(ctx, submission(dev.ID, "1.0.0")); !errors.Is(err, store.ErrVersionExists) {
		t.Fatalf("expected ErrVersionExists, got %v", err)
	}

	// Another developer cannot take over the name.
	other := registerDeveloper(t, s, "rival")
	if _, err := s.PublishGame(ctx, submission(other.ID, "2.0.0")); !errors.Is(err, store.ErrNotGameOwner) {
		t.Fatalf("expected ErrNotGameOwner, got %v", err)
	}

	if err := s.DeactivateGame(ctx, game.ID, dev.ID); err != nil {
		t.Fatalf("DeactivateGame: %v", err)
	}

	active, err := s.ListActiveGames(ctx)
	if err != nil {
		t.Fatalf("ListActiveGames: %v", err)
	}
	if len(active) != 0 {
		t.Fatalf("expected no active games, got %+v", active)
	}

	// Deactivated games stay addressable by id.
	got, err := s.GetGame(ctx, game.ID)
	if err != nil {
		t.Fatalf("GetGame: %v", err)
	}
	if got.Active {
		t.Fatal("expected game inactive")
	}

	// A new version reactivates under the same id.
	updated, err := s.PublishGame(ctx, submission(dev.ID, "1.1.0"))
	if err != nil {
		t.Fatalf("PublishGame new version: %v", err)
	}
	if updated.ID != game.ID {
		t.Fatalf("expected same game id %d, got %d", game.ID, updated.ID)
	}
	if !updated.Active || updated.Version != "1.1.0" {
		t.Fatalf("unexpected updated game %+v", updated)
	}
}

func TestDeactivateGame_OwnershipChecked(t *testing.T) {
	ctx := context.Background()
	s := memstore.New()

	dev := registerDeveloper(t, s, "studio")
	rival := registerDeveloper(t, s, "rival")

	game, err := s.PublishGame(ctx, submission(dev.ID, "1.0.0"))
	if err != nil {
		t.Fatalf("PublishGame: %v", err)
	}

	if err := s.DeactivateGame(ctx, game.ID, rival.ID); !errors.Is(err, store.ErrNotGameOwner) {
		t.Fatalf("expected ErrNotGameOwner, got %v", err)
	}
	if err := s.DeactivateGame(ctx, 99, dev.ID); !errors.Is(err, store.ErrGameNotFound) {
		t.Fatalf("expected ErrGameNotFound, got %v", err)
	}
}

func TestAddRating_ReplacesPrevious(t *testing.T) {
	ctx := context.Background()
	s := memstore.New()

	dev := registerDeveloper(t, s, "studio")
	game, err := s.PublishGame(ctx, submission(dev.ID, "1.0.0"))
	if err != nil {
		t.Fatalf("PublishGame: %v", err)
	}

	if err := s.RegisterPlayer(ctx, "alice", "secret"); err != nil {
		t.Fatalf("RegisterPlayer: %v", err)
	}
	alice, err := s.AuthenticatePlayer(ctx, "alice", "secret")
	if err != nil {
		t.Fatalf("AuthenticatePlayer: %v", err)
	}

	if err := s.AddRating(ctx, game.ID, alice.ID, 2, "buggy"); err != nil {
		t.Fatalf("AddRating: %v", err)
	}
	if err := s.AddRating(ctx, game.ID, alice.ID, 5, "fixed now"); err != nil {
		t.Fatalf("AddRating again: %v", err)
	}

	ratings, err := s.ListRatings(ctx, game.ID, 10)
	if err != nil {
		t.Fatalf("ListRatings: %v", err)
	}
	if len(ratings) != 1 {
		t.Fatalf("expected one rating per player, got %d", len(ratings))
	}
	if ratings[0].Rating != 5 || ratings[0].Comment != "fixed now" {
		t.Fatalf("expected replaced rating, got %+v", ratings[0])
	}

	if err := s.AddRating(ctx, 99, alice.ID, 3, ""); !errors.Is(err, store.ErrGameNotFound) {
		t.Fatalf("expected ErrGameNotFound, got %v", err)
	}
}

func TestRecordDownload(t *testing.T) {
	ctx := context.Background()
	s := memstore.New()

	dev := registerDeveloper(t, s, "studio")
	game, err := s.PublishGame(ctx, submission(dev.ID, "1.0.0"))
	if err != nil {
		t.Fatalf("PublishGame: %v", err)
	}

	if err := s.RecordDownload(ctx, 1, game.ID, game.Version); err != nil {
		t.Fatalf("RecordDownload: %v", err)
	}
	if err := s.RecordDownload(ctx, 2, game.ID, game.Version); err != nil {
		t.Fatalf("RecordDownload: %v", err)
	}
	if err := s.RecordDownload(ctx, 1, 99, "1.0.0"); !errors.Is(err, store.ErrGameNotFound) {
		t.Fatalf("expected ErrGameNotFound, got %v", err)
	}

	if got := s.Downloads(game.ID); got != 2 {
		t.Fatalf("expected 2 downloads, got %d", got)
	}
}

func registerDeveloper(t *testing.T, s *memstore.Store, username string) store.Developer {
	t.Helper()

	ctx := context.Background()
	if err := s.RegisterDeveloper(ctx, username, "hunter2"); err != nil {
		t.Fatalf("RegisterDeveloper %s: %v", username, err)
	}
	dev, err := s.AuthenticateDeveloper(ctx, username, "hunter2")
	if err != nil {
		t.Fatalf("AuthenticateDeveloper %s: %v", username, err)
	}

	return dev
}

func submission(developerID int64, version string) store.Submission {
	return store.Submission{
		Name:        "skirmish",
		DeveloperID: developerID,
		Version:     version,
		Description: "a small skirmish",
		Type:        "strategy",
		MinPlayers:  2,
		MaxPlayers:  4,
		ServerFile:  "server.py",
	}
}

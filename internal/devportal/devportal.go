// Package devportal is the HTTP API developers use to manage their catalog:
// account registration, game publishing and deactivation.
package devportal

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"

	"github.com/arcadelabs/arcade/internal/artifact"
	"github.com/arcadelabs/arcade/internal/store"
	"github.com/go-playground/form/v4"
)

// maxUploadSize bounds one multipart game upload.
const maxUploadSize = 64 << 20 // 64 MiB

// API serves the developer portal endpoints.
type API struct {
	store     store.Store
	artifacts *artifact.Library
	decoder   *form.Decoder
	logger    *slog.Logger
}

func NewAPI(st store.Store, artifacts *artifact.Library, logger *slog.Logger) *API {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}

	return &API{
		store:     st,
		artifacts: artifacts,
		decoder:   newFormDecoder(),
		logger:    logger,
	}
}

// NewRouter creates an [http.ServeMux] with all portal routes registered.
// Game management routes require basic auth; registration and probes do not.
func NewRouter(a *API) *http.ServeMux {
	authed := Authenticate(a.store)

	mux := http.NewServeMux()
	mux.HandleFunc("POST /register", a.handleRegister)
	mux.Handle("POST /games", Wrap(http.HandlerFunc(a.handlePublish), authed))
	mux.Handle("GET /games", Wrap(http.HandlerFunc(a.handleListGames), authed))
	mux.Handle("POST /games/{id}/deactivate", Wrap(http.HandlerFunc(a.handleDeactivate), authed))
	mux.HandleFunc("GET /-/health", a.handleHealth)
	mux.HandleFunc("GET /-/status", a.handleStatus)

	return mux
}

func (a *API) handleRegister(w http.ResponseWriter, r *http.Request) {
	var req RegisterRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	if err := req.Validate(); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	if err := a.store.RegisterDeveloper(r.Context(), req.Username, req.Password); err != nil {
		if errors.Is(err, store.ErrUsernameTaken) {
			http.Error(w, err.Error(), http.StatusConflict)
			return
		}
		a.serverError(w, r, fmt.Errorf("register developer: %w", err))
		return
	}

	a.logger.Info("developer registered", "username", req.Username)
	w.WriteHeader(http.StatusCreated)
}

func (a *API) handlePublish(w http.ResponseWriter, r *http.Request) {
	dev, _ := DeveloperFromContext(r.Context())

	if err := r.ParseMultipartForm(maxUploadSize); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	var req PublishRequest
	if err := a.decoder.Decode(&req, r.MultipartForm.Value); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	if err := req.Validate(); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	files, err := readUpload(r.MultipartForm.File["files"])
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	if len(files) == 0 {
		http.Error(w, "at least one artifact file is required", http.StatusBadRequest)
		return
	}
	if !containsFile(files, req.ServerFile) {
		http.Error(w, fmt.Sprintf("server_file %q is not among the uploaded files", req.ServerFile), http.StatusBadRequest)
		return
	}

	// Install the artifact before the catalog row so a game is launchable
	// the moment it becomes visible.
	if err := a.artifacts.Save(req.Name, req.Version, files); err != nil {
		a.serverError(w, r, fmt.Errorf("save artifact: %w", err))
		return
	}

	game, err := a.store.PublishGame(r.Context(), store.Submission{
		Name:        req.Name,
		DeveloperID: dev.ID,
		Version:     req.Version,
		Description: req.Description,
		Type:        req.Type,
		MinPlayers:  req.MinPlayers,
		MaxPlayers:  req.MaxPlayers,
		ServerFile:  req.ServerFile,
	})
	if err != nil {
		switch {
		case errors.Is(err, store.ErrVersionExists):
			http.Error(w, err.Error(), http.StatusConflict)
		case errors.Is(err, store.ErrNotGameOwner):
			http.Error(w, err.Error(), http.StatusForbidden)
		default:
			a.serverError(w, r, fmt.Errorf("publish game: %w", err))
		}
		return
	}

	a.logger.Info("game published",
		"developer", dev.Username,
		"game", game.Name,
		"version", game.Version,
	)

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	if err := json.NewEncoder(w).Encode(game); err != nil {
		a.logger.ErrorContext(r.Context(), "encode response", "error", err)
	}
}

func (a *API) handleListGames(w http.ResponseWriter, r *http.Request) {
	dev, _ := DeveloperFromContext(r.Context())

	games, err := a.store.ListDeveloperGames(r.Context(), dev.ID)
	if err != nil {
		a.serverError(w, r, fmt.Errorf("list developer games: %w", err))
		return
	}

	a.writeJSON(w, r, games)
}

func (a *API) handleDeactivate(w http.ResponseWriter, r *http.Request) {
	dev, _ := DeveloperFromContext(r.Context())

	var gameID int64
	if _, err := fmt.Sscan(r.PathValue("id"), &gameID); err != nil {
		http.Error(w, "invalid game id", http.StatusBadRequest)
		return
	}

	err := a.store.DeactivateGame(r.Context(), gameID, dev.ID)
	switch {
	case errors.Is(err, store.ErrGameNotFound):
		http.Error(w, err.Error(), http.StatusNotFound)
	case errors.Is(err, store.ErrNotGameOwner):
		http.Error(w, err.Error(), http.StatusForbidden)
	case err != nil:
		a.serverError(w, r, fmt.Errorf("deactivate game: %w", err))
	default:
		a.logger.Info("game deactivated", "developer", dev.Username, "game_id", gameID)
		w.WriteHeader(http.StatusNoContent)
	}
}

func (a *API) writeJSON(w http.ResponseWriter, r *http.Request, v any) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		a.logger.ErrorContext(r.Context(), "encode response", "error", err)
	}
}

func (a *API) serverError(w http.ResponseWriter, r *http.Request, err error) {
	a.logger.ErrorContext(r.Context(), "internal error", "error", err)
	http.Error(w, "internal error", http.StatusInternalServerError)
}

func readUpload(headers []*multipart.FileHeader) ([]artifact.File, error) {
	files := make([]artifact.File, 0, len(headers))
	for _, fh := range headers {
		f, err := fh.Open()
		if err != nil {
			return nil, fmt.Errorf("open upload %s: %w", fh.Filename, err)
		}
		content, err := io.ReadAll(f)
		f.Close()
		if err != nil {
			return nil, fmt.Errorf("read upload %s: %w", fh.Filename, err)
		}

		files = append(files, artifact.File{
			Name:    fh.Filename,
			Content: string(content),
		})
	}

	return files, nil
}

func containsFile(files []artifact.File, name string) bool {
	for _, f := range files {
		if f.Name == name {
			return true
		}
	}

	return false
}

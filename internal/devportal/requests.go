package devportal

import (
	"errors"

	"github.com/go-playground/form/v4"
)

// RegisterRequest is the JSON body of POST /register.
type RegisterRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

func (r RegisterRequest) Validate() error {
	if r.Username == "" || r.Password == "" {
		return errors.New("username and password are required")
	}

	return nil
}

// PublishRequest is the metadata part of a multipart game upload. The
// artifact files ride alongside it in the "files" parts.
type PublishRequest struct {
	Name        string `form:"name"`
	Version     string `form:"version"`
	Description string `form:"description"`
	Type        string `form:"type"`
	MinPlayers  int    `form:"min_players"`
	MaxPlayers  int    `form:"max_players"`
	ServerFile  string `form:"server_file"`
}

func (r PublishRequest) Validate() error {
	switch {
	case r.Name == "":
		return errors.New("name is required")
	case r.Version == "":
		return errors.New("version is required")
	case r.ServerFile == "":
		return errors.New("server_file is required")
	case r.MinPlayers < 1:
		return errors.New("min_players must be at least 1")
	case r.MaxPlayers < r.MinPlayers:
		return errors.New("max_players must be at least min_players")
	}

	return nil
}

func newFormDecoder() *form.Decoder {
	return form.NewDecoder()
}

// Package client is a typed lobby client over the framed-JSON protocol,
// used by the lobbyctl command and the integration tests.
package client

import (
	"context"
	"encoding/json"
	"fmt"
	"net"

	"github.com/arcadelabs/arcade/internal/lobby"
	"github.com/arcadelabs/arcade/internal/wire"
)

// Client speaks the lobby protocol over one connection. It is not safe for
// concurrent use: the lobby allows one in-flight request per connection.
type Client struct {
	ch *wire.Channel

	// pushes received while waiting for a response, in arrival order.
	pending []lobby.Push
}

// Dial connects to a lobby over TCP.
func Dial(ctx context.Context, addr string) (*Client, error) {
	var d net.Dialer
	conn, err := d.DialContext(ctx, "tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("dial lobby: %w", err)
	}

	return New(conn), nil
}

// New wraps an established connection, whatever transport carries it.
func New(conn net.Conn) *Client {
	return &Client{ch: wire.NewChannel(conn)}
}

func (c *Client) Close() error {
	return c.ch.Close()
}

// call sends one request and decodes the response into resp. Pushes that
// arrive before the response are buffered for NextPush.
func (c *Client) call(req lobby.Request, resp any) error {
	if err := c.ch.Send(req); err != nil {
		return err
	}

	for {
		var raw json.RawMessage
		if err := c.ch.Receive(&raw); err != nil {
			return err
		}

		var envelope struct {
			Type string `json:"type"`
		}
		if err := json.Unmarshal(raw, &envelope); err != nil {
			return fmt.Errorf("decode envelope: %w", err)
		}

		if envelope.Type == lobby.PushRoomUpdate || envelope.Type == lobby.PushGameStarted {
			var push lobby.Push
			if err := json.Unmarshal(raw, &push); err != nil {
				return fmt.Errorf("decode push: %w", err)
			}
			c.pending = append(c.pending, push)
			continue
		}

		if err := json.Unmarshal(raw, resp); err != nil {
			return fmt.Errorf("decode response: %w", err)
		}
		return nil
	}
}

// NextPush returns the next unsolicited message, blocking until one
// arrives. Only call it with no request in flight.
func (c *Client) NextPush() (lobby.Push, error) {
	if len(c.pending) > 0 {
		push := c.pending[0]
		c.pending = c.pending[1:]
		return push, nil
	}

	var push lobby.Push
	if err := c.ch.Receive(&push); err != nil {
		return lobby.Push{}, err
	}

	return push, nil
}

func (c *Client) Register(username, password string) (lobby.Result, error) {
	var resp lobby.Result
	err := c.call(lobby.Request{Type: "register", Username: username, Password: password}, &resp)
	return resp, err
}

func (c *Client) Login(username, password string) (lobby.LoginResponse, error) {
	var resp lobby.LoginResponse
	err := c.call(lobby.Request{Type: "login", Username: username, Password: password}, &resp)
	return resp, err
}

func (c *Client) ListGames() (lobby.GamesResponse, error) {
	var resp lobby.GamesResponse
	err := c.call(lobby.Request{Type: "list_games"}, &resp)
	return resp, err
}

func (c *Client) GameDetail(gameID int64) (lobby.GameDetailResponse, error) {
	var resp lobby.GameDetailResponse
	err := c.call(lobby.Request{Type: "get_game_detail", GameID: gameID}, &resp)
	return resp, err
}

func (c *Client) DownloadGame(gameID int64) (lobby.DownloadResponse, error) {
	var resp lobby.DownloadResponse
	err := c.call(lobby.Request{Type: "download_game", GameID: gameID}, &resp)
	return resp, err
}

func (c *Client) CreateRoom(gameID int64) (lobby.RoomResponse, error) {
	var resp lobby.RoomResponse
	err := c.call(lobby.Request{Type: "create_room", GameID: gameID}, &resp)
	return resp, err
}

func (c *Client) ListRooms() (lobby.RoomsResponse, error) {
	var resp lobby.RoomsResponse
	err := c.call(lobby.Request{Type: "list_rooms"}, &resp)
	return resp, err
}

func (c *Client) JoinRoom(roomID int64) (lobby.RoomResponse, error) {
	var resp lobby.RoomResponse
	err := c.call(lobby.Request{Type: "join_room", RoomID: roomID}, &resp)
	return resp, err
}

func (c *Client) LeaveRoom() (lobby.LeaveResponse, error) {
	var resp lobby.LeaveResponse
	err := c.call(lobby.Request{Type: "leave_room"}, &resp)
	return resp, err
}

func (c *Client) StartGame() (lobby.StartResponse, error) {
	var resp lobby.StartResponse
	err := c.call(lobby.Request{Type: "start_game"}, &resp)
	return resp, err
}

func (c *Client) RoomStatus() (lobby.StatusResponse, error) {
	var resp lobby.StatusResponse
	err := c.call(lobby.Request{Type: "get_room_status"}, &resp)
	return resp, err
}

func (c *Client) AddRating(gameID int64, rating int, comment string) (lobby.Result, error) {
	var resp lobby.Result
	err := c.call(lobby.Request{Type: "add_rating", GameID: gameID, Rating: rating, Comment: comment}, &resp)
	return resp, err
}

func (c *Client) Ratings(gameID int64) (lobby.RatingsResponse, error) {
	var resp lobby.RatingsResponse
	err := c.call(lobby.Request{Type: "get_ratings", GameID: gameID}, &resp)
	return resp, err
}

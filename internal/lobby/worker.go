package lobby

import (
	"context"
	"errors"
	"net"

	"github.com/arcadelabs/arcade/internal/wire"
)

// handleConn is the per-connection worker: read one framed request, dispatch
// it, write the framed response, repeat. The worker owns all reads on its
// connection; pushes from other workers go through the channel's write lock.
func (s *Server) handleConn(conn net.Conn) {
	defer conn.Close()

	ch := wire.NewChannel(conn)
	logger := s.logger.With("remote", conn.RemoteAddr())

	var sess *Session
	defer func() {
		// A dropped connection must free everything the client held: the
		// session registration and, if it was in a room, its membership
		// (possibly tearing down the room and its game-server process).
		if sess == nil {
			return
		}
		if _, err := s.lobby.LeaveRoom(sess); err != nil && !errors.Is(err, ErrNotInRoom) {
			logger.Warn("leave room on disconnect", "error", err)
		}
		s.lobby.CloseSession(sess.PlayerID)
	}()

	for {
		var req Request
		if err := ch.Receive(&req); err != nil {
			var malformed *wire.MalformedError
			if errors.As(err, &malformed) {
				logger.Warn("malformed request",
					"raw", string(malformed.Raw),
					"error", malformed,
				)
				if err := ch.Send(fail("malformed request")); err != nil {
					return
				}
				continue
			}

			if !errors.Is(err, wire.ErrConnectionLost) {
				logger.Error("receive request", "error", err)
			}
			return
		}

		resp := s.dispatch(ch, &sess, req)
		if err := ch.Send(resp); err != nil {
			logger.Warn("send response", "error", err)
			return
		}
	}
}

// dispatch routes one request to its handler and translates domain failures
// into a failed result for the requesting client only.
func (s *Server) dispatch(ch *wire.Channel, sess **Session, req Request) any {
	ctx := context.Background()

	switch req.Type {
	case "register":
		return s.handleRegister(ctx, req)
	case "login":
		return s.handleLogin(ctx, ch, sess, req)
	case "list_games":
		return s.handleListGames(ctx)
	case "get_game_detail":
		return s.handleGameDetail(ctx, req)
	case "get_ratings":
		return s.handleGetRatings(ctx, req)
	case "download_game":
		return s.handleDownload(ctx, *sess, req)
	case "add_rating":
		return s.handleAddRating(ctx, *sess, req)
	case "create_room":
		return s.handleCreateRoom(ctx, *sess, req)
	case "list_rooms":
		return RoomsResponse{Result: ok(), Rooms: s.lobby.ListRooms()}
	case "join_room":
		return s.handleJoinRoom(*sess, req)
	case "leave_room":
		return s.handleLeaveRoom(*sess)
	case "start_game":
		return s.handleStartGame(*sess)
	case "get_room_status":
		return s.handleRoomStatus(*sess)
	default:
		return fail("unknown request type")
	}
}

func (s *Server) handleRegister(ctx context.Context, req Request) any {
	if req.Username == "" || req.Password == "" {
		return fail("username and password are required")
	}

	if err := s.store.RegisterPlayer(ctx, req.Username, req.Password); err != nil {
		return fail(err.Error())
	}

	return okMessage("registered")
}

func (s *Server) handleLogin(ctx context.Context, ch *wire.Channel, sess **Session, req Request) any {
	if *sess != nil {
		return fail("already logged in")
	}
	if req.Username == "" || req.Password == "" {
		return fail("username and password are required")
	}

	player, err := s.store.AuthenticatePlayer(ctx, req.Username, req.Password)
	if err != nil {
		return fail(err.Error())
	}

	opened, err := s.lobby.OpenSession(player, ch)
	if err != nil {
		return fail(err.Error())
	}
	*sess = opened

	return LoginResponse{Result: ok(), Player: &player}
}

func (s *Server) handleListGames(ctx context.Context) any {
	games, err := s.store.ListActiveGames(ctx)
	if err != nil {
		return fail(err.Error())
	}

	return GamesResponse{Result: ok(), Games: games}
}

func (s *Server) handleGameDetail(ctx context.Context, req Request) any {
	game, err := s.store.GetGame(ctx, req.GameID)
	if err != nil {
		return fail(err.Error())
	}

	ratings, err := s.store.ListRatings(ctx, game.ID, 10)
	if err != nil {
		return fail(err.Error())
	}

	return GameDetailResponse{Result: ok(), Game: &game, Ratings: ratings}
}

func (s *Server) handleGetRatings(ctx context.Context, req Request) any {
	ratings, err := s.store.ListRatings(ctx, req.GameID, 10)
	if err != nil {
		return fail(err.Error())
	}

	return RatingsResponse{Result: ok(), Ratings: ratings}
}

func (s *Server) handleDownload(ctx context.Context, sess *Session, req Request) any {
	if sess == nil {
		return fail(ErrNotLoggedIn.Error())
	}

	game, err := s.store.GetGame(ctx, req.GameID)
	if err != nil {
		return fail(err.Error())
	}
	if !game.Active {
		return fail("game is no longer available")
	}

	files, err := s.artifacts.Load(game.Name, game.Version)
	if err != nil {
		return fail("game files are not available")
	}

	// The download only counts once the store confirmed it.
	if err := s.store.RecordDownload(ctx, sess.PlayerID, game.ID, game.Version); err != nil {
		return fail(err.Error())
	}

	return DownloadResponse{Result: ok(), GameInfo: &game, Files: files}
}

func (s *Server) handleAddRating(ctx context.Context, sess *Session, req Request) any {
	if sess == nil {
		return fail(ErrNotLoggedIn.Error())
	}
	if req.Rating < 1 || req.Rating > 5 {
		return fail("rating must be between 1 and 5")
	}

	if err := s.store.AddRating(ctx, req.GameID, sess.PlayerID, req.Rating, req.Comment); err != nil {
		return fail(err.Error())
	}

	return okMessage("rating recorded")
}

func (s *Server) handleCreateRoom(ctx context.Context, sess *Session, req Request) any {
	if sess == nil {
		return fail(ErrNotLoggedIn.Error())
	}

	// The catalog lookup is the durable part; the room exists in memory
	// only after the store confirmed the game.
	game, err := s.store.GetGame(ctx, req.GameID)
	if err != nil {
		return fail(err.Error())
	}
	if !game.Active {
		return fail("game is no longer available")
	}

	snap, err := s.lobby.CreateRoom(sess, game)
	if err != nil {
		return fail(err.Error())
	}

	return RoomResponse{Result: ok(), Room: &snap}
}

func (s *Server) handleJoinRoom(sess *Session, req Request) any {
	if sess == nil {
		return fail(ErrNotLoggedIn.Error())
	}

	snap, err := s.lobby.JoinRoom(sess, req.RoomID)
	if err != nil {
		return fail(err.Error())
	}

	return RoomResponse{Result: ok(), Room: &snap}
}

func (s *Server) handleLeaveRoom(sess *Session) any {
	if sess == nil {
		return fail(ErrNotLoggedIn.Error())
	}

	newHost, err := s.lobby.LeaveRoom(sess)
	if err != nil {
		return fail(err.Error())
	}

	return LeaveResponse{Result: okMessage("left room"), NewHost: newHost}
}

func (s *Server) handleStartGame(sess *Session) any {
	if sess == nil {
		return fail(ErrNotLoggedIn.Error())
	}

	info, err := s.lobby.StartGame(sess)
	if err != nil {
		return fail(err.Error())
	}

	return StartResponse{Result: okMessage("game server started"), ServerInfo: &info}
}

func (s *Server) handleRoomStatus(sess *Session) any {
	if sess == nil {
		return fail(ErrNotLoggedIn.Error())
	}

	snap, info, err := s.lobby.RoomStatus(sess)
	if err != nil {
		return fail(err.Error())
	}

	return StatusResponse{Result: ok(), Room: &snap, Status: snap.Status, ServerInfo: info}
}

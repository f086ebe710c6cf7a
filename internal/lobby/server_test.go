package lobby_test

import (
	"context"
	"net"
	"testing"
	"time"

	"github.com/arcadelabs/arcade/internal/artifact"
	"github.com/arcadelabs/arcade/internal/client"
	"github.com/arcadelabs/arcade/internal/lobby"
	"github.com/arcadelabs/arcade/internal/store"
	"github.com/arcadelabs/arcade/internal/store/memstore"
	"github.com/arcadelabs/arcade/internal/wire"
	"golang.org/x/sync/errgroup"
)

// testServer is a lobby server on a loopback listener with an in-memory
// store and a fake launcher.
type testServer struct {
	addr      string
	store     *memstore.Store
	launcher  *fakeLauncher
	artifacts *artifact.Library
	server    *lobby.Server
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()

	st := memstore.New()
	launcher := newFakeLauncher()
	artifacts := artifact.NewLibrary(t.TempDir())

	lob := lobby.New(lobby.Config{
		Launcher:      launcher,
		AdvertiseHost: "127.0.0.1",
	})
	server := lobby.NewServer(lob, st, artifacts, nil)

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}

	var eg errgroup.Group
	eg.Go(func() error {
		return server.Serve(ln)
	})
	t.Cleanup(func() {
		server.Close()
		ln.Close()
		if err := eg.Wait(); err != nil {
			t.Errorf("serve: %v", err)
		}
	})

	return &testServer{
		addr:      ln.Addr().String(),
		store:     st,
		launcher:  launcher,
		artifacts: artifacts,
		server:    server,
	}
}

// publishGame seeds one active game with its artifact installed.
func (ts *testServer) publishGame(t *testing.T, minPlayers, maxPlayers int) store.Game {
	t.Helper()

	ctx := context.Background()
	if err := ts.store.RegisterDeveloper(ctx, "studio", "hunter2"); err != nil {
		t.Fatalf("RegisterDeveloper: %v", err)
	}
	dev, err := ts.store.AuthenticateDeveloper(ctx, "studio", "hunter2")
	if err != nil {
		t.Fatalf("AuthenticateDeveloper: %v", err)
	}

	err = ts.artifacts.Save("skirmish", "1.0.0", []artifact.File{
		{Name: "server.py", Content: "print('serving')\n"},
		{Name: "client.py", Content: "print('playing')\n"},
	})
	if err != nil {
		t.Fatalf("Save artifact: %v", err)
	}

	game, err := ts.store.PublishGame(ctx, store.Submission{
		Name:        "skirmish",
		DeveloperID: dev.ID,
		Version:     "1.0.0",
		Description: "a small skirmish",
		Type:        "strategy",
		MinPlayers:  minPlayers,
		MaxPlayers:  maxPlayers,
		ServerFile:  "server.py",
	})
	if err != nil {
		t.Fatalf("PublishGame: %v", err)
	}

	return game
}

// connect registers and logs a player in over a fresh connection.
func (ts *testServer) connect(t *testing.T, username string) *client.Client {
	t.Helper()

	c, err := client.Dial(context.Background(), ts.addr)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	t.Cleanup(func() { c.Close() })

	if res, err := c.Register(username, "secret"); err != nil || !res.Success {
		t.Fatalf("register %s: %v %q", username, err, res.Message)
	}
	if res, err := c.Login(username, "secret"); err != nil || !res.Success {
		t.Fatalf("login %s: %v %q", username, err, res.Message)
	}

	return c
}

func TestServer_PlaySession(t *testing.T) {
	ts := newTestServer(t)
	game := ts.publishGame(t, 2, 4)

	alice := ts.connect(t, "alice")
	bob := ts.connect(t, "bob")

	games, err := alice.ListGames()
	if err != nil || !games.Success {
		t.Fatalf("ListGames: %v %q", err, games.Message)
	}
	if len(games.Games) != 1 || games.Games[0].ID != game.ID {
		t.Fatalf("expected game %d in catalog, got %+v", game.ID, games.Games)
	}

	download, err := alice.DownloadGame(game.ID)
	if err != nil || !download.Success {
		t.Fatalf("DownloadGame: %v %q", err, download.Message)
	}
	if len(download.Files) != 2 {
		t.Fatalf("expected 2 files, got %d", len(download.Files))
	}
	if got := ts.store.Downloads(game.ID); got != 1 {
		t.Fatalf("expected 1 recorded download, got %d", got)
	}

	created, err := alice.CreateRoom(game.ID)
	if err != nil || !created.Success {
		t.Fatalf("CreateRoom: %v %q", err, created.Message)
	}

	joined, err := bob.JoinRoom(created.Room.RoomID)
	if err != nil || !joined.Success {
		t.Fatalf("JoinRoom: %v %q", err, joined.Message)
	}

	// Alice, already in the room, is told about bob.
	push, err := alice.NextPush()
	if err != nil {
		t.Fatalf("NextPush: %v", err)
	}
	if push.Type != lobby.PushRoomUpdate || push.Room.PlayerCount != 2 {
		t.Fatalf("expected room_update with 2 players, got %+v", push)
	}

	started, err := alice.StartGame()
	if err != nil || !started.Success {
		t.Fatalf("StartGame: %v %q", err, started.Message)
	}
	if started.ServerInfo.Host != "127.0.0.1" {
		t.Fatalf("expected advertise host, got %q", started.ServerInfo.Host)
	}

	// Bob learns where to connect without asking.
	push, err = bob.NextPush()
	if err != nil {
		t.Fatalf("NextPush: %v", err)
	}
	if push.Type != lobby.PushGameStarted {
		t.Fatalf("expected game_started, got %+v", push)
	}
	if push.ServerInfo.Port != started.ServerInfo.Port {
		t.Fatalf("expected port %d, got %d", started.ServerInfo.Port, push.ServerInfo.Port)
	}

	// A member who missed the push can still ask.
	status, err := bob.RoomStatus()
	if err != nil || !status.Success {
		t.Fatalf("RoomStatus: %v %q", err, status.Message)
	}
	if status.Status != lobby.StatusPlaying || status.ServerInfo == nil {
		t.Fatalf("expected playing status with server info, got %+v", status)
	}

	if res, err := alice.AddRating(game.ID, 5, "great"); err != nil || !res.Success {
		t.Fatalf("AddRating: %v %q", err, res.Message)
	}
	detail, err := bob.GameDetail(game.ID)
	if err != nil || !detail.Success {
		t.Fatalf("GameDetail: %v %q", err, detail.Message)
	}
	if len(detail.Ratings) != 1 || detail.Ratings[0].Rating != 5 {
		t.Fatalf("expected alice's rating, got %+v", detail.Ratings)
	}
}

func TestServer_SecondLoginRejected(t *testing.T) {
	ts := newTestServer(t)

	ts.connect(t, "alice")

	c, err := client.Dial(context.Background(), ts.addr)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	t.Cleanup(func() { c.Close() })

	res, err := c.Login("alice", "secret")
	if err != nil {
		t.Fatalf("Login: %v", err)
	}
	if res.Success {
		t.Fatal("expected second login to be rejected")
	}
}

func TestServer_DisconnectFreesRoomAndSession(t *testing.T) {
	ts := newTestServer(t)
	game := ts.publishGame(t, 2, 4)

	carol := ts.connect(t, "carol")
	if created, err := carol.CreateRoom(game.ID); err != nil || !created.Success {
		t.Fatalf("CreateRoom: %v", err)
	}

	if err := carol.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}

	// Teardown runs asynchronously after the disconnect.
	observer := ts.connect(t, "dave")
	waitFor(t, func() bool {
		rooms, err := observer.ListRooms()
		if err != nil {
			t.Fatalf("ListRooms: %v", err)
		}
		return len(rooms.Rooms) == 0
	})

	// The identity is free to log in again.
	c, err := client.Dial(context.Background(), ts.addr)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	t.Cleanup(func() { c.Close() })
	waitFor(t, func() bool {
		res, err := c.Login("carol", "secret")
		if err != nil {
			t.Fatalf("Login: %v", err)
		}
		return res.Success
	})
}

func TestServer_MalformedRequestKeepsConnection(t *testing.T) {
	ts := newTestServer(t)

	conn, err := net.Dial("tcp", ts.addr)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()

	ch := wire.NewChannel(conn)

	if _, err := conn.Write([]byte("#!not json\n")); err != nil {
		t.Fatalf("write garbage: %v", err)
	}

	var res lobby.Result
	if err := ch.Receive(&res); err != nil {
		t.Fatalf("Receive: %v", err)
	}
	if res.Success {
		t.Fatal("expected failure for malformed request")
	}

	// The same connection still serves well-formed requests.
	if err := ch.Send(lobby.Request{Type: "list_games"}); err != nil {
		t.Fatalf("Send: %v", err)
	}
	var games lobby.GamesResponse
	if err := ch.Receive(&games); err != nil {
		t.Fatalf("Receive games: %v", err)
	}
	if !games.Success {
		t.Fatalf("expected success, got %q", games.Message)
	}
}

func TestServer_RequestsBeforeLoginRejected(t *testing.T) {
	ts := newTestServer(t)
	game := ts.publishGame(t, 2, 4)

	c, err := client.Dial(context.Background(), ts.addr)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	t.Cleanup(func() { c.Close() })

	if created, err := c.CreateRoom(game.ID); err != nil {
		t.Fatalf("CreateRoom: %v", err)
	} else if created.Success {
		t.Fatal("expected create_room without login to fail")
	}

	// The catalog is browsable without a session.
	games, err := c.ListGames()
	if err != nil || !games.Success {
		t.Fatalf("ListGames: %v %q", err, games.Message)
	}
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()

	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}

	t.Fatal("condition not met in time")
}

// Command lobbyctl is a command-line lobby client for players: browse the
// catalog, download games, host or join rooms, leave ratings.
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/arcadelabs/arcade/internal/client"
	"github.com/arcadelabs/arcade/internal/lobby"
	"github.com/urfave/cli/v3"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cmd := &cli.Command{
		Name:  "lobbyctl",
		Usage: "play games through an arcade lobby",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "addr",
				Usage:   "lobby address",
				Value:   "localhost:6002",
				Sources: cli.EnvVars("ARCADE_ADDR"),
			},
			&cli.StringFlag{
				Name:    "username",
				Aliases: []string{"u"},
				Usage:   "player account name",
				Sources: cli.EnvVars("ARCADE_USERNAME"),
			},
			&cli.StringFlag{
				Name:    "password",
				Aliases: []string{"p"},
				Usage:   "player account password",
				Sources: cli.EnvVars("ARCADE_PASSWORD"),
			},
		},
		Commands: []*cli.Command{
			{
				Name:   "register",
				Usage:  "create a player account",
				Action: runRegister,
			},
			{
				Name:   "games",
				Usage:  "list playable games",
				Action: runGames,
			},
			{
				Name:      "game",
				Usage:     "show one game with its ratings",
				ArgsUsage: "<game-id>",
				Action:    runGameDetail,
			},
			{
				Name:      "download",
				Usage:     "download a game's files",
				ArgsUsage: "<game-id>",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:  "dir",
						Usage: "directory to unpack into",
						Value: ".",
					},
				},
				Action: runDownload,
			},
			{
				Name:   "rooms",
				Usage:  "list rooms waiting for players",
				Action: runRooms,
			},
			{
				Name:      "host",
				Usage:     "create a room and start the game once it fills up",
				ArgsUsage: "<game-id>",
				Action:    runHost,
			},
			{
				Name:      "join",
				Usage:     "join a room and wait for the game to start",
				ArgsUsage: "<room-id>",
				Action:    runJoin,
			},
			{
				Name:      "rate",
				Usage:     "rate a game from 1 to 5",
				ArgsUsage: "<game-id> <rating>",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:  "comment",
						Usage: "optional review text",
					},
				},
				Action: runRate,
			},
		},
	}

	if err := cmd.Run(ctx, os.Args); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

func runRegister(ctx context.Context, cmd *cli.Command) error {
	c, err := client.Dial(ctx, cmd.String("addr"))
	if err != nil {
		return err
	}
	defer c.Close()

	res, err := c.Register(cmd.String("username"), cmd.String("password"))
	if err != nil {
		return err
	}
	if !res.Success {
		return errors.New(res.Message)
	}

	fmt.Println("registered", cmd.String("username"))
	return nil
}

func runGames(ctx context.Context, cmd *cli.Command) error {
	c, err := login(ctx, cmd)
	if err != nil {
		return err
	}
	defer c.Close()

	resp, err := c.ListGames()
	if err != nil {
		return err
	}
	if !resp.Success {
		return errors.New(resp.Message)
	}

	for _, g := range resp.Games {
		fmt.Printf("%d\t%s %s\tby %s\t%d-%d players\n",
			g.ID, g.Name, g.Version, g.Developer, g.MinPlayers, g.MaxPlayers)
	}
	return nil
}

func runGameDetail(ctx context.Context, cmd *cli.Command) error {
	gameID, err := argInt64(cmd, 0, "game-id")
	if err != nil {
		return err
	}

	c, err := login(ctx, cmd)
	if err != nil {
		return err
	}
	defer c.Close()

	detail, err := c.GameDetail(gameID)
	if err != nil {
		return err
	}
	if !detail.Success {
		return errors.New(detail.Message)
	}

	g := detail.Game
	fmt.Printf("%s %s by %s\n", g.Name, g.Version, g.Developer)
	fmt.Printf("  %s\n", g.Description)
	fmt.Printf("  type %s, %d-%d players\n", g.Type, g.MinPlayers, g.MaxPlayers)

	ratings, err := c.Ratings(gameID)
	if err != nil {
		return err
	}
	for _, r := range ratings.Ratings {
		fmt.Printf("  %s: %d/5 %s\n", r.Username, r.Rating, r.Comment)
	}
	return nil
}

func runDownload(ctx context.Context, cmd *cli.Command) error {
	gameID, err := argInt64(cmd, 0, "game-id")
	if err != nil {
		return err
	}

	c, err := login(ctx, cmd)
	if err != nil {
		return err
	}
	defer c.Close()

	resp, err := c.DownloadGame(gameID)
	if err != nil {
		return err
	}
	if !resp.Success {
		return errors.New(resp.Message)
	}

	dir := filepath.Join(cmd.String("dir"), resp.GameInfo.Name)
	for _, f := range resp.Files {
		if !filepath.IsLocal(filepath.FromSlash(f.Name)) {
			return fmt.Errorf("refusing to write %q outside %s", f.Name, dir)
		}
		path := filepath.Join(dir, filepath.FromSlash(f.Name))
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return err
		}
		if err := os.WriteFile(path, []byte(f.Content), 0o755); err != nil {
			return err
		}
	}

	fmt.Printf("downloaded %s %s to %s (%d files)\n",
		resp.GameInfo.Name, resp.GameInfo.Version, dir, len(resp.Files))
	return nil
}

func runRooms(ctx context.Context, cmd *cli.Command) error {
	c, err := login(ctx, cmd)
	if err != nil {
		return err
	}
	defer c.Close()

	resp, err := c.ListRooms()
	if err != nil {
		return err
	}
	if !resp.Success {
		return errors.New(resp.Message)
	}

	if len(resp.Rooms) == 0 {
		fmt.Println("no rooms waiting")
		return nil
	}
	for _, r := range resp.Rooms {
		fmt.Printf("room %d\t%s\thost %s\t%d/%d players\n",
			r.RoomID, r.GameName, r.Host, r.PlayerCount, r.MaxPlayers)
	}
	return nil
}

func runHost(ctx context.Context, cmd *cli.Command) error {
	gameID, err := argInt64(cmd, 0, "game-id")
	if err != nil {
		return err
	}

	c, err := login(ctx, cmd)
	if err != nil {
		return err
	}
	defer c.Close()

	created, err := c.CreateRoom(gameID)
	if err != nil {
		return err
	}
	if !created.Success {
		return errors.New(created.Message)
	}

	room := created.Room
	fmt.Printf("room %d created for %s, waiting for %d players\n",
		room.RoomID, room.GameName, room.MaxPlayers)

	// Watch the room fill up; once everyone is in, start.
	for room.PlayerCount < room.MaxPlayers {
		push, err := c.NextPush()
		if err != nil {
			return err
		}
		if push.Type != lobby.PushRoomUpdate {
			continue
		}
		room = push.Room
		fmt.Printf("  %d/%d players: %v\n", room.PlayerCount, room.MaxPlayers, room.Players)
	}

	started, err := c.StartGame()
	if err != nil {
		return err
	}
	if !started.Success {
		return errors.New(started.Message)
	}

	printServer(started.ServerInfo)
	return nil
}

func runJoin(ctx context.Context, cmd *cli.Command) error {
	roomID, err := argInt64(cmd, 0, "room-id")
	if err != nil {
		return err
	}

	c, err := login(ctx, cmd)
	if err != nil {
		return err
	}
	defer c.Close()

	joined, err := c.JoinRoom(roomID)
	if err != nil {
		return err
	}
	if !joined.Success {
		return errors.New(joined.Message)
	}

	fmt.Printf("joined room %d for %s, waiting for the host to start\n",
		joined.Room.RoomID, joined.Room.GameName)

	for {
		push, err := c.NextPush()
		if err != nil {
			return err
		}
		switch push.Type {
		case lobby.PushRoomUpdate:
			fmt.Printf("  %d/%d players: %v\n",
				push.Room.PlayerCount, push.Room.MaxPlayers, push.Room.Players)
		case lobby.PushGameStarted:
			printServer(push.ServerInfo)
			return nil
		}
	}
}

func runRate(ctx context.Context, cmd *cli.Command) error {
	gameID, err := argInt64(cmd, 0, "game-id")
	if err != nil {
		return err
	}
	rating, err := argInt64(cmd, 1, "rating")
	if err != nil {
		return err
	}

	c, err := login(ctx, cmd)
	if err != nil {
		return err
	}
	defer c.Close()

	res, err := c.AddRating(gameID, int(rating), cmd.String("comment"))
	if err != nil {
		return err
	}
	if !res.Success {
		return errors.New(res.Message)
	}

	fmt.Println("rating saved")
	return nil
}

// login dials the lobby and signs the player in.
func login(ctx context.Context, cmd *cli.Command) (*client.Client, error) {
	username := cmd.String("username")
	password := cmd.String("password")
	if username == "" || password == "" {
		return nil, errors.New("username and password are required")
	}

	c, err := client.Dial(ctx, cmd.String("addr"))
	if err != nil {
		return nil, err
	}

	resp, err := c.Login(username, password)
	if err != nil {
		c.Close()
		return nil, err
	}
	if !resp.Success {
		c.Close()
		return nil, errors.New(resp.Message)
	}

	return c, nil
}

func argInt64(cmd *cli.Command, n int, name string) (int64, error) {
	arg := cmd.Args().Get(n)
	if arg == "" {
		return 0, fmt.Errorf("missing %s argument", name)
	}

	var v int64
	if _, err := fmt.Sscan(arg, &v); err != nil {
		return 0, fmt.Errorf("invalid %s %q", name, arg)
	}

	return v, nil
}

func printServer(info *lobby.ServerInfo) {
	if info == nil {
		fmt.Println("game started")
		return
	}

	fmt.Printf("game started: %s at %s:%d\n", info.GameName, info.Host, info.Port)
}

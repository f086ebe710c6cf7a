package wire_test

import (
	"errors"
	"net"
	"reflect"
	"testing"
	"time"

	"github.com/arcadelabs/arcade/internal/wire"
	"go.uber.org/goleak"
	"golang.org/x/sync/errgroup"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

func TestChannel_RoundTrip(t *testing.T) {
	client, server := net.Pipe()
	defer client.Close()
	defer server.Close()

	in := wire.NewChannel(client)
	out := wire.NewChannel(server)

	sent := map[string]any{
		"type":    "login",
		"attempt": float64(2),
		"nested":  map[string]any{"ok": true},
	}

	var eg errgroup.Group
	eg.Go(func() error {
		return in.Send(sent)
	})

	var got map[string]any
	if err := out.Receive(&got); err != nil {
		t.Fatalf("Receive: %s", err)
	}
	if err := eg.Wait(); err != nil {
		t.Fatalf("Send: %s", err)
	}

	if !reflect.DeepEqual(got, sent) {
		t.Errorf("expected %v, got %v", sent, got)
	}
}

func TestChannel_BackToBackMessages(t *testing.T) {
	client, server := net.Pipe()
	defer client.Close()
	defer server.Close()

	ch := wire.NewChannel(server)

	// Two messages in a single write must be received whole, one per call.
	var eg errgroup.Group
	eg.Go(func() error {
		_, err := client.Write([]byte(`{"seq":1}{"seq":2}`))
		return err
	})

	for want := 1; want <= 2; want++ {
		var msg struct {
			Seq int `json:"seq"`
		}
		if err := ch.Receive(&msg); err != nil {
			t.Fatalf("receive message %d: %s", want, err)
		}
		if msg.Seq != want {
			t.Errorf("expected seq %d, got %d", want, msg.Seq)
		}
	}

	if err := eg.Wait(); err != nil {
		t.Fatalf("write: %s", err)
	}
}

func TestChannel_SplitMessage(t *testing.T) {
	client, server := net.Pipe()
	defer client.Close()
	defer server.Close()

	ch := wire.NewChannel(server)

	var eg errgroup.Group
	eg.Go(func() error {
		if _, err := client.Write([]byte(`{"username":"al`)); err != nil {
			return err
		}
		time.Sleep(10 * time.Millisecond)
		_, err := client.Write([]byte(`ice"}`))
		return err
	})

	var msg struct {
		Username string `json:"username"`
	}
	if err := ch.Receive(&msg); err != nil {
		t.Fatalf("Receive: %s", err)
	}
	if msg.Username != "alice" {
		t.Errorf("expected username alice, got %q", msg.Username)
	}

	if err := eg.Wait(); err != nil {
		t.Fatalf("write: %s", err)
	}
}

func TestChannel_ConnectionLost(t *testing.T) {
	client, server := net.Pipe()
	defer server.Close()

	ch := wire.NewChannel(server)

	// Peer closes mid-message.
	var eg errgroup.Group
	eg.Go(func() error {
		if _, err := client.Write([]byte(`{"type":"crea`)); err != nil {
			return err
		}
		return client.Close()
	})

	var msg map[string]any
	err := ch.Receive(&msg)
	if !errors.Is(err, wire.ErrConnectionLost) {
		t.Errorf("expected ErrConnectionLost, got %v", err)
	}

	if err := eg.Wait(); err != nil {
		t.Fatalf("write: %s", err)
	}
}

func TestChannel_MalformedMessage(t *testing.T) {
	client, server := net.Pipe()
	defer client.Close()
	defer server.Close()

	ch := wire.NewChannel(server)

	var eg errgroup.Group
	eg.Go(func() error {
		if _, err := client.Write([]byte(`#!garbage`)); err != nil {
			return err
		}
		// A valid message after the garbage is still delivered.
		_, err := client.Write([]byte(`{"type":"list_games"}`))
		return err
	})

	var msg map[string]any
	err := ch.Receive(&msg)

	var malformed *wire.MalformedError
	if !errors.As(err, &malformed) {
		t.Fatalf("expected MalformedError, got %v", err)
	}
	if len(malformed.Raw) == 0 {
		t.Error("expected raw bytes in MalformedError")
	}

	if err := ch.Receive(&msg); err != nil {
		t.Fatalf("receive after malformed: %s", err)
	}
	if msg["type"] != "list_games" {
		t.Errorf("expected type list_games, got %v", msg["type"])
	}

	if err := eg.Wait(); err != nil {
		t.Fatalf("write: %s", err)
	}
}

func TestChannel_WrongShapeKeepsFollowingMessage(t *testing.T) {
	client, server := net.Pipe()
	defer client.Close()
	defer server.Close()

	ch := wire.NewChannel(server)

	// A value of the wrong shape and the next message in one segment: the
	// bad value is rejected, the one behind it must still arrive.
	var eg errgroup.Group
	eg.Go(func() error {
		_, err := client.Write([]byte(`{"seq":"oops"}{"seq":2}`))
		return err
	})

	var msg struct {
		Seq int `json:"seq"`
	}
	err := ch.Receive(&msg)

	var malformed *wire.MalformedError
	if !errors.As(err, &malformed) {
		t.Fatalf("expected MalformedError, got %v", err)
	}

	if err := ch.Receive(&msg); err != nil {
		t.Fatalf("receive after wrong shape: %s", err)
	}
	if msg.Seq != 2 {
		t.Errorf("expected seq 2, got %d", msg.Seq)
	}

	if err := eg.Wait(); err != nil {
		t.Fatalf("write: %s", err)
	}
}

func TestChannel_ConcurrentSends(t *testing.T) {
	client, server := net.Pipe()
	defer client.Close()
	defer server.Close()

	in := wire.NewChannel(client)
	out := wire.NewChannel(server)

	const senders = 8

	var eg errgroup.Group
	for i := 0; i < senders; i++ {
		eg.Go(func() error {
			return in.Send(map[string]any{"type": "room_update"})
		})
	}

	// Every message arrives whole, no interleaved bytes.
	for i := 0; i < senders; i++ {
		var msg struct {
			Type string `json:"type"`
		}
		if err := out.Receive(&msg); err != nil {
			t.Fatalf("receive message %d: %s", i, err)
		}
		if msg.Type != "room_update" {
			t.Errorf("expected type room_update, got %q", msg.Type)
		}
	}

	if err := eg.Wait(); err != nil {
		t.Fatalf("send: %s", err)
	}
}

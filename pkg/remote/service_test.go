package remote

import (
	"net"
	"testing"
	"time"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus/hooks/test"

	"github.com/NotCoffee418/elster_gateway/pkg/control"
)

func listen(t *testing.T) net.Listener {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	t.Cleanup(func() { ln.Close() })
	return ln
}

func accept(t *testing.T, ln net.Listener) net.Conn {
	t.Helper()
	conn, err := ln.Accept()
	if err != nil {
		t.Fatalf("accept: %v", err)
	}
	t.Cleanup(func() { conn.Close() })
	return conn
}

func TestConnectSendsLogonAndLines(t *testing.T) {
	ln := listen(t)
	logger, _ := test.NewNullLogger()
	link := NewLink(ln.Addr().String(), "logon meter 2.2 1", logger, nil)
	if err := link.Connect(); err != nil {
		t.Fatalf("Connect err=%v", err)
	}
	defer link.Close()
	server := accept(t, ln)

	if err := link.SendLine("meter 2 1.000 2.000"); err != nil {
		t.Fatalf("SendLine err=%v", err)
	}
	server.SetReadDeadline(time.Now().Add(2 * time.Second))
	for _, want := range []string{"logon meter 2.2 1", "meter 2 1.000 2.000"} {
		got, err := control.ReadMessage(server)
		if err != nil || got != want {
			t.Fatalf("got %q err=%v want %q", got, err, want)
		}
	}
}

func TestPollAndReadCommand(t *testing.T) {
	ln := listen(t)
	logger, _ := test.NewNullLogger()
	link := NewLink(ln.Addr().String(), "logon meter 2.2 1", logger, nil)
	if err := link.Connect(); err != nil {
		t.Fatalf("Connect err=%v", err)
	}
	defer link.Close()
	server := accept(t, ln)

	if ready, err := link.Poll(10 * time.Millisecond); ready || err != nil {
		t.Fatalf("idle Poll ready=%v err=%v", ready, err)
	}

	if err := control.WriteMessage(server, "stats"); err != nil {
		t.Fatalf("WriteMessage err=%v", err)
	}
	if ready, err := link.Poll(2 * time.Second); !ready || err != nil {
		t.Fatalf("Poll ready=%v err=%v", ready, err)
	}
	text, err := control.NewChannel(link, logger, 3, 100*time.Millisecond).Read()
	if err != nil || text != "stats" {
		t.Fatalf("Read=%q err=%v", text, err)
	}
}

func TestPeerCloseDropsLink(t *testing.T) {
	ln := listen(t)
	logger, hook := test.NewNullLogger()
	link := NewLink(ln.Addr().String(), "logon meter 2.2 1", logger, nil)
	if err := link.Connect(); err != nil {
		t.Fatalf("Connect err=%v", err)
	}
	server := accept(t, ln)
	server.Close()

	if ready, _ := link.Poll(2 * time.Second); ready {
		t.Fatalf("closed peer must not look ready")
	}
	if link.Online() {
		t.Fatalf("link should be offline after peer close")
	}
	if e := hook.LastEntry(); e == nil || e.Message == "" {
		t.Fatalf("expected a warning about the lost connection")
	}
	if err := link.SendLine("meter 2 0.000 0.000"); !errors.Is(err, ErrOffline) {
		t.Fatalf("SendLine err=%v", err)
	}
}

func TestRedialBacksOff(t *testing.T) {
	dials := 0
	dial := func(string) (net.Conn, error) {
		dials++
		return nil, errors.New("connection refused")
	}
	logger, _ := test.NewNullLogger()
	link := NewLink("nowhere:1", "logon", logger, dial)
	if err := link.Connect(); err == nil {
		t.Fatalf("expected connect error")
	}
	for i := 0; i < 5; i++ {
		link.Poll(time.Millisecond)
	}
	if dials != 1 {
		t.Fatalf("dials=%d, backoff not honoured", dials)
	}
	if link.retry != baseRetryDelay {
		t.Fatalf("retry=%v", link.retry)
	}
}

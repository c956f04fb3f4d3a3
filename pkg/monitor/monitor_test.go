package monitor

import (
	"context"
	"encoding/json"
	"fmt"
	"net"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"

	"github.com/NotCoffee418/elster_gateway/pkg/control"
	"github.com/NotCoffee418/elster_gateway/pkg/types"
)

func startServer(t *testing.T) (*Server, *test.Hook, string) {
	t.Helper()
	logger, hook := test.NewNullLogger()
	logger.SetLevel(logrus.DebugLevel)
	s := NewServer(logger)
	s.now = func() time.Time { return time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC) }

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	go s.ServeGateways(ctx, ln)
	return s, hook, ln.Addr().String()
}

func dialGateway(t *testing.T, addr string, lines ...string) net.Conn {
	t.Helper()
	conn, err := net.Dial("tcp", addr)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	t.Cleanup(func() { conn.Close() })
	for _, line := range lines {
		if err := control.WriteMessage(conn, line); err != nil {
			t.Fatalf("write %q: %v", line, err)
		}
	}
	return conn
}

func eventually(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatalf("timed out waiting for %s", what)
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func TestMeterLineBecomesLatest(t *testing.T) {
	s, _, addr := startServer(t)
	dialGateway(t, addr, "logon meter 2.2 7", "meter 2 12345.678 987.654")

	eventually(t, "reading", func() bool { return s.Latest() != nil })
	r := s.Latest()
	if r.Gateway != "7" || r.ImportKWH != 12345.678 || r.ExportKWH != 987.654 {
		t.Fatalf("latest=%+v", r)
	}

	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/latest", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("status=%d", rec.Code)
	}
	var got types.MeterReading
	if err := json.Unmarshal(rec.Body.Bytes(), &got); err != nil || got.Gateway != "7" {
		t.Fatalf("body=%s err=%v", rec.Body.String(), err)
	}
}

func TestLatestBeforeAnyReading(t *testing.T) {
	logger, _ := test.NewNullLogger()
	rec := httptest.NewRecorder()
	NewServer(logger).Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/latest", nil))
	if rec.Code != http.StatusNotFound {
		t.Fatalf("status=%d", rec.Code)
	}
}

func TestEventsAreRelogged(t *testing.T) {
	_, hook, addr := startServer(t)
	dialGateway(t, addr, "logon meter 2.2 1", "event WARN Elster No data for last period")

	eventually(t, "event", func() bool {
		for _, e := range hook.AllEntries() {
			if e.Level == logrus.WarnLevel && e.Message == "No data for last period" {
				return e.Data["gateway"] == "1" && e.Data["program"] == "Elster"
			}
		}
		return false
	})
}

func TestCommandForwardedToGateways(t *testing.T) {
	s, _, addr := startServer(t)
	conn := dialGateway(t, addr, "logon meter 2.2 1")
	eventually(t, "logon", func() bool {
		ids := s.Gateways()
		return len(ids) == 1 && ids[0] == "1"
	})

	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/command", strings.NewReader("stats\n")))
	if rec.Code != http.StatusOK || !strings.Contains(rec.Body.String(), `"sent":1`) {
		t.Fatalf("status=%d body=%s", rec.Code, rec.Body.String())
	}

	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	text, err := control.ReadMessage(conn)
	if err != nil || text != "stats" {
		t.Fatalf("gateway got %q err=%v", text, err)
	}

	rec = httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/command", nil))
	if rec.Code != http.StatusMethodNotAllowed {
		t.Fatalf("GET /command status=%d", rec.Code)
	}
}

func TestCommandsDuringRepeatedLogon(t *testing.T) {
	s, _, addr := startServer(t)
	conn := dialGateway(t, addr)
	eventually(t, "connection", func() bool { return len(s.Gateways()) == 1 })

	done := make(chan error, 1)
	go func() {
		for i := 0; i < 50; i++ {
			if err := control.WriteMessage(conn, fmt.Sprintf("logon meter 2.2 %d", i)); err != nil {
				done <- err
				return
			}
		}
		done <- nil
	}()
	for i := 0; i < 50; i++ {
		if sent, err := s.SendCommand("stats"); err != nil || sent != 1 {
			t.Fatalf("SendCommand sent=%d err=%v", sent, err)
		}
	}
	if err := <-done; err != nil {
		t.Fatalf("logon write: %v", err)
	}
	eventually(t, "last logon", func() bool {
		ids := s.Gateways()
		return len(ids) == 1 && ids[0] == "49"
	})
}

func TestWebSocketReceivesReadings(t *testing.T) {
	s, _, addr := startServer(t)
	srv := httptest.NewServer(s.Handler())
	defer srv.Close()

	ws, _, err := websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(srv.URL, "http")+"/ws", nil)
	if err != nil {
		t.Fatalf("ws dial: %v", err)
	}
	defer ws.Close()
	eventually(t, "subscriber", func() bool {
		s.wsClientsMutex.RLock()
		defer s.wsClientsMutex.RUnlock()
		return len(s.wsClients) == 1
	})

	dialGateway(t, addr, "logon meter 2.2 3", "meter 2 1.000 2.000")

	ws.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, msg, err := ws.ReadMessage()
	if err != nil {
		t.Fatalf("ws read: %v", err)
	}
	r := types.MeterReadingFromJsonBytes(msg)
	if r == nil || r.Gateway != "3" || r.ExportKWH != 2 {
		t.Fatalf("ws message=%s", msg)
	}
}

// Package monitor is the server end of the gateway protocol. It accepts
// gateway connections, keeps the latest reading and relays readings to
// websocket subscribers. Commands posted over HTTP are forwarded to every
// connected gateway.
package monitor

import (
	"context"
	"io"
	"net"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"github.com/NotCoffee418/elster_gateway/pkg/control"
	"github.com/NotCoffee418/elster_gateway/pkg/types"
)

const writeTimeout = 5 * time.Second

// gateway is one connected meter gateway.
type gateway struct {
	conn    net.Conn
	id      string
	version string
	wmu     sync.Mutex
}

func (g *gateway) send(text string) error {
	g.wmu.Lock()
	defer g.wmu.Unlock()
	g.conn.SetWriteDeadline(time.Now().Add(writeTimeout))
	return control.WriteMessage(g.conn, text)
}

type Server struct {
	log logrus.FieldLogger
	now func() time.Time

	mu       sync.RWMutex
	gateways map[*gateway]struct{}
	latest   *types.MeterReading

	// ws clients for broadcasting readings
	wsClients      map[*websocket.Conn]bool
	wsClientsMutex sync.RWMutex
	wsWriteMutex   sync.Mutex
	upgrader       websocket.Upgrader
}

func NewServer(log logrus.FieldLogger) *Server {
	return &Server{
		log:       log,
		now:       time.Now,
		gateways:  make(map[*gateway]struct{}),
		wsClients: make(map[*websocket.Conn]bool),
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool {
				return true
			},
		},
	}
}

// ServeGateways accepts gateway connections on ln until ctx is cancelled.
func (s *Server) ServeGateways(ctx context.Context, ln net.Listener) error {
	go func() {
		<-ctx.Done()
		ln.Close()
	}()
	for {
		conn, err := ln.Accept()
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return errors.Wrap(err, "accept gateway")
		}
		go s.handleGateway(conn)
	}
}

func (s *Server) handleGateway(conn net.Conn) {
	g := &gateway{conn: conn, id: conn.RemoteAddr().String()}
	s.mu.Lock()
	s.gateways[g] = struct{}{}
	s.mu.Unlock()
	s.log.Infof("Gateway connected from %s", conn.RemoteAddr())

	defer func() {
		s.mu.Lock()
		delete(s.gateways, g)
		s.mu.Unlock()
		conn.Close()
		s.log.Infof("Gateway %s disconnected", g.id)
	}()

	for {
		line, err := control.ReadMessage(conn)
		if err != nil {
			if !errors.Is(err, io.EOF) {
				s.log.Warnf("Gateway %s: %v", g.id, err)
			}
			return
		}
		s.handleLine(g, line)
	}
}

func (s *Server) handleLine(g *gateway, line string) {
	fields := strings.Fields(line)
	if len(fields) == 0 {
		return
	}
	switch fields[0] {
	case "logon":
		// logon <kind> <version> <controller>
		if len(fields) >= 4 {
			s.mu.Lock()
			g.version, g.id = fields[2], fields[3]
			s.mu.Unlock()
		}
		s.log.Infof("Gateway %s logged on: %s", g.id, line)
	case "meter":
		reading, err := types.ParseMeterLine(g.id, line, s.now())
		if err != nil {
			s.log.Warnf("Gateway %s: %v", g.id, err)
			return
		}
		s.mu.Lock()
		s.latest = reading
		s.mu.Unlock()
		s.log.Debugf("Reading from %s: %s", g.id, line)
		s.broadcast(reading)
	case "event":
		s.logEvent(g, fields)
	default:
		s.log.Warnf("Gateway %s sent unknown line %q", g.id, line)
	}
}

// logEvent re-logs "event <SEV> <program> <message...>" at its severity.
func (s *Server) logEvent(g *gateway, fields []string) {
	if len(fields) < 3 {
		s.log.Warnf("Gateway %s sent malformed event", g.id)
		return
	}
	entry := s.log.WithField("gateway", g.id).WithField("program", fields[2])
	msg := strings.Join(fields[3:], " ")
	switch fields[1] {
	case "FATAL", "ERROR":
		entry.Error(msg)
	case "WARN":
		entry.Warn(msg)
	default:
		entry.Info(msg)
	}
}

func (s *Server) Latest() *types.MeterReading {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.latest
}

// Gateways lists the ids of connected gateways.
func (s *Server) Gateways() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	ids := make([]string, 0, len(s.gateways))
	for g := range s.gateways {
		ids = append(ids, g.id)
	}
	return ids
}

// SendCommand forwards text to every connected gateway and returns how
// many accepted it.
func (s *Server) SendCommand(text string) (int, error) {
	if _, err := control.Encode(text); err != nil {
		return 0, err
	}
	// id is written under mu by the connection goroutine, so copy it here.
	type target struct {
		g  *gateway
		id string
	}
	s.mu.RLock()
	targets := make([]target, 0, len(s.gateways))
	for g := range s.gateways {
		targets = append(targets, target{g: g, id: g.id})
	}
	s.mu.RUnlock()

	sent := 0
	for _, t := range targets {
		if err := t.g.send(text); err != nil {
			s.log.Warnf("Command to gateway %s failed: %v", t.id, err)
			continue
		}
		sent++
	}
	return sent, nil
}

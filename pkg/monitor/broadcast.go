package monitor

import (
	"time"

	"github.com/gorilla/websocket"

	"github.com/NotCoffee418/elster_gateway/pkg/types"
)

func (s *Server) broadcast(reading *types.MeterReading) {
	s.wsClientsMutex.RLock()
	clients := make([]*websocket.Conn, 0, len(s.wsClients))
	for client := range s.wsClients {
		clients = append(clients, client)
	}
	s.wsClientsMutex.RUnlock()

	msg := reading.ToJsonBytes()
	for _, client := range clients {
		if err := s.writeWebSocket(client, msg); err != nil {
			s.removeWebSocketClient(client)
		}
	}
}

// writeWebSocket holds wsWriteMutex, gorilla allows one writer per
// connection at a time.
func (s *Server) writeWebSocket(conn *websocket.Conn, msg []byte) error {
	s.wsWriteMutex.Lock()
	defer s.wsWriteMutex.Unlock()
	conn.SetWriteDeadline(time.Now().Add(writeTimeout))
	return conn.WriteMessage(websocket.TextMessage, msg)
}

func (s *Server) addWebSocketClient(conn *websocket.Conn) {
	s.wsClientsMutex.Lock()
	s.wsClients[conn] = true
	s.wsClientsMutex.Unlock()
}

func (s *Server) removeWebSocketClient(conn *websocket.Conn) {
	s.wsClientsMutex.Lock()
	delete(s.wsClients, conn)
	s.wsClientsMutex.Unlock()
	conn.Close()
}

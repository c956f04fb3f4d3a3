package monitor

import (
	"encoding/json"
	"io"
	"net/http"
	"strings"
)

// Handler serves the status, latest reading, websocket feed and command
// endpoints.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]any{
			"message":  "Elster Gateway Monitor",
			"status":   "running",
			"gateways": s.Gateways(),
		})
	})

	mux.HandleFunc("/latest", func(w http.ResponseWriter, r *http.Request) {
		reading := s.Latest()
		if reading == nil {
			writeJSON(w, http.StatusNotFound, map[string]string{
				"error": "No readings available yet",
			})
			return
		}
		writeJSON(w, http.StatusOK, reading)
	})

	mux.HandleFunc("/ws", s.serveWebSocket)

	mux.HandleFunc("/command", func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			writeJSON(w, http.StatusMethodNotAllowed, map[string]string{"error": "POST only"})
			return
		}
		body, err := io.ReadAll(io.LimitReader(r.Body, 4096))
		if err != nil {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
			return
		}
		text := strings.TrimSpace(string(body))
		sent, err := s.SendCommand(text)
		if err != nil {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
			return
		}
		s.log.Infof("Forwarded %q to %d gateways", text, sent)
		writeJSON(w, http.StatusOK, map[string]int{"sent": sent})
	})

	return mux
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func (s *Server) serveWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.log.Warnf("WebSocket upgrade error: %v", err)
		return
	}

	s.addWebSocketClient(conn)

	// Send current reading immediately if available
	if reading := s.Latest(); reading != nil {
		s.writeWebSocket(conn, reading.ToJsonBytes())
	}

	// Keep connection alive
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			s.removeWebSocketClient(conn)
			break
		}
	}
}

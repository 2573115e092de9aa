package app

import (
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/relabs-tech/env_telemetry/internal/config"
	"github.com/relabs-tech/env_telemetry/internal/env"
	log "github.com/sirupsen/logrus"
)

const wsWriteTimeout = 2 * time.Second

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		return true // Allow all origins for local development
	},
}

// telemetryHub keeps the latest message and fans it out to websocket
// clients.
type telemetryHub struct {
	mu      sync.RWMutex
	last    env.Message
	have    bool
	clients map[chan env.Message]struct{}
}

func newTelemetryHub() *telemetryHub {
	return &telemetryHub{clients: make(map[chan env.Message]struct{})}
}

func (h *telemetryHub) update(m env.Message) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.last = m
	h.have = true
	for ch := range h.clients {
		// Slow clients skip messages.
		select {
		case ch <- m:
		default:
		}
	}
}

func (h *telemetryHub) latest() (env.Message, bool) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.last, h.have
}

func (h *telemetryHub) subscribe() chan env.Message {
	ch := make(chan env.Message, 4)
	h.mu.Lock()
	h.clients[ch] = struct{}{}
	if h.have {
		ch <- h.last
	}
	h.mu.Unlock()
	return ch
}

func (h *telemetryHub) unsubscribe(ch chan env.Message) {
	h.mu.Lock()
	delete(h.clients, ch)
	h.mu.Unlock()
}

func (h *telemetryHub) handleLatest(w http.ResponseWriter, r *http.Request) {
	m, ok := h.latest()
	if !ok {
		http.Error(w, "no data yet", http.StatusServiceUnavailable)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(m); err != nil {
		log.Printf("json encode error: %v", err)
	}
}

func (h *telemetryHub) handleWS(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("web: websocket upgrade error: %v", err)
		return
	}
	defer conn.Close()

	ch := h.subscribe()
	defer h.unsubscribe(ch)

	// Reader goroutine only notices the client going away.
	closed := make(chan struct{})
	go func() {
		defer close(closed)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	for {
		select {
		case <-closed:
			return
		case m := <-ch:
			conn.SetWriteDeadline(time.Now().Add(wsWriteTimeout))
			if err := conn.WriteJSON(m); err != nil {
				if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
					log.Printf("web: websocket error: %v", err)
				}
				return
			}
		}
	}
}

func (h *telemetryHub) routes() *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("/api/env", h.handleLatest)
	mux.HandleFunc("/ws", h.handleWS)
	mux.HandleFunc("/metrics", metricsHandler)
	// Static files from ./web as the root
	mux.Handle("/", http.FileServer(http.Dir("web")))
	return mux
}

func RunWeb() error {
	cfg := config.Get()
	hub := newTelemetryHub()

	// 1) Connect to MQTT broker
	client, err := connectMQTT(cfg, cfg.MQTTClientIDWeb)
	if err != nil {
		return err
	}
	defer client.Disconnect(250)

	// 2) Subscribe to telemetry and update the hub on each message
	if err := subscribeJSON(client, cfg.TopicTelemetry, "web", func(m env.Message) {
		observe(m.Reading())
		hub.update(m)
	}); err != nil {
		return err
	}

	addr := fmt.Sprintf(":%d", cfg.WebServerPort)
	log.Printf("web server listening on %s", addr)
	return http.ListenAndServe(addr, hub.routes())
}

// Package server exposes the instrument over HTTP: a websocket stream of
// acquired spectra for front ends, a small control API, and Prometheus
// metrics. It is the only caller of the gm8050 core and owns acquisition
// pacing; the serial link is half-duplex, so everything funnels through
// the device's own operation serialization.
package server

import (
	"context"
	"encoding/json"
	"log"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/openfiberlab/gm8050-link/internal/gm8050"
)

// Server coordinates spectrum polling and broadcasts frames to websocket
// clients.
type Server struct {
	cfg *Config
	dev *gm8050.Device

	clients   map[*wsClient]struct{}
	clientsMu sync.RWMutex

	upgrader websocket.Upgrader
	metrics  *metrics

	lastMu    sync.RWMutex
	lastFrame *Frame
}

type wsClient struct {
	conn *websocket.Conn
	send chan []byte
}

// Frame is the JSON structure sent to websocket clients and returned by the
// one-shot scan endpoint.
type Frame struct {
	Spectrum *gm8050.Spectrum `json:"spectrum,omitempty"`
	Stamp    int64            `json:"stamp"` // Unix ms
}

// New creates a new Server around an already-constructed (not necessarily
// connected) device.
func New(cfg *Config, dev *gm8050.Device) *Server {
	return &Server{
		cfg:     cfg,
		dev:     dev,
		clients: make(map[*wsClient]struct{}),
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool { return true },
		},
		metrics: newMetrics(),
	}
}

// Run starts the HTTP server and, if enabled, the acquisition poll loop.
func (s *Server) Run(ctx context.Context) error {
	mux := http.NewServeMux()
	mux.HandleFunc("/ws", s.handleWS)
	mux.HandleFunc("/api/status", s.handleStatus)
	mux.HandleFunc("/api/config", s.handleConfig)
	mux.HandleFunc("/api/laser", s.handleLaser)
	mux.HandleFunc("/api/demod", s.handleDemod)
	mux.HandleFunc("/api/scan", s.handleScan)
	mux.HandleFunc("/api/params", s.handleParams)
	mux.HandleFunc("/api/centerwavelengths", s.handleCenterWavelengths)
	mux.Handle("/metrics", s.metrics.handler())

	if s.cfg.Poll.Enabled {
		go s.pollLoop(ctx)
	}

	srv := &http.Server{
		Addr:    s.cfg.Server.ListenAddr,
		Handler: mux,
	}

	go func() {
		<-ctx.Done()
		shutCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		srv.Shutdown(shutCtx)
	}()

	log.Printf("[server] listening on %s", s.cfg.Server.ListenAddr)
	err := srv.ListenAndServe()
	if err == http.ErrServerClosed {
		return nil
	}
	return err
}

// pollInterval returns the configured acquisition interval, floored to the
// worst-case duration of one acquisition: the scan settle plus seven
// request/response cycles (three parameter reads, four channel reads), each
// bounded by the response timeout. Scheduling a new cycle before the
// previous one's worst case has elapsed would just queue on the device lock.
func (s *Server) pollInterval() time.Duration {
	interval := time.Duration(s.cfg.Poll.IntervalMs) * time.Millisecond
	floor := time.Second + 7*time.Duration(s.cfg.Device.ResponseTimeoutMs)*time.Millisecond
	if interval < floor {
		log.Printf("[server] poll interval %v below worst-case cycle, using %v", interval, floor)
		return floor
	}
	return interval
}

func (s *Server) pollLoop(ctx context.Context) {
	ticker := time.NewTicker(s.pollInterval())
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if !s.dev.IsConnected() {
				continue
			}
			frame, err := s.acquire()
			if err != nil {
				log.Printf("[server] acquisition failed: %v", err)
				continue
			}
			s.broadcast(frame)
		}
	}
}

// acquire triggers a sweep and reads the full spectrum.
func (s *Server) acquire() (*Frame, error) {
	start := time.Now()
	if err := s.dev.TriggerScan(); err != nil {
		s.metrics.acquisitions.WithLabelValues("trigger_error").Inc()
		return nil, err
	}
	sp, err := s.dev.ReadSpectrum()
	if err != nil {
		s.metrics.acquisitions.WithLabelValues("read_error").Inc()
		return nil, err
	}
	s.metrics.cycleSeconds.Observe(time.Since(start).Seconds())
	s.metrics.acquisitions.WithLabelValues("ok").Inc()

	frame := &Frame{Spectrum: sp, Stamp: time.Now().UnixMilli()}
	s.lastMu.Lock()
	s.lastFrame = frame
	s.lastMu.Unlock()
	return frame, nil
}

func (s *Server) broadcast(frame *Frame) {
	data, err := json.Marshal(frame)
	if err != nil {
		log.Printf("[server] marshal frame: %v", err)
		return
	}
	s.clientsMu.RLock()
	defer s.clientsMu.RUnlock()
	for client := range s.clients {
		select {
		case client.send <- data:
		default:
			// Slow client: drop the frame rather than stall the loop.
		}
	}
}

func (s *Server) handleWS(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("[ws] upgrade error: %v", err)
		return
	}

	client := &wsClient{
		conn: conn,
		send: make(chan []byte, 16),
	}

	s.clientsMu.Lock()
	s.clients[client] = struct{}{}
	total := len(s.clients)
	s.clientsMu.Unlock()
	s.metrics.wsClients.Inc()
	log.Printf("[ws] client connected (%d total)", total)

	// Replay the most recent frame so a new client sees data immediately.
	s.lastMu.RLock()
	if s.lastFrame != nil {
		if data, err := json.Marshal(s.lastFrame); err == nil {
			client.send <- data
		}
	}
	s.lastMu.RUnlock()

	// Writer goroutine
	go func() {
		defer conn.Close()
		for msg := range client.send {
			if err := conn.WriteMessage(websocket.TextMessage, msg); err != nil {
				break
			}
		}
	}()

	// Reader goroutine: consumes keep-alives and detects disconnect.
	go func() {
		defer func() {
			s.clientsMu.Lock()
			delete(s.clients, client)
			total := len(s.clients)
			s.clientsMu.Unlock()
			close(client.send)
			s.metrics.wsClients.Dec()
			log.Printf("[ws] client disconnected (%d total)", total)
		}()
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				break
			}
		}
	}()
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, map[string]any{
		"connected": s.dev.IsConnected(),
		"polling":   s.cfg.Poll.Enabled,
		"port":      s.cfg.Device.PortPath,
	})
}

func (s *Server) handleConfig(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	writeJSON(w, s.cfg)
}

// switchRequest is the body of the laser and demodulation control posts.
type switchRequest struct {
	On bool `json:"on"`
}

func (s *Server) handleLaser(w http.ResponseWriter, r *http.Request) {
	var req switchRequest
	if !decodePost(w, r, &req) {
		return
	}

	var err error
	if req.On {
		err = s.dev.LaserOn()
	} else {
		err = s.dev.LaserOff()
	}
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadGateway)
		return
	}

	// Confirmation read; the write itself is fire-and-forget.
	confirmed, err := s.dev.LaserState()
	if err != nil {
		log.Printf("[server] laser confirmation read failed: %v", err)
		writeJSON(w, map[string]any{"on": req.On, "confirmed": false})
		return
	}
	writeJSON(w, map[string]any{"on": confirmed, "confirmed": true})
}

func (s *Server) handleDemod(w http.ResponseWriter, r *http.Request) {
	var req switchRequest
	if !decodePost(w, r, &req) {
		return
	}

	var err error
	if req.On {
		err = s.dev.StartDemodulation()
	} else {
		err = s.dev.StopDemodulation()
	}
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadGateway)
		return
	}
	writeJSON(w, map[string]any{"on": req.On})
}

func (s *Server) handleScan(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	frame, err := s.acquire()
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadGateway)
		return
	}
	s.broadcast(frame)
	writeJSON(w, frame)
}

func (s *Server) handleParams(w http.ResponseWriter, r *http.Request) {
	params, err := s.dev.ReadScanParameters()
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadGateway)
		return
	}
	writeJSON(w, params)
}

func (s *Server) handleCenterWavelengths(w http.ResponseWriter, r *http.Request) {
	wls, err := s.dev.ReadCenterWavelengths()
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadGateway)
		return
	}
	writeJSON(w, map[string]any{"centerWavelengths": wls})
}

func decodePost(w http.ResponseWriter, r *http.Request, dst any) bool {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return false
	}
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		http.Error(w, "bad request", http.StatusBadRequest)
		return false
	}
	return true
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Printf("[server] write response: %v", err)
	}
}

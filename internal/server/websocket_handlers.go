package server

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/gorilla/websocket"

	"github.com/rzqiy/deteksi-kwh/internal/acquire"
)

// WebSocket upgrader with reasonable defaults.
var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		// The verification UI is served from several hosts on the intranet.
		return true
	},
}

// WebSocketBatchRequest starts a batch run over a WebSocket connection.
// The reference sheet travels inline as CSV text.
type WebSocketBatchRequest struct {
	JSessionID   string `json:"jsessionid"`
	PoolACMT     string `json:"poolacmt"`
	BLTH         string `json:"blth"`
	ReferenceCSV string `json:"reference_csv"`
}

// WebSocketBatchMessage is one server-to-client update during a batch run.
type WebSocketBatchMessage struct {
	Type    string               `json:"type"` // "progress", "completed", "error"
	Done    int                  `json:"done,omitempty"`
	Total   int                  `json:"total,omitempty"`
	Item    *acquire.ItemResult  `json:"item,omitempty"`
	Results []acquire.ItemResult `json:"results,omitempty"`
	Error   string               `json:"error,omitempty"`
}

// batchWebSocketHandler runs a portal batch while streaming per-item progress.
func (s *Server) batchWebSocketHandler(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		slog.Error("Failed to upgrade connection to WebSocket", "error", err)
		return
	}
	defer func() { _ = conn.Close() }()

	websocketConnections.Inc()
	defer websocketConnections.Dec()

	slog.Info("WebSocket batch connection established", "remote_addr", r.RemoteAddr)

	_ = conn.SetReadDeadline(time.Now().Add(60 * time.Second))
	_, data, err := conn.ReadMessage()
	if err != nil {
		slog.Error("Failed to read batch request", "error", err)
		return
	}
	websocketMessagesTotal.WithLabelValues("received").Inc()
	// The batch can run long; only the initial request is deadline-bound.
	_ = conn.SetReadDeadline(time.Time{})

	var req WebSocketBatchRequest
	if err := json.Unmarshal(data, &req); err != nil {
		s.sendBatchMessage(conn, WebSocketBatchMessage{Type: "error", Error: "invalid request"})
		return
	}

	results, runErr := s.runBatchStreaming(r, conn, req)
	switch {
	case errors.Is(runErr, acquire.ErrAuthExpired):
		s.sendBatchMessage(conn, WebSocketBatchMessage{Type: "error", Error: authExpiredMessage})
	case runErr != nil:
		s.sendBatchMessage(conn, WebSocketBatchMessage{Type: "error", Error: runErr.Error()})
	default:
		s.sendBatchMessage(conn, WebSocketBatchMessage{Type: "completed", Results: results})
	}
}

func (s *Server) runBatchStreaming(r *http.Request, conn *websocket.Conn,
	req WebSocketBatchRequest,
) ([]acquire.ItemResult, error) {
	if req.JSessionID == "" || req.PoolACMT == "" || req.BLTH == "" {
		return nil, errors.New("semua field harus diisi lengkap")
	}
	blths := acquire.ParseBLTHList(req.BLTH)
	if len(blths) == 0 {
		return nil, errors.New("daftar BLTH kosong")
	}
	rows, err := acquire.ParseReferenceCSV(strings.NewReader(req.ReferenceCSV))
	if err != nil {
		return nil, err
	}
	fetcher, err := s.newFetcher(req.JSessionID, req.PoolACMT)
	if err != nil {
		return nil, err
	}

	runner := &acquire.Runner{
		Fetcher:   fetcher,
		Processor: s.processor,
		Recorder:  s.repo,
		WorkDir:   s.workDir,
		Progress: func(done, total int, item acquire.ItemResult) {
			status := "ok"
			if item.IsError {
				status = "error"
			}
			batchItemsTotal.WithLabelValues(status).Inc()
			s.sendBatchMessage(conn, WebSocketBatchMessage{
				Type: "progress", Done: done, Total: total, Item: &item,
			})
		},
	}
	return runner.Run(r.Context(), blths, rows)
}

func (s *Server) sendBatchMessage(conn *websocket.Conn, msg WebSocketBatchMessage) {
	data, err := json.Marshal(msg)
	if err != nil {
		slog.Error("Failed to marshal WebSocket message", "error", err)
		return
	}
	if err := conn.WriteMessage(websocket.TextMessage, data); err != nil {
		slog.Warn("Failed to send WebSocket message", "error", err)
		return
	}
	websocketMessagesTotal.WithLabelValues("sent").Inc()
}

package sse

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"time"
)

// writeTimeout bounds each event write; heartbeats keep healthy streams inside it.
const writeTimeout = 60 * time.Second

// UserFunc extracts the authenticated user id from a request, or "" for anonymous.
type UserFunc func(r *http.Request) string

// Handler serves the feed event stream.
type Handler struct {
	manager *Manager
	userOf  UserFunc
	logger  *slog.Logger
}

// NewHandler creates a new SSE Handler. userOf may be nil.
func NewHandler(manager *Manager, userOf UserFunc, logger *slog.Logger) *Handler {
	if userOf == nil {
		userOf = func(*http.Request) string { return "" }
	}
	return &Handler{manager: manager, userOf: userOf, logger: logger}
}

// ServeHTTP streams events until the client goes away or the manager disconnects it.
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.Header().Set("Allow", http.MethodGet)
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	header := w.Header()
	header.Set("Content-Type", "text/event-stream")
	header.Set("Cache-Control", "no-cache")
	header.Set("Connection", "keep-alive")
	header.Set("X-Accel-Buffering", "no")

	stream := &eventWriter{w: w, rc: http.NewResponseController(w)}
	if err := stream.rc.Flush(); err != nil {
		h.logger.Error("streaming unsupported", slog.String("error", err.Error()))
		http.Error(w, "Streaming not supported", http.StatusInternalServerError)
		return
	}

	client, err := h.manager.Connect(h.userOf(r))
	if err != nil {
		h.logger.Error("failed to register SSE client", slog.String("error", err.Error()))
		http.Error(w, "Failed to establish connection", http.StatusInternalServerError)
		return
	}
	defer h.manager.Disconnect(client.ID)

	log := h.logger.With(slog.String("client_id", client.ID))

	if err := stream.write(0, "connected", map[string]string{"clientId": client.ID}); err != nil {
		log.Debug("client gone before handshake", slog.String("error", err.Error()))
		return
	}

	for {
		select {
		case event := <-client.Events():
			if err := stream.write(event.Seq, string(event.Type), event); err != nil {
				log.Debug("client disconnected", slog.String("error", err.Error()))
				return
			}
		case <-client.Closed():
			log.Debug("client closed by manager")
			return
		case <-r.Context().Done():
			return
		}
	}
}

// eventWriter frames events in the text/event-stream format.
type eventWriter struct {
	w  http.ResponseWriter
	rc *http.ResponseController
}

// write sends one event. A zero seq omits the id field.
func (ew *eventWriter) write(seq uint64, eventType string, data any) error {
	payload, err := json.Marshal(data)
	if err != nil {
		return fmt.Errorf("marshal event data: %w", err)
	}

	// Unsupported deadlines are ignored; the write itself still reports failures.
	_ = ew.rc.SetWriteDeadline(time.Now().Add(writeTimeout))

	if seq > 0 {
		if _, err := fmt.Fprintf(ew.w, "id: %d\n", seq); err != nil {
			return err
		}
	}
	if _, err := fmt.Fprintf(ew.w, "event: %s\ndata: %s\n\n", eventType, payload); err != nil {
		return err
	}
	return ew.rc.Flush()
}

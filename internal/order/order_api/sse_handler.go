package order_api

import (
	"encoding/json"
	"fmt"
	"net/http"

	"ms-ordering/internal/logger"
	"ms-ordering/internal/sse"

	"github.com/go-chi/chi/v5"
)

type SSEHandler struct {
	Emitter *sse.LiveOrderEmitter
	Logger  *logger.Logger
}

func NewSSEHandler(emitter *sse.LiveOrderEmitter, log *logger.Logger) *SSEHandler {
	return &SSEHandler{Emitter: emitter, Logger: log}
}

// StreamCanteenOrders handles GET /api/v1/canteens/{canteenId}/orders/stream.
// It holds the connection open and pushes each newly paid order for the
// canteen as an SSE data frame.
func (h *SSEHandler) StreamCanteenOrders(w http.ResponseWriter, r *http.Request) {
	canteenID := chi.URLParam(r, "canteenId")

	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "streaming unsupported", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")

	orders := h.Emitter.Subscribe(r.Context(), canteenID)
	h.Logger.Info("SSE", fmt.Sprintf("Dashboard connected for canteen %s", canteenID))

	// Initial comment keeps proxies from buffering the stream.
	fmt.Fprint(w, ": connected\n\n")
	flusher.Flush()

	for orderEvent := range orders {
		payload, err := json.Marshal(orderEvent)
		if err != nil {
			h.Logger.Error("SSE", fmt.Sprintf("Failed to marshal order %s: %v", orderEvent.OrderID, err))
			continue
		}
		fmt.Fprintf(w, "data: %s\n\n", payload)
		flusher.Flush()
	}

	h.Logger.Info("SSE", fmt.Sprintf("Dashboard disconnected for canteen %s", canteenID))
}

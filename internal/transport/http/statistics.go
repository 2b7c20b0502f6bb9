package http

import (
	"context"
	"log"
	"net/http"
	"strings"

	"exam-submission-service/internal/domain"
	"github.com/go-chi/chi/v5"
)

func (h *Handler) overallStatistics(w http.ResponseWriter, r *http.Request) {
	stats, err := h.svc.Statistics.Overall(r.Context())
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, stats)
}

func (h *Handler) examStatistics(w http.ResponseWriter, r *http.Request) {
	stats, err := h.svc.Statistics.ForExam(r.Context(), chi.URLParam(r, "examId"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, stats)
}

func (h *Handler) studentStatistics(w http.ResponseWriter, r *http.Request) {
	studentID := strings.TrimSpace(chi.URLParam(r, "userId"))
	if err := checkSelfOrStaff(r, studentID); err != nil {
		writeError(w, r, err)
		return
	}
	stats, err := h.svc.Statistics.ForStudent(r.Context(), studentID)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, stats)
}

type outboundMessage struct {
	Type    string `json:"type"`
	Payload any    `json:"payload"`
}

type errorPayload struct {
	Message string `json:"message"`
}

// streamStatistics upgrades to a websocket and pushes a fresh statistics snapshot,
// optionally scoped to ?examId=, after every submission change.
func (h *Handler) streamStatistics(w http.ResponseWriter, r *http.Request) {
	examID := strings.TrimSpace(r.URL.Query().Get("examId"))

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("ws upgrade failed: %v", err)
		return
	}
	defer conn.Close()

	updates, cancel := h.svc.Feed.Subscribe()
	defer cancel()

	ctx, stop := context.WithCancel(context.Background())
	defer stop()

	send := make(chan outboundMessage, 16)
	closeSignals := make(chan struct{})
	writerDone := make(chan struct{})
	updatesDone := make(chan struct{})

	// Single writer: gorilla connections do not support concurrent writes.
	go func() {
		defer close(writerDone)
		for msg := range send {
			if err := conn.WriteJSON(msg); err != nil {
				log.Printf("ws write error: %v", err)
				return
			}
		}
	}()

	go func() {
		defer close(updatesDone)
		for {
			select {
			case ev, ok := <-updates:
				if !ok {
					return
				}
				if examID != "" && ev.ExamID != examID {
					continue
				}
				select {
				case send <- h.snapshot(ctx, examID):
				case <-closeSignals:
					return
				}
			case <-closeSignals:
				return
			}
		}
	}()

	send <- h.snapshot(ctx, examID)

	// The client only ever closes; reading drives control frames and detects the close.
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			break
		}
	}

	close(closeSignals)
	<-updatesDone
	close(send)
	<-writerDone
}

func (h *Handler) snapshot(ctx context.Context, examID string) outboundMessage {
	var (
		stats domain.Statistics
		err   error
	)
	if examID != "" {
		stats, err = h.svc.Statistics.ForExam(ctx, examID)
	} else {
		stats, err = h.svc.Statistics.Overall(ctx)
	}
	if err != nil {
		log.Printf("statistics snapshot: %v", err)
		return outboundMessage{Type: "error", Payload: errorPayload{Message: "statistics unavailable"}}
	}
	return outboundMessage{Type: "statistics", Payload: stats}
}

package http

import (
	"net/http"
	"strings"

	"exam-submission-service/internal/app"
	"exam-submission-service/internal/domain"
	"github.com/go-chi/chi/v5"
)

func (h *Handler) createSchedule(w http.ResponseWriter, r *http.Request) {
	var in app.ScheduleInput
	if err := decode(r, &in); err != nil {
		writeError(w, r, err)
		return
	}
	sc, err := h.svc.Schedules.Create(r.Context(), in)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, sc)
}

func (h *Handler) updateSchedule(w http.ResponseWriter, r *http.Request) {
	var patch app.SchedulePatch
	if err := decode(r, &patch); err != nil {
		writeError(w, r, err)
		return
	}
	sc, err := h.svc.Schedules.Update(r.Context(), chi.URLParam(r, "id"), patch)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, sc)
}

func (h *Handler) deleteSchedule(w http.ResponseWriter, r *http.Request) {
	if err := h.svc.Schedules.Delete(r.Context(), chi.URLParam(r, "id")); err != nil {
		writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) getSchedule(w http.ResponseWriter, r *http.Request) {
	sc, err := h.svc.Schedules.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, sc)
}

func (h *Handler) listSchedules(w http.ResponseWriter, r *http.Request) {
	examID := strings.TrimSpace(r.URL.Query().Get("examId"))
	if examID == "" {
		writeError(w, r, domain.NewValidationError("missing required fields", []string{"examId"}))
		return
	}
	list, err := h.svc.Schedules.ListByExam(r.Context(), examID)
	if err != nil {
		writeError(w, r, err)
		return
	}
	if list == nil {
		list = []domain.ExamSchedule{}
	}
	writeJSON(w, http.StatusOK, list)
}

type openResponse struct {
	Open     bool                 `json:"open"`
	Schedule *domain.ExamSchedule `json:"schedule"`
}

// openSchedule reports whether examId is open now for classId, or for the caller's own classes.
func (h *Handler) openSchedule(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	examID := strings.TrimSpace(q.Get("examId"))
	if examID == "" {
		writeError(w, r, domain.NewValidationError("missing required fields", []string{"examId"}))
		return
	}

	var classIDs []string
	if classID := strings.TrimSpace(q.Get("classId")); classID != "" {
		classIDs = []string{classID}
	} else {
		var err error
		if classIDs, err = h.svc.Classes.ClassesOf(r.Context(), principal(r).ID); err != nil {
			writeError(w, r, err)
			return
		}
	}

	sc, ok, err := h.svc.Schedules.OpenFor(r.Context(), examID, classIDs, h.svc.Now())
	if err != nil {
		writeError(w, r, err)
		return
	}
	resp := openResponse{Open: ok}
	if ok {
		resp.Schedule = &sc
	}
	writeJSON(w, http.StatusOK, resp)
}

package http

import (
	"net/http"
	"strings"

	"exam-submission-service/internal/app"
	"exam-submission-service/internal/domain"
	"github.com/go-chi/chi/v5"
)

func (h *Handler) createQuestion(w http.ResponseWriter, r *http.Request) {
	var in app.QuestionInput
	if err := decode(r, &in); err != nil {
		writeError(w, r, err)
		return
	}
	q, err := h.svc.Questions.Create(r.Context(), in)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, q)
}

func (h *Handler) updateQuestion(w http.ResponseWriter, r *http.Request) {
	var patch app.QuestionPatch
	if err := decode(r, &patch); err != nil {
		writeError(w, r, err)
		return
	}
	q, err := h.svc.Questions.Update(r.Context(), chi.URLParam(r, "id"), patch)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, q)
}

func (h *Handler) deleteQuestion(w http.ResponseWriter, r *http.Request) {
	if err := h.svc.Questions.Delete(r.Context(), chi.URLParam(r, "id")); err != nil {
		writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) getQuestion(w http.ResponseWriter, r *http.Request) {
	q, err := h.svc.Questions.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, q)
}

func (h *Handler) listQuestions(w http.ResponseWriter, r *http.Request) {
	list, err := h.svc.Questions.List(r.Context(), strings.TrimSpace(r.URL.Query().Get("courseId")))
	if err != nil {
		writeError(w, r, err)
		return
	}
	if list == nil {
		list = []domain.Question{}
	}
	writeJSON(w, http.StatusOK, list)
}

package http

import (
	"net/http"
	"strings"

	"exam-submission-service/internal/app"
	"exam-submission-service/internal/domain"
	"github.com/go-chi/chi/v5"
)

// submitRequest accepts studentId or userId; either may be a string or a number.
type submitRequest struct {
	StudentID any               `json:"studentId"`
	UserID    any               `json:"userId"`
	ExamID    any               `json:"examId"`
	Answers   []app.AnswerInput `json:"answers"`
}

func (h *Handler) submit(w http.ResponseWriter, r *http.Request) {
	var req submitRequest
	if err := decode(r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	studentID, err := resolveStudent(r, req)
	if err != nil {
		writeError(w, r, err)
		return
	}
	examID, _ := domain.NormalizeID(req.ExamID)

	sub, err := h.svc.Submissions.Submit(r.Context(), studentID, examID, req.Answers)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, sub)
}

// resolveStudent picks the submitting student. Students submit for themselves;
// staff must name the student explicitly.
func resolveStudent(r *http.Request, req submitRequest) (string, error) {
	studentID, hasStudent := domain.NormalizeID(req.StudentID)
	userID, hasUser := domain.NormalizeID(req.UserID)
	if hasStudent && hasUser && studentID != userID {
		return "", domain.NewValidationError("studentId and userId disagree", []string{"studentId", "userId"})
	}
	if !hasStudent {
		studentID = userID
	}

	p := principal(r)
	if studentID == "" && !p.IsStaff() {
		studentID = p.ID
	}
	if studentID != "" && !p.IsStaff() && studentID != p.ID {
		return "", domain.Errorf(domain.KindForbidden, "students may only submit for themselves")
	}
	return studentID, nil
}

func (h *Handler) getSubmission(w http.ResponseWriter, r *http.Request) {
	sub, err := h.svc.Submissions.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	if err := checkSelfOrStaff(r, sub.StudentID); err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, sub)
}

func (h *Handler) updateSubmission(w http.ResponseWriter, r *http.Request) {
	var patch app.SubmissionPatch
	if err := decode(r, &patch); err != nil {
		writeError(w, r, err)
		return
	}
	sub, err := h.svc.Submissions.Update(r.Context(), chi.URLParam(r, "id"), principal(r), patch)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, sub)
}

func (h *Handler) gradeSubmission(w http.ResponseWriter, r *http.Request) {
	sub, err := h.svc.Submissions.Grade(r.Context(), chi.URLParam(r, "id"), principal(r).ID)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, sub)
}

func (h *Handler) reviewSubmission(w http.ResponseWriter, r *http.Request) {
	var in app.ReviewInput
	if err := decode(r, &in); err != nil {
		writeError(w, r, err)
		return
	}
	sub, err := h.svc.Submissions.Review(r.Context(), chi.URLParam(r, "id"), principal(r).ID, in)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, sub)
}

func (h *Handler) listByExam(w http.ResponseWriter, r *http.Request) {
	list, err := h.svc.Submissions.ListByExam(r.Context(), chi.URLParam(r, "examId"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeSubmissions(w, list)
}

func (h *Handler) listByStudent(w http.ResponseWriter, r *http.Request) {
	studentID := strings.TrimSpace(chi.URLParam(r, "userId"))
	if err := checkSelfOrStaff(r, studentID); err != nil {
		writeError(w, r, err)
		return
	}
	list, err := h.svc.Submissions.ListByStudent(r.Context(), studentID)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeSubmissions(w, list)
}

func writeSubmissions(w http.ResponseWriter, list []domain.Submission) {
	if list == nil {
		list = []domain.Submission{}
	}
	writeJSON(w, http.StatusOK, list)
}

type enrollRequest struct {
	StudentIDs []string `json:"studentIds" validate:"required,min=1,dive,required"`
}

func (h *Handler) enrollStudents(w http.ResponseWriter, r *http.Request) {
	var req enrollRequest
	if err := decode(r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	if err := h.validate.Struct(req); err != nil {
		writeError(w, r, domain.NewValidationError("missing required fields", []string{"studentIds"}))
		return
	}
	if err := h.svc.Classes.EnrollStudents(r.Context(), chi.URLParam(r, "classId"), req.StudentIDs); err != nil {
		writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

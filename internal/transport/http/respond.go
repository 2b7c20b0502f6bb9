package http

import (
	"encoding/json"
	"errors"
	"io"
	"log"
	"net/http"

	"exam-submission-service/internal/domain"
)

type errorBody struct {
	Message string   `json:"message"`
	Fields  []string `json:"fields,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Printf("encode response: %v", err)
	}
}

// writeError maps the error taxonomy to a status code. Anything outside it is
// logged and reported as a generic failure.
func writeError(w http.ResponseWriter, r *http.Request, err error) {
	var de *domain.Error
	errors.As(err, &de)

	body := errorBody{Message: err.Error()}
	if de != nil {
		body = errorBody{Message: de.Message, Fields: de.Fields}
	}

	switch domain.KindOf(err) {
	case domain.KindValidation, domain.KindMissingField, domain.KindInvalidWindow:
		writeJSON(w, http.StatusBadRequest, body)
	case domain.KindForbidden, domain.KindExamNotOpen:
		writeJSON(w, http.StatusForbidden, body)
	case domain.KindNotFound:
		writeJSON(w, http.StatusNotFound, body)
	case domain.KindDuplicate:
		writeJSON(w, http.StatusConflict, errorBody{Message: "Duplicate submission"})
	case domain.KindInvalidTransition:
		writeJSON(w, http.StatusConflict, body)
	case domain.KindDataIntegrity:
		writeJSON(w, http.StatusUnprocessableEntity, body)
	default:
		log.Printf("%s %s: %v", r.Method, r.URL.Path, err)
		writeJSON(w, http.StatusInternalServerError, errorBody{Message: "internal server error"})
	}
}

// decode reads a JSON body into dst. Numbers stay json.Number so ids keep their exact digits.
func decode(r *http.Request, dst any) error {
	dec := json.NewDecoder(r.Body)
	dec.UseNumber()
	if err := dec.Decode(dst); err != nil && !errors.Is(err, io.EOF) {
		return domain.NewValidationError("invalid request body", nil)
	}
	return nil
}

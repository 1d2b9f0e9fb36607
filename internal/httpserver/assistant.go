package httpserver

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/vaanibank/vaani/internal/bank"
	"github.com/vaanibank/vaani/internal/resilience"
)

// assistantRequest is the wire form of one utterance submission. Password is
// a pointer so "password": null and an absent field both mean no credential.
type assistantRequest struct {
	UserID   int64   `json:"user_id"`
	Message  string  `json:"message"`
	Password *string `json:"password"`
}

// assistantData is the structured payload attached to every reply.
type assistantData struct {
	RequirePassword bool `json:"require_password"`
	Success         bool `json:"success"`
}

// assistantResponse is the wire form of a successful reply. Page serialises
// as null when there is no navigation hint.
type assistantResponse struct {
	Reply string        `json:"reply"`
	Page  *string       `json:"page"`
	Data  assistantData `json:"data"`
}

// errorResponse is the wire form of every non-2xx body.
type errorResponse struct {
	Detail string `json:"detail"`
}

// handleAssistant serves POST /assistant: classify the utterance, execute the
// intent, and return the reply. User-recoverable conditions (low confidence,
// bad password, insufficient funds) are 200s with an explanatory reply;
// non-2xx statuses are reserved for infrastructure failures.
func (s *Server) handleAssistant(w http.ResponseWriter, r *http.Request) {
	var req assistantRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "request body is not valid JSON")
		return
	}
	if req.Message == "" {
		writeError(w, http.StatusBadRequest, "message is required")
		return
	}
	if req.UserID <= 0 {
		writeError(w, http.StatusBadRequest, "user_id is required")
		return
	}

	reply, err := s.teller.Handle(r.Context(), req.UserID, req.Message, req.Password)
	if err != nil {
		slog.Error("assistant request failed", "user_id", req.UserID, "err", err)
		switch {
		case errors.Is(err, bank.ErrNoAccount):
			writeError(w, http.StatusNotFound, "User not found")
		case errors.Is(err, resilience.ErrAllFailed):
			writeError(w, http.StatusBadGateway, "intent service error")
		default:
			writeError(w, http.StatusInternalServerError, "internal assistant error")
		}
		return
	}

	resp := assistantResponse{
		Reply: reply.Text,
		Data: assistantData{
			RequirePassword: reply.RequirePassword,
			Success:         reply.Success,
		},
	}
	if reply.Page != "" {
		resp.Page = &reply.Page
	}
	writeJSON(w, http.StatusOK, resp)
}

func writeError(w http.ResponseWriter, status int, detail string) {
	writeJSON(w, status, errorResponse{Detail: detail})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Warn("write response", "err", err)
	}
}

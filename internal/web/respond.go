package web

import (
	"encoding/json"
	"net/http"
)

type errorResponse struct {
	Error string       `json:"error"`
	Stage string       `json:"stage,omitempty"`
	Files []fileFailed `json:"files,omitempty"`
}

type fileFailed struct {
	Name  string `json:"name"`
	Stage string `json:"stage,omitempty"`
	Error string `json:"error"`
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	enc := json.NewEncoder(w)
	enc.SetEscapeHTML(false)
	_ = enc.Encode(payload)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, errorResponse{Error: message})
}

package web

import (
	"encoding/json"
	"errors"
	"net/http"

	"requestbin/internal/storage"
)

func respondWithError(w http.ResponseWriter, code int, message string) {
	respondWithJSON(w, code, map[string]string{"error": message})
}

func respondWithJSON(w http.ResponseWriter, code int, payload any) {
	data, err := json.Marshal(payload)
	if err != nil {
		w.WriteHeader(http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_, _ = w.Write(data)
}

// respondWithStoreError maps storage errors to status codes.
func (s *Server) respondWithStoreError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, storage.ErrBinNotFound):
		respondWithError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, storage.ErrBinExists):
		respondWithError(w, http.StatusConflict, err.Error())
	default:
		s.logger.Error("storage failure", "error", err)
		respondWithError(w, http.StatusInternalServerError, "internal error")
	}
}

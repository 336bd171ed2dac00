package web

import (
	"context"
	"crypto/subtle"
	"encoding/hex"
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/go-chi/chi/v5"

	"requestbin/internal/bin"
	"requestbin/internal/har"
	"requestbin/internal/replay"
)

const (
	secretHeader = "X-Bin-Secret"
	cookiePrefix = "requestbin_"
)

type binCtxKey struct{}

func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	bins, err := s.store.CountBins()
	if err != nil {
		s.respondWithStoreError(w, err)
		return
	}
	requests, err := s.store.CountRequests()
	if err != nil {
		s.respondWithStoreError(w, err)
		return
	}
	avg, err := s.store.AvgRequestSize()
	if err != nil {
		s.respondWithStoreError(w, err)
		return
	}
	respondWithJSON(w, http.StatusOK, map[string]int{
		"bin_count":     bins,
		"request_count": requests,
		"avg_req_size":  avg,
	})
}

func (s *Server) handleCreateBin(w http.ResponseWriter, r *http.Request) {
	var req CreateBinRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil && !errors.Is(err, io.EOF) {
		respondWithError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if err := ValidateCreateBin(req); err != nil {
		respondWithError(w, http.StatusBadRequest, err.Error())
		return
	}

	b, err := s.store.CreateBin(req.Private, req.Name)
	if err != nil {
		s.respondWithStoreError(w, err)
		return
	}
	s.logger.Info("bin created", "bin", b.Name, "private", b.Private)

	body := b.ToDict()
	if b.Private {
		secret := hex.EncodeToString(b.SecretKey)
		body["secret_key"] = secret
		http.SetCookie(w, &http.Cookie{
			Name:     cookiePrefix + b.Name,
			Value:    secret,
			Path:     "/",
			HttpOnly: true,
			SameSite: http.SameSiteLaxMode,
		})
	}
	respondWithJSON(w, http.StatusCreated, body)
}

func (s *Server) handleGetBin(w http.ResponseWriter, r *http.Request) {
	b, err := s.store.LookupBin(chi.URLParam(r, "name"))
	if err != nil {
		s.respondWithStoreError(w, err)
		return
	}
	respondWithJSON(w, http.StatusOK, b.ToDict())
}

// requireAccess loads the bin and, for private bins, checks the caller's
// secret from the cookie or X-Bin-Secret header.
func (s *Server) requireAccess(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		b, err := s.store.LookupBin(chi.URLParam(r, "name"))
		if err != nil {
			s.respondWithStoreError(w, err)
			return
		}
		if b.Private && !hasSecret(r, b) {
			respondWithError(w, http.StatusForbidden, "private bin")
			return
		}
		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), binCtxKey{}, b)))
	})
}

func hasSecret(r *http.Request, b *bin.Bin) bool {
	presented := r.Header.Get(secretHeader)
	if c, err := r.Cookie(cookiePrefix + b.Name); err == nil && presented == "" {
		presented = c.Value
	}
	key, err := hex.DecodeString(presented)
	if err != nil || len(key) == 0 {
		return false
	}
	return subtle.ConstantTimeCompare(key, b.SecretKey) == 1
}

func binFrom(r *http.Request) *bin.Bin {
	return r.Context().Value(binCtxKey{}).(*bin.Bin)
}

func (s *Server) handleListRequests(w http.ResponseWriter, r *http.Request) {
	reqs := binFrom(r).Requests()
	out := make([]map[string]any, 0, len(reqs))
	for _, req := range reqs {
		out = append(out, req.ToDict())
	}
	respondWithJSON(w, http.StatusOK, out)
}

func (s *Server) lookupRequest(w http.ResponseWriter, r *http.Request) (*bin.Request, bool) {
	req, ok := binFrom(r).Request(chi.URLParam(r, "id"))
	if !ok {
		respondWithError(w, http.StatusNotFound, "request not found")
	}
	return req, ok
}

func (s *Server) handleGetRequest(w http.ResponseWriter, r *http.Request) {
	if req, ok := s.lookupRequest(w, r); ok {
		respondWithJSON(w, http.StatusOK, req.ToDict())
	}
}

func (s *Server) handleCurl(w http.ResponseWriter, r *http.Request) {
	req, ok := s.lookupRequest(w, r)
	if !ok {
		return
	}
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	_, _ = io.WriteString(w, req.ToCurl()+"\n")
}

func (s *Server) handleReplay(w http.ResponseWriter, r *http.Request) {
	params := ReplayRequest{Target: r.URL.Query().Get("target")}
	if err := validate.Struct(params); err != nil {
		respondWithError(w, http.StatusBadRequest, validationMessage(err))
		return
	}
	req, ok := s.lookupRequest(w, r)
	if !ok {
		return
	}
	res, err := replay.Replay(r.Context(), s.client, req, params.Target)
	if err != nil {
		s.logger.Warn("replay failed", "id", req.ID, "target", params.Target, "error", err)
		respondWithError(w, http.StatusBadGateway, err.Error())
		return
	}
	respondWithJSON(w, http.StatusOK, res)
}

func (s *Server) handleExportHAR(w http.ResponseWriter, r *http.Request) {
	b := binFrom(r)
	doc := har.FromRequests(b.Name, b.Requests())
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Content-Disposition", "attachment; filename="+b.Name+".har")
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(doc); err != nil {
		s.logger.Error("write HAR", "bin", b.Name, "error", err)
	}
}

func (s *Server) handleCapture(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")
	if s.maxBodySize > 0 {
		r.Body = http.MaxBytesReader(w, r.Body, s.maxBodySize)
	}
	in, err := bin.FromHTTP(r)
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			respondWithError(w, http.StatusRequestEntityTooLarge, "request body too large")
			return
		}
		respondWithError(w, http.StatusBadRequest, "unreadable request")
		return
	}
	req, err := s.store.CreateRequest(name, in)
	if err != nil {
		s.respondWithStoreError(w, err)
		return
	}
	s.logger.Debug("request captured", "bin", name, "id", req.ID, "method", req.Method)
	s.broker.Publish(name, req)

	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	_, _ = io.WriteString(w, "ok\n")
}

package server

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"

	"github.com/lazypower/mnemo/internal/engine"
)

// decodeBody decodes a JSON request body. An empty body leaves v untouched.
func decodeBody(r *http.Request, v any) error {
	err := json.NewDecoder(r.Body).Decode(v)
	if errors.Is(err, io.EOF) {
		return nil
	}
	return err
}

func (s *Server) handleRemember(w http.ResponseWriter, r *http.Request) {
	var req engine.RememberRequest
	if err := decodeBody(r, &req); err != nil {
		writeErrorMsg(w, http.StatusBadRequest, "invalid json")
		return
	}

	s.mu.Lock()
	res, err := s.eng.Remember(r.Context(), req)
	s.mu.Unlock()
	if err != nil {
		s.writeError(w, err)
		return
	}

	status := http.StatusCreated
	if res.Replaced {
		status = http.StatusOK
	}
	writeJSON(w, status, res)
}

func (s *Server) handleList(w http.ResponseWriter, r *http.Request) {
	tags := r.URL.Query()["tag"]

	s.mu.Lock()
	res, err := s.eng.List(tags)
	s.mu.Unlock()
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (s *Server) handleForget(w http.ResponseWriter, r *http.Request) {
	var req struct {
		IDs  []string `json:"ids"`
		Tags []string `json:"tags"`
	}
	if err := decodeBody(r, &req); err != nil {
		writeErrorMsg(w, http.StatusBadRequest, "invalid json")
		return
	}

	s.mu.Lock()
	res, err := s.eng.Forget(req.IDs, req.Tags)
	s.mu.Unlock()
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (s *Server) handlePrune(w http.ResponseWriter, r *http.Request) {
	var req struct {
		MaxRecords  *int   `json:"max_records"`
		OlderThan   string `json:"older_than"`
		KeepExpired bool   `json:"keep_expired"`
		Dedupe      bool   `json:"dedupe"`
	}
	if err := decodeBody(r, &req); err != nil {
		writeErrorMsg(w, http.StatusBadRequest, "invalid json")
		return
	}

	maxRecords := s.opts.MaxRecords
	if req.MaxRecords != nil {
		maxRecords = *req.MaxRecords
	}
	opts, err := engine.NewPruneOptions(maxRecords, req.OlderThan, req.KeepExpired, req.Dedupe)
	if err != nil {
		s.writeError(w, err)
		return
	}

	s.mu.Lock()
	res, err := s.eng.Prune(opts)
	s.mu.Unlock()
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (s *Server) handleSearch(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	query := q.Get("q")
	if query == "" {
		writeErrorMsg(w, http.StatusBadRequest, "q parameter required")
		return
	}

	req := engine.SearchRequest{
		Query: query,
		TopK:  s.opts.TopK,
		Tags:  q["tag"],
	}
	if v := q.Get("top_k"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			writeErrorMsg(w, http.StatusBadRequest, "top_k must be an integer")
			return
		}
		req.TopK = n
	}
	if v := q.Get("show_text"); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			writeErrorMsg(w, http.StatusBadRequest, "show_text must be a boolean")
			return
		}
		req.ShowText = b
	}

	s.mu.Lock()
	res, err := s.eng.Search(r.Context(), req)
	s.mu.Unlock()
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

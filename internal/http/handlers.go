package http

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"saldo/internal/core"
	"saldo/internal/format"
	"saldo/internal/ledger"
	"saldo/internal/log"
	"saldo/internal/middleware/trace"
)

// transactionRequest is the body of create and update. Amount accepts a JSON
// number or a string. A string is read in the notation of the configured
// locale, so "1,500.00" for en-US and "1.500,00" for de-DE are the same amount.
type transactionRequest struct {
	Text     string          `json:"text"`
	Amount   json.RawMessage `json:"amount"`
	Category string          `json:"category"`
	Date     string          `json:"date"`
}

func (req transactionRequest) input(n core.Notation) core.Input {
	in := core.Input{Text: req.Text, Category: req.Category, Date: req.Date}
	raw := bytes.TrimSpace(req.Amount)
	var (
		s string
		m core.Money
	)
	switch {
	case len(raw) > 0 && raw[0] == '"' && json.Unmarshal(raw, &s) == nil:
		in.Amount = s
	case bytes.Equal(raw, []byte("null")):
	case json.Unmarshal(raw, &m) == nil:
		in.Amount = n.Text(m)
	default:
		in.Amount = string(raw)
	}
	return in
}

type transactionResponse struct {
	Transaction core.Transaction `json:"transaction"`
	Row         format.Row       `json:"row"`
}

type categoriesResponse struct {
	Income  []string `json:"income"`
	Expense []string `json:"expense"`
	All     []string `json:"all"`
}

type errorResponse struct {
	Error     string            `json:"error"`
	Fields    map[string]string `json:"fields,omitempty"`
	RequestID string            `json:"request_id,omitempty"`
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, struct {
		Status  string        `json:"status"`
		Metrics trace.Metrics `json:"metrics"`
	}{"ok", s.tracer.Metrics()})
}

func (s *Server) handleLedger(w http.ResponseWriter, r *http.Request) {
	term := sanitizeInput(r.URL.Query().Get("q"))
	writeJSON(w, http.StatusOK, s.svc.View(term))
}

func (s *Server) handleCategories(w http.ResponseWriter, r *http.Request) {
	tax := s.svc.Categories()
	writeJSON(w, http.StatusOK, categoriesResponse{
		Income:  tax.Income,
		Expense: tax.Expense,
		All:     tax.All(),
	})
}

func (s *Server) handleCreate(w http.ResponseWriter, r *http.Request) {
	in, ok := s.decodeInput(w, r)
	if !ok {
		return
	}
	res, err := s.svc.Add(r.Context(), in)
	if err != nil {
		s.writeServiceError(w, r, log.OpAdd, err)
		return
	}
	writeJSON(w, http.StatusCreated, res)
}

func (s *Server) handleGet(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	t, found := s.svc.Get(id)
	if !found {
		writeError(w, http.StatusNotFound, ledger.ErrNotFound.Error(), nil)
		return
	}
	writeJSON(w, http.StatusOK, transactionResponse{Transaction: t, Row: s.svc.Formatter().Row(t)})
}

func (s *Server) handleUpdate(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	in, ok := s.decodeInput(w, r)
	if !ok {
		return
	}
	res, err := s.svc.Update(r.Context(), id, in)
	if err != nil {
		s.writeServiceError(w, r, log.OpUpdate, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (s *Server) handleDelete(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	res, err := s.svc.Remove(r.Context(), id)
	if err != nil {
		s.writeServiceError(w, r, log.OpRemove, err)
		return
	}
	if !res.Removed {
		writeError(w, http.StatusNotFound, ledger.ErrNotFound.Error(), nil)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (s *Server) decodeInput(w http.ResponseWriter, r *http.Request) (core.Input, bool) {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()

	var req transactionRequest
	if err := dec.Decode(&req); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeError(w, http.StatusRequestEntityTooLarge, "request body too large", nil)
			return core.Input{}, false
		}
		writeError(w, http.StatusBadRequest, fmt.Sprintf("invalid JSON body: %v", err), nil)
		return core.Input{}, false
	}

	in := req.input(s.svc.Formatter().Notation())
	in.Text = sanitizeInput(in.Text)
	in.Category = sanitizeInput(in.Category)
	return in, true
}

// writeServiceError maps validation failures to 400 and unknown ids to 404.
func (s *Server) writeServiceError(w http.ResponseWriter, r *http.Request, op string, err error) {
	var verr *core.ValidationError
	switch {
	case errors.As(err, &verr):
		writeError(w, http.StatusBadRequest, core.ErrValidation.Error(), fieldErrors(verr))
	case errors.Is(err, ledger.ErrNotFound):
		writeError(w, http.StatusNotFound, ledger.ErrNotFound.Error(), nil)
	default:
		log.NewStructuredLogger(log.FromContext(r.Context())).
			LogError(r.Context(), "Ledger command failed", err, log.ComponentHTTP, op, nil)
		writeError(w, http.StatusInternalServerError, "internal error", nil)
	}
}

// fieldErrors keys every validation problem by the input field it concerns.
func fieldErrors(verr *core.ValidationError) map[string]string {
	fields := make(map[string]string, len(verr.Errs))
	for _, err := range verr.Errs {
		var name string
		switch {
		case errors.Is(err, core.ErrEmptyText):
			name = "text"
		case errors.Is(err, core.ErrInvalidAmount):
			name = "amount"
		case errors.Is(err, core.ErrEmptyCategory), errors.Is(err, core.ErrUnknownCategory):
			name = "category"
		case errors.Is(err, core.ErrInvalidDate):
			name = "date"
		default:
			name = "input"
		}
		fields[name] = err.Error()
	}
	return fields
}

func pathID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid transaction id", map[string]string{"id": r.PathValue("id")})
		return 0, false
	}
	return id, true
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string, fields map[string]string) {
	writeJSON(w, status, errorResponse{
		Error:     msg,
		Fields:    fields,
		RequestID: w.Header().Get(trace.HeaderRequestID),
	})
}

// sanitizeInput removes control characters except tab, newline and carriage
// return, and trims whitespace.
func sanitizeInput(s string) string {
	return strings.Map(func(r rune) rune {
		if r < 32 && r != '\t' && r != '\n' && r != '\r' {
			return -1
		}
		return r
	}, strings.TrimSpace(s))
}

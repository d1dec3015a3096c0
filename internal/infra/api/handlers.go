package api

import (
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"gate-admission/internal/domain/model"
	"gate-admission/internal/infra/logging"
	"gate-admission/internal/usecase"

	"github.com/go-chi/chi/v5"
)

const maxBodyBytes = 64 << 10

type scanRequest struct {
	Token     string `json:"token"`
	Direction string `json:"direction"`
	GateID    string `json:"gate_id"`
}

type scanResponse struct {
	Outcome      string    `json:"outcome"`
	Status       string    `json:"status"`
	Reason       string    `json:"reason"`
	CredentialID string    `json:"credential_id,omitempty"`
	Direction    string    `json:"direction"`
	State        string    `json:"state,omitempty"`
	EventID      string    `json:"event_id"`
	At           time.Time `json:"at"`
}

type issueRequest struct {
	HolderRef     string               `json:"holder_ref"`
	EventTicketID string               `json:"event_ticket_id"`
	ExpiresAt     *time.Time           `json:"expires_at,omitempty"`
	Overrides     model.PolicyOverride `json:"overrides"`
	Replace       bool                 `json:"replace"`
}

type credentialResponse struct {
	ID            string               `json:"id"`
	HolderKind    string               `json:"holder_kind"`
	HolderID      string               `json:"holder_id"`
	EventTicketID string               `json:"event_ticket_id"`
	QRCode        string               `json:"qr_code"`
	ManualCode    string               `json:"manual_code"`
	IssuedAt      time.Time            `json:"issued_at"`
	ExpiresAt     time.Time            `json:"expires_at"`
	Active        bool                 `json:"active"`
	Overrides     model.PolicyOverride `json:"overrides"`
	SupersedesID  *string              `json:"supersedes_id,omitempty"`
	State         string               `json:"state,omitempty"`
}

type checkEventResponse struct {
	Seq        int64     `json:"seq"`
	ID         string    `json:"id"`
	Direction  string    `json:"direction"`
	Status     string    `json:"status"`
	Reason     string    `json:"reason"`
	GateID     string    `json:"gate_id,omitempty"`
	OccurredAt time.Time `json:"occurred_at"`
}

type actionLogResponse struct {
	Seq        int64     `json:"seq"`
	ID         string    `json:"id"`
	Action     string    `json:"action"`
	Actor      string    `json:"actor"`
	Detail     string    `json:"detail,omitempty"`
	OccurredAt time.Time `json:"occurred_at"`
}

func toCredentialResponse(c *model.Credential) credentialResponse {
	return credentialResponse{
		ID:            c.ID,
		HolderKind:    string(c.Holder.Kind()),
		HolderID:      c.Holder.ID(),
		EventTicketID: c.EventTicketID,
		QRCode:        c.QRCode,
		ManualCode:    c.ManualCode,
		IssuedAt:      c.IssuedAt,
		ExpiresAt:     c.ExpiresAt,
		Active:        c.Active,
		Overrides:     c.Overrides,
		SupersedesID:  c.SupersedesID,
	}
}

func decodeBody(w http.ResponseWriter, r *http.Request, v any) bool {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return false
	}
	return true
}

// scanHandler answers gate devices. Denials are 200 with a rejected outcome;
// only malformed input and store failures are errors.
func (s *Server) scanHandler(w http.ResponseWriter, r *http.Request) {
	var req scanRequest
	if !decodeBody(w, r, &req) {
		return
	}
	if req.GateID == "" {
		req.GateID = strings.TrimSpace(r.Header.Get(HeaderGateID))
	}

	res, err := s.engine.Scan(r.Context(), usecase.ScanRequest{Token: req.Token, Direction: req.Direction, GateID: req.GateID})
	if err != nil {
		l := logging.With(r.Context(), s.log)
		l.Warn().Err(err).Msg("scan failed")
		writeDomainError(w, err, usecase.OutcomeForError(err))
		return
	}
	writeJSON(w, http.StatusOK, scanResponse{
		Outcome:      res.Outcome(),
		Status:       string(res.Status),
		Reason:       res.Reason,
		CredentialID: res.CredentialID,
		Direction:    string(res.Direction),
		State:        string(res.State),
		EventID:      res.EventID,
		At:           res.At,
	})
}

func (s *Server) issueHandler(w http.ResponseWriter, r *http.Request) {
	var req issueRequest
	if !decodeBody(w, r, &req) {
		return
	}
	cred, err := s.issuer.Issue(r.Context(), usecase.IssueRequest{
		HolderRef:     req.HolderRef,
		EventTicketID: req.EventTicketID,
		ExpiresAt:     req.ExpiresAt,
		Overrides:     req.Overrides,
		Replace:       req.Replace,
		Actor:         logging.Actor(r.Context()),
	})
	if err != nil {
		s.fail(w, r, "issue", err)
		return
	}
	writeJSON(w, http.StatusCreated, toCredentialResponse(cred))
}

func (s *Server) lookupHandler(w http.ResponseWriter, r *http.Request) {
	view, err := s.engine.Lookup(r.Context(), chi.URLParam(r, "identifier"))
	if err != nil {
		s.fail(w, r, "lookup", err)
		return
	}
	resp := toCredentialResponse(view.Credential)
	resp.State = string(view.State)
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) reissueHandler(w http.ResponseWriter, r *http.Request) {
	cred, err := s.issuer.Reissue(r.Context(), chi.URLParam(r, "identifier"), logging.Actor(r.Context()))
	if err != nil {
		s.fail(w, r, "reissue", err)
		return
	}
	writeJSON(w, http.StatusCreated, toCredentialResponse(cred))
}

func (s *Server) invalidateHandler(w http.ResponseWriter, r *http.Request) {
	if err := s.issuer.Invalidate(r.Context(), chi.URLParam(r, "identifier"), logging.Actor(r.Context())); err != nil {
		s.fail(w, r, "invalidate", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) historyHandler(w http.ResponseWriter, r *http.Request) {
	events, err := s.engine.History(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		s.fail(w, r, "history", err)
		return
	}
	out := make([]checkEventResponse, 0, len(events))
	for _, ev := range events {
		out = append(out, checkEventResponse{
			Seq:        ev.Seq,
			ID:         ev.ID,
			Direction:  string(ev.Direction),
			Status:     string(ev.Status),
			Reason:     ev.Reason,
			GateID:     ev.GateID,
			OccurredAt: ev.OccurredAt,
		})
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) actionsHandler(w http.ResponseWriter, r *http.Request) {
	entries, err := s.engine.Actions(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		s.fail(w, r, "actions", err)
		return
	}
	out := make([]actionLogResponse, 0, len(entries))
	for _, a := range entries {
		out = append(out, actionLogResponse{
			Seq:        a.Seq,
			ID:         a.ID,
			Action:     string(a.Action),
			Actor:      a.Actor,
			Detail:     a.Detail,
			OccurredAt: a.OccurredAt,
		})
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) fail(w http.ResponseWriter, r *http.Request, op string, err error) {
	l := logging.With(r.Context(), s.log)
	if statusFor(err) >= http.StatusInternalServerError {
		l.Error().Err(err).Str("op", op).Msg("request failed")
	} else {
		l.Debug().Err(err).Str("op", op).Msg("request rejected")
	}
	writeDomainError(w, err, "")
}

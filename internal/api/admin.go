package api

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/mtlprog/coincore/internal/domain"
	"github.com/mtlprog/coincore/internal/txengine"
)

// editable is implemented by accounts whose label and archive state the
// user controls.
type editable interface {
	SetLabel(ctx context.Context, label string) error
	Archive(ctx context.Context) error
	Unarchive(ctx context.Context) error
}

// Archive handles POST /api/v1/accounts/{id}/archive.
func (h *Handler) Archive(w http.ResponseWriter, r *http.Request) {
	h.edit(w, r, func(ctx context.Context, e editable) error { return e.Archive(ctx) })
}

// Unarchive handles POST /api/v1/accounts/{id}/unarchive.
func (h *Handler) Unarchive(w http.ResponseWriter, r *http.Request) {
	h.edit(w, r, func(ctx context.Context, e editable) error { return e.Unarchive(ctx) })
}

// SetLabel handles PUT /api/v1/accounts/{id}/label with {"label": "..."}.
func (h *Handler) SetLabel(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Label string `json:"label"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	label := strings.TrimSpace(body.Label)
	if label == "" {
		writeError(w, http.StatusBadRequest, "label must not be empty")
		return
	}
	h.edit(w, r, func(ctx context.Context, e editable) error { return e.SetLabel(ctx, label) })
}

func (h *Handler) edit(w http.ResponseWriter, r *http.Request, op func(context.Context, editable) error) {
	acc, ok := h.account(w, r)
	if !ok {
		return
	}
	e, ok := acc.(editable)
	if !ok {
		writeError(w, http.StatusBadRequest, "account "+acc.ID()+" cannot be edited")
		return
	}
	if err := op(r.Context(), e); err != nil {
		h.writeAccountError(w, acc, err)
		return
	}
	writeJSON(w, http.StatusOK, viewOf(acc))
}

type proposalRequest struct {
	Action          domain.AssetAction `json:"action"`
	Amount          string             `json:"amount"`
	Address         string             `json:"address"`
	Memo            string             `json:"memo"`
	TargetAccountID string             `json:"targetAccountId"`
	Priority        bool               `json:"priority"`
}

// Propose handles POST /api/v1/accounts/{id}/proposals. It builds an
// unsigned transaction proposal from the account.
func (h *Handler) Propose(w http.ResponseWriter, r *http.Request) {
	if h.proposer == nil {
		writeError(w, http.StatusNotFound, "transaction proposals not configured")
		return
	}
	src, ok := h.account(w, r)
	if !ok {
		return
	}

	var body proposalRequest
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	amount, err := parseMoney(body.Amount, src.Currency())
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid amount")
		return
	}

	req := txengine.Request{
		Source:   src,
		Target:   txengine.Target{Address: body.Address, Memo: body.Memo},
		Action:   body.Action,
		Amount:   amount,
		Priority: body.Priority,
	}
	if body.TargetAccountID != "" {
		target, err := h.accounts.Account(r.Context(), body.TargetAccountID)
		if err != nil {
			writeError(w, http.StatusBadRequest, "unknown target account")
			return
		}
		req.Target.Account = target
	}

	p, err := h.proposer.Propose(r.Context(), req)
	if err != nil {
		writeProposalError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, p)
}

func writeProposalError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, txengine.ErrInsufficientFunds), errors.Is(err, txengine.ErrInsufficientGas):
		writeError(w, http.StatusUnprocessableEntity, err.Error())
	case errors.Is(err, txengine.ErrNoStrategy),
		errors.Is(err, txengine.ErrInvalidAmount),
		errors.Is(err, txengine.ErrTargetRequired),
		errors.Is(err, txengine.ErrMemoNotSupported):
		writeError(w, http.StatusBadRequest, err.Error())
	default:
		slog.Error("failed to build proposal", "error", err)
		writeError(w, http.StatusBadGateway, "backend unavailable")
	}
}

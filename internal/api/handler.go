package api

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/samber/lo"

	"github.com/mtlprog/coincore/internal/activity"
	"github.com/mtlprog/coincore/internal/balance"
	"github.com/mtlprog/coincore/internal/coincore"
	"github.com/mtlprog/coincore/internal/domain"
	"github.com/mtlprog/coincore/internal/trending"
	"github.com/mtlprog/coincore/internal/txengine"
)

// Accounts looks up loaded accounts.
type Accounts interface {
	Accounts(ctx context.Context) ([]coincore.Account, error)
	Account(ctx context.Context, id string) (coincore.Account, error)
	AllWallets(ctx context.Context) (*coincore.Group, error)
}

// Feed serves reconciled activity.
type Feed interface {
	Fetch(ctx context.Context, scope coincore.Account, force bool) ([]coincore.ActivityItem, error)
}

// Advisor suggests swap pairs.
type Advisor interface {
	Pairs(ctx context.Context) []trending.Pair
}

// Proposer turns transaction requests into proposals.
type Proposer interface {
	Propose(ctx context.Context, req txengine.Request) (txengine.Proposal, error)
}

// Handler provides HTTP endpoints for the account engine.
type Handler struct {
	accounts    Accounts
	feed        Feed
	advisor     Advisor
	proposer    Proposer
	balanceWait time.Duration
}

// NewHandler creates a new API handler. advisor and proposer may be nil, in
// which case their routes answer 404.
func NewHandler(accounts Accounts, feed Feed, advisor Advisor, proposer Proposer) *Handler {
	if accounts == nil || feed == nil {
		panic("api: accounts and feed must not be nil")
	}
	return &Handler{
		accounts:    accounts,
		feed:        feed,
		advisor:     advisor,
		proposer:    proposer,
		balanceWait: 10 * time.Second,
	}
}

// accountView is the JSON shape of an account.
type accountView struct {
	ID         string `json:"id"`
	Label      string `json:"label"`
	Currency   string `json:"currency"`
	Kind       string `json:"kind"`
	IsDefault  bool   `json:"isDefault"`
	IsArchived bool   `json:"isArchived"`
	IsFunded   bool   `json:"isFunded"`
}

func viewOf(acc coincore.Account) accountView {
	return accountView{
		ID:         acc.ID(),
		Label:      acc.Label(),
		Currency:   acc.Currency().Code,
		Kind:       string(acc.Kind()),
		IsDefault:  acc.IsDefault(),
		IsArchived: acc.IsArchived(),
		IsFunded:   acc.IsFunded(),
	}
}

// ListAccounts handles GET /api/v1/accounts.
func (h *Handler) ListAccounts(w http.ResponseWriter, r *http.Request) {
	accounts, err := h.accounts.Accounts(r.Context())
	if err != nil {
		slog.Error("failed to list accounts", "error", err)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	writeJSON(w, http.StatusOK, lo.Map(accounts, func(a coincore.Account, _ int) accountView { return viewOf(a) }))
}

// GetAccount handles GET /api/v1/accounts/{id}.
func (h *Handler) GetAccount(w http.ResponseWriter, r *http.Request) {
	acc, ok := h.account(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, viewOf(acc))
}

// GetActivity handles GET /api/v1/activity, the reconciled all-wallets feed.
func (h *Handler) GetActivity(w http.ResponseWriter, r *http.Request) {
	group, err := h.accounts.AllWallets(r.Context())
	if err != nil {
		slog.Error("failed to load wallets", "error", err)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	h.writeActivity(w, r, group)
}

// GetAccountActivity handles GET /api/v1/accounts/{id}/activity.
func (h *Handler) GetAccountActivity(w http.ResponseWriter, r *http.Request) {
	acc, ok := h.account(w, r)
	if !ok {
		return
	}
	h.writeActivity(w, r, acc)
}

func (h *Handler) writeActivity(w http.ResponseWriter, r *http.Request, scope coincore.Account) {
	const maxLimit = 500
	limit := 50
	if l := r.URL.Query().Get("limit"); l != "" {
		if n, err := strconv.Atoi(l); err == nil && n > 0 {
			limit = min(n, maxLimit)
		}
	}
	force, _ := strconv.ParseBool(r.URL.Query().Get("force"))

	items, err := h.feed.Fetch(r.Context(), scope, force)
	if err != nil {
		slog.Error("failed to fetch activity", "scope", scope.ID(), "error", err)
		writeError(w, http.StatusBadGateway, "activity unavailable")
		return
	}
	if len(items) > limit {
		items = items[:limit]
	}
	writeJSON(w, http.StatusOK, activity.Entries(items))
}

// GetBalance handles GET /api/v1/accounts/{id}/balance. It answers with the
// first fiat-valued balance the account emits.
func (h *Handler) GetBalance(w http.ResponseWriter, r *http.Request) {
	acc, ok := h.account(w, r)
	if !ok {
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), h.balanceWait)
	defer cancel()

	var (
		b    balance.AccountBalance
		open bool
	)
	select {
	case b, open = <-acc.Balance(ctx):
	case <-ctx.Done():
	}
	if !open {
		writeError(w, http.StatusGatewayTimeout, "balance unavailable")
		return
	}
	writeJSON(w, http.StatusOK, b)
}

// GetActions handles GET /api/v1/accounts/{id}/actions.
func (h *Handler) GetActions(w http.ResponseWriter, r *http.Request) {
	acc, ok := h.account(w, r)
	if !ok {
		return
	}
	actions, err := acc.AvailableActions(r.Context())
	if err != nil {
		h.writeAccountError(w, acc, err)
		return
	}
	writeJSON(w, http.StatusOK, actions.Sorted())
}

// GetAddress handles GET /api/v1/accounts/{id}/address.
func (h *Handler) GetAddress(w http.ResponseWriter, r *http.Request) {
	acc, ok := h.account(w, r)
	if !ok {
		return
	}
	addr, err := acc.ReceiveAddress(r.Context())
	if err != nil {
		h.writeAccountError(w, acc, err)
		return
	}
	writeJSON(w, http.StatusOK, addr)
}

// trendingView is the JSON shape of a suggested pair.
type trendingView struct {
	Source         accountView `json:"source"`
	Destination    accountView `json:"destination"`
	IsSourceFunded bool        `json:"isSourceFunded"`
	Enabled        bool        `json:"enabled"`
}

// GetTrending handles GET /api/v1/trending.
func (h *Handler) GetTrending(w http.ResponseWriter, r *http.Request) {
	if h.advisor == nil {
		writeError(w, http.StatusNotFound, "trending pairs not configured")
		return
	}
	pairs := h.advisor.Pairs(r.Context())
	writeJSON(w, http.StatusOK, lo.Map(pairs, func(p trending.Pair, _ int) trendingView {
		return trendingView{
			Source:         viewOf(p.Source),
			Destination:    viewOf(p.Destination),
			IsSourceFunded: p.IsSourceFunded,
			Enabled:        p.Enabled,
		}
	}))
}

// account resolves the {id} path value, writing the error response itself.
func (h *Handler) account(w http.ResponseWriter, r *http.Request) (coincore.Account, bool) {
	id := r.PathValue("id")
	acc, err := h.accounts.Account(r.Context(), id)
	if err != nil {
		if errors.Is(err, coincore.ErrAccountNotFound) {
			writeError(w, http.StatusNotFound, "account not found")
			return nil, false
		}
		slog.Error("failed to look up account", "id", id, "error", err)
		writeError(w, http.StatusInternalServerError, "internal error")
		return nil, false
	}
	return acc, true
}

func (h *Handler) writeAccountError(w http.ResponseWriter, acc coincore.Account, err error) {
	switch {
	case errors.Is(err, coincore.ErrUnsupportedOperation):
		writeError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, coincore.ErrDefaultAccountArchive):
		writeError(w, http.StatusConflict, err.Error())
	default:
		slog.Error("account operation failed", "id", acc.ID(), "error", err)
		writeError(w, http.StatusBadGateway, "backend unavailable")
	}
}

func parseMoney(s string, c domain.Currency) (domain.Money, error) {
	return domain.MoneyFromString(s, c)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	data, err := json.Marshal(v)
	if err != nil {
		slog.Error("failed to marshal JSON response", "error", err)
		http.Error(w, `{"error":"internal error"}`, http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if _, err := w.Write(data); err != nil {
		slog.Warn("failed to write HTTP response body", "error", err)
		return
	}
	_, _ = w.Write([]byte("\n"))
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

// Package export writes the reconciled activity feed to spreadsheets.
package export

import (
	"cmp"
	"context"
	"fmt"
	"log/slog"
	"slices"
	"time"

	"github.com/samber/lo"
	"github.com/shopspring/decimal"

	"github.com/mtlprog/coincore/internal/activity"
	"github.com/mtlprog/coincore/internal/coincore"
)

const (
	sheetActivity = "ACTIVITY"
	sheetAccounts = "ACCOUNTS"
	dateLayout    = "2006-01-02 15:04:05"
)

// AccountRow summarizes the feed of one account.
type AccountRow struct {
	AccountID    string
	Label        string
	Currency     string
	Items        int
	LastActivity time.Time
}

// Report is everything an export writes.
type Report struct {
	GeneratedAt time.Time
	Entries     []activity.Entry
	Accounts    []AccountRow
}

// Writer writes a report to a spreadsheet destination.
type Writer interface {
	Write(ctx context.Context, r Report) error
}

// Feed serves the reconciled activity of an account.
type Feed interface {
	Fetch(ctx context.Context, scope coincore.Account, force bool) ([]coincore.ActivityItem, error)
}

// Wallets returns the group of every active account.
type Wallets interface {
	AllWallets(ctx context.Context) (*coincore.Group, error)
}

// Service builds reports from the all-wallets feed and hands them to writers.
type Service struct {
	feed    Feed
	wallets Wallets
	writers []Writer
}

// NewService creates a new export Service.
func NewService(feed Feed, wallets Wallets, writers ...Writer) *Service {
	if feed == nil || wallets == nil {
		panic("export: feed and wallets must not be nil")
	}
	return &Service{feed: feed, wallets: wallets, writers: writers}
}

// Export writes the current all-wallets feed with every configured writer.
// A failing writer does not stop the others; the first error is returned.
func (s *Service) Export(ctx context.Context) error {
	group, err := s.wallets.AllWallets(ctx)
	if err != nil {
		return fmt.Errorf("loading wallets: %w", err)
	}
	items, err := s.feed.Fetch(ctx, group, false)
	if err != nil {
		return fmt.Errorf("fetching activity: %w", err)
	}

	report := BuildReport(items, time.Now().UTC())

	var firstErr error
	for _, w := range s.writers {
		if err := w.Write(ctx, report); err != nil {
			slog.Error("export writer failed", "writer", fmt.Sprintf("%T", w), "error", err)
			if firstErr == nil {
				firstErr = err
			}
		}
	}
	if firstErr == nil {
		slog.Info("activity exported", "entries", len(report.Entries), "accounts", len(report.Accounts))
	}
	return firstErr
}

// BuildReport flattens a feed and summarizes it per account.
func BuildReport(items []coincore.ActivityItem, at time.Time) Report {
	entries := activity.Entries(items)

	byAccount := lo.GroupBy(entries, func(e activity.Entry) string { return e.AccountID })
	accounts := lo.MapToSlice(byAccount, func(id string, es []activity.Entry) AccountRow {
		last := lo.MaxBy(es, func(a, b activity.Entry) bool { return a.Timestamp.After(b.Timestamp) })
		return AccountRow{
			AccountID:    id,
			Label:        es[0].Account,
			Currency:     es[0].Value.Currency().Code,
			Items:        len(es),
			LastActivity: last.Timestamp,
		}
	})
	slices.SortFunc(accounts, func(a, b AccountRow) int { return cmp.Compare(a.AccountID, b.AccountID) })

	return Report{GeneratedAt: at, Entries: entries, Accounts: accounts}
}

// activityRows builds the ACTIVITY sheet.
// Columns: Date | Kind | Detail | State | Account | Amount | Currency | Fee | Fee currency | From | To | Hash | Memo | TxID
func activityRows(r Report) [][]any {
	data := make([][]any, 0, len(r.Entries)+1)
	data = append(data, []any{
		"Date", "Kind", "Detail", "State", "Account",
		"Amount", "Currency", "Fee", "Fee currency",
		"From", "To", "Hash", "Memo", "TxID",
	})

	for _, e := range r.Entries {
		var fee, feeCurrency any
		if e.Fee != nil {
			fee, feeCurrency = toFloat(e.Fee.Amount()), e.Fee.Currency().Code
		}
		data = append(data, []any{
			e.Timestamp.Format(dateLayout), e.Kind, e.Detail, e.State, e.Account,
			toFloat(e.Value.Amount()), e.Value.Currency().Code, fee, feeCurrency,
			e.From, e.To, e.Hash, e.Memo, e.TxID,
		})
	}
	return data
}

// accountRows builds the ACCOUNTS sheet.
// Columns: Account ID | Label | Currency | Items | Last activity
func accountRows(r Report) [][]any {
	data := [][]any{
		{"Account ID", "Label", "Currency", "Items", "Last activity"},
	}
	for _, a := range r.Accounts {
		data = append(data, []any{
			a.AccountID, a.Label, a.Currency, a.Items, a.LastActivity.Format(dateLayout),
		})
	}
	return data
}

func toFloat(d decimal.Decimal) float64 {
	f, _ := d.Float64()
	return f
}

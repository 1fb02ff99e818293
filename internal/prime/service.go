// Package prime reads custodial deposits and withdrawals from Coinbase Prime.
package prime

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/coinbase-samples/prime-sdk-go/credentials"
	"github.com/shopspring/decimal"

	"github.com/mtlprog/coincore/internal/backend"
	"github.com/mtlprog/coincore/internal/domain"
)

var ErrNoWallet = errors.New("no Prime trading wallet")

// Service implements backend.TransferService on top of a Prime portfolio.
type Service struct {
	api         gateway
	portfolioID string
	networks    map[string]string

	mu      sync.Mutex
	wallets map[string]string
}

// NewService connects to Prime. networks maps asset codes to Prime network
// ids used when creating deposit addresses; unlisted assets use the default
// network of their wallet.
func NewService(creds *credentials.Credentials, portfolioID string, networks map[string]string) (*Service, error) {
	if creds == nil {
		return nil, errors.New("prime: missing credentials")
	}
	api, err := newSDKGateway(creds)
	if err != nil {
		return nil, err
	}
	return newService(api, portfolioID, networks), nil
}

func newService(api gateway, portfolioID string, networks map[string]string) *Service {
	return &Service{
		api:         api,
		portfolioID: portfolioID,
		networks:    networks,
		wallets:     make(map[string]string),
	}
}

// Credentials builds SDK credentials from the API key triple.
func Credentials(accessKey, passphrase, signingKey string) *credentials.Credentials {
	return &credentials.Credentials{
		AccessKey:  accessKey,
		Passphrase: passphrase,
		SigningKey: signingKey,
	}
}

func (s *Service) walletID(ctx context.Context, code string) (string, error) {
	s.mu.Lock()
	id, ok := s.wallets[code]
	s.mu.Unlock()
	if ok {
		return id, nil
	}

	id, err := s.api.TradingWallet(ctx, s.portfolioID, code)
	if err != nil {
		return "", err
	}
	s.mu.Lock()
	s.wallets[code] = id
	s.mu.Unlock()
	return id, nil
}

// GetTransfers lists deposits and withdrawals of the trading wallet for asset.
// Records that cannot be parsed are skipped.
func (s *Service) GetTransfers(ctx context.Context, asset domain.Currency) ([]backend.TransferItem, error) {
	walletID, err := s.walletID(ctx, asset.Code)
	if err != nil {
		return nil, err
	}
	raw, err := s.api.Transfers(ctx, s.portfolioID, walletID)
	if err != nil {
		return nil, fmt.Errorf("fetching %s transfers: %w", asset.Code, err)
	}

	items := make([]backend.TransferItem, 0, len(raw))
	for _, tx := range raw {
		item, err := toTransferItem(tx, asset)
		if err != nil {
			slog.Warn("skipping Prime transaction", "id", tx.ID, "error", err)
			continue
		}
		items = append(items, item)
	}
	return items, nil
}

// DepositAddress creates a fresh deposit address on the trading wallet.
func (s *Service) DepositAddress(ctx context.Context, asset domain.Currency) (backend.ReceiveAddress, error) {
	walletID, err := s.walletID(ctx, asset.Code)
	if err != nil {
		return backend.ReceiveAddress{}, err
	}
	addr, err := s.api.CreateAddress(ctx, s.portfolioID, walletID, s.networks[asset.Code])
	if err != nil {
		return backend.ReceiveAddress{}, fmt.Errorf("%s deposit address: %w", asset.Code, err)
	}
	return backend.ReceiveAddress{Address: addr, Label: asset.String() + " Trading"}, nil
}

func toTransferItem(tx transfer, asset domain.Currency) (backend.TransferItem, error) {
	var typ backend.TransactionType
	switch tx.Type {
	case "DEPOSIT":
		typ = backend.TxTypeDeposit
	case "WITHDRAWAL":
		typ = backend.TxTypeWithdrawal
	default:
		return backend.TransferItem{}, fmt.Errorf("unexpected type %q", tx.Type)
	}

	amount, err := decimal.NewFromString(tx.Amount)
	if err != nil {
		return backend.TransferItem{}, fmt.Errorf("parsing amount %q: %w", tx.Amount, err)
	}

	fee := domain.ZeroMoney(asset)
	if tx.Fees != "" && (tx.FeeSymbol == "" || tx.FeeSymbol == asset.Code) {
		f, err := decimal.NewFromString(tx.Fees)
		if err != nil {
			return backend.TransferItem{}, fmt.Errorf("parsing fees %q: %w", tx.Fees, err)
		}
		fee = domain.NewMoney(f, asset)
	}

	item := backend.TransferItem{
		ID:        tx.ID,
		Type:      typ,
		State:     mapStatus(tx.Status),
		Amount:    domain.NewMoney(amount.Abs(), asset),
		Fee:       fee,
		CreatedAt: tx.Created.UTC(),
	}
	if len(tx.BlockchainIDs) > 0 {
		item.TxHash = tx.BlockchainIDs[0]
	}
	return item, nil
}

func mapStatus(status string) backend.OrderState {
	switch status {
	case "TRANSACTION_DONE", "TRANSACTION_IMPORTED":
		return backend.StateFinished
	case "TRANSACTION_CANCELLED":
		return backend.StateCanceled
	case "TRANSACTION_FAILED", "TRANSACTION_REJECTED", "TRANSACTION_EXPIRED":
		return backend.StateFailed
	default:
		return backend.StatePending
	}
}

package prime

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/coinbase-samples/prime-sdk-go/client"
	"github.com/coinbase-samples/prime-sdk-go/credentials"
	"github.com/coinbase-samples/prime-sdk-go/model"
	"github.com/coinbase-samples/prime-sdk-go/transactions"
	"github.com/coinbase-samples/prime-sdk-go/wallets"
	"golang.org/x/net/http2"
)

const walletTypeTrading = "TRADING"

// transfer is a Prime wallet transaction reduced to the fields the ledger uses.
type transfer struct {
	ID            string
	Type          string
	Status        string
	Symbol        string
	Amount        string
	Fees          string
	FeeSymbol     string
	BlockchainIDs []string
	Created       time.Time
}

// gateway is the part of the Prime API the transfer service needs.
type gateway interface {
	TradingWallet(ctx context.Context, portfolioID, symbol string) (string, error)
	Transfers(ctx context.Context, portfolioID, walletID string) ([]transfer, error)
	CreateAddress(ctx context.Context, portfolioID, walletID, network string) (string, error)
}

type sdkGateway struct {
	walletsSvc      wallets.WalletsService
	transactionsSvc transactions.TransactionsService
}

func newSDKGateway(creds *credentials.Credentials) (*sdkGateway, error) {
	httpClient, err := newHTTPClient()
	if err != nil {
		return nil, fmt.Errorf("creating Prime HTTP client: %w", err)
	}
	restClient := client.NewRestClient(creds, httpClient)
	return &sdkGateway{
		walletsSvc:      wallets.NewWalletsService(restClient),
		transactionsSvc: transactions.NewTransactionsService(restClient),
	}, nil
}

func newHTTPClient() (http.Client, error) {
	tr := &http.Transport{
		ResponseHeaderTimeout: 30 * time.Second,
		Proxy:                 http.ProxyFromEnvironment,
		DialContext: (&net.Dialer{
			KeepAlive: 30 * time.Second,
			Timeout:   15 * time.Second,
		}).DialContext,
		MaxIdleConns:          10,
		IdleConnTimeout:       90 * time.Second,
		TLSHandshakeTimeout:   10 * time.Second,
		MaxIdleConnsPerHost:   5,
		ExpectContinueTimeout: 5 * time.Second,
	}
	if err := http2.ConfigureTransport(tr); err != nil {
		return http.Client{}, err
	}
	return http.Client{Transport: tr, Timeout: 60 * time.Second}, nil
}

func (g *sdkGateway) TradingWallet(ctx context.Context, portfolioID, symbol string) (string, error) {
	resp, err := g.walletsSvc.ListWallets(ctx, &wallets.ListWalletsRequest{
		PortfolioId: portfolioID,
		Type:        walletTypeTrading,
		Symbols:     []string{symbol},
	})
	if err != nil {
		return "", fmt.Errorf("listing %s wallets: %w", symbol, err)
	}
	for _, w := range resp.Wallets {
		if w.Symbol == symbol {
			return w.Id, nil
		}
	}
	return "", fmt.Errorf("%w: %s", ErrNoWallet, symbol)
}

func (g *sdkGateway) Transfers(ctx context.Context, portfolioID, walletID string) ([]transfer, error) {
	resp, err := g.transactionsSvc.ListWalletTransactions(ctx, &transactions.ListWalletTransactionsRequest{
		PortfolioId: portfolioID,
		WalletId:    walletID,
		Types:       []string{"DEPOSIT", "WITHDRAWAL"},
		Pagination:  &model.PaginationParams{Limit: 500},
	})
	if err != nil {
		return nil, fmt.Errorf("listing wallet transactions: %w", err)
	}

	out := make([]transfer, 0, len(resp.Transactions))
	for _, tx := range resp.Transactions {
		out = append(out, transfer{
			ID:            tx.Id,
			Type:          tx.Type,
			Status:        tx.Status,
			Symbol:        tx.Symbol,
			Amount:        tx.Amount,
			Fees:          tx.Fees,
			FeeSymbol:     tx.FeeSymbol,
			BlockchainIDs: tx.BlockchainIds,
			Created:       tx.Created,
		})
	}
	return out, nil
}

func (g *sdkGateway) CreateAddress(ctx context.Context, portfolioID, walletID, network string) (string, error) {
	resp, err := g.walletsSvc.CreateWalletAddress(ctx, &wallets.CreateWalletAddressRequest{
		PortfolioId: portfolioID,
		WalletId:    walletID,
		NetworkId:   network,
	})
	if err != nil {
		return "", fmt.Errorf("creating wallet address: %w", err)
	}
	return resp.Address, nil
}

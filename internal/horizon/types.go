package horizon

type accountRecord struct {
	ID       string           `json:"id"`
	Balances []accountBalance `json:"balances"`
}

type accountBalance struct {
	AssetType   string `json:"asset_type"`
	AssetCode   string `json:"asset_code"`
	AssetIssuer string `json:"asset_issuer"`
	Balance     string `json:"balance"`
}

type transactionRecord struct {
	Hash       string `json:"hash"`
	Memo       string `json:"memo"`
	MemoType   string `json:"memo_type"`
	FeeCharged string `json:"fee_charged"`
	FeeAccount string `json:"fee_account"`
	Successful bool   `json:"successful"`
}

// paymentRecord covers payment, path payment, create_account and
// account_merge operations as returned by /accounts/{id}/payments.
type paymentRecord struct {
	ID              string             `json:"id"`
	PagingToken     string             `json:"paging_token"`
	Type            string             `json:"type"`
	CreatedAt       string             `json:"created_at"`
	TransactionHash string             `json:"transaction_hash"`
	AssetType       string             `json:"asset_type"`
	From            string             `json:"from"`
	To              string             `json:"to"`
	Amount          string             `json:"amount"`
	Funder          string             `json:"funder"`
	Account         string             `json:"account"`
	StartingBalance string             `json:"starting_balance"`
	Transaction     *transactionRecord `json:"transaction"`
}

type paymentsPage struct {
	Links struct {
		Next struct {
			Href string `json:"href"`
		} `json:"next"`
	} `json:"_links"`
	Embedded struct {
		Records []paymentRecord `json:"records"`
	} `json:"_embedded"`
}

type feeDistribution struct {
	Min  string `json:"min"`
	Mode string `json:"mode"`
	P50  string `json:"p50"`
	P90  string `json:"p90"`
}

type feeStats struct {
	LastLedger        string          `json:"last_ledger"`
	LastLedgerBaseFee string          `json:"last_ledger_base_fee"`
	FeeCharged        feeDistribution `json:"fee_charged"`
}

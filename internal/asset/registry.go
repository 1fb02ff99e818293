// Package asset holds the registry of supported currencies, their capability
// flags and the chain services bound to them.
package asset

import (
	"context"
	"errors"
	"fmt"
	"os"
	"sync"

	"github.com/samber/lo"
	"github.com/shopspring/decimal"
	"gopkg.in/yaml.v2"

	"github.com/mtlprog/coincore/internal/backend"
	"github.com/mtlprog/coincore/internal/domain"
)

// ErrUnknownAsset is returned when a currency code is not registered.
var ErrUnknownAsset = errors.New("unknown asset")

// Engine names the transaction model used for an asset.
type Engine string

const (
	EngineUTXO  Engine = "utxo"
	EngineETH   Engine = "eth"
	EngineERC20 Engine = "erc20"
	EngineXLM   Engine = "xlm"
	EngineFiat  Engine = "fiat"
)

// Capability is a product feature an asset supports.
type Capability string

const (
	CapNonCustodial     Capability = "noncustodial"
	CapCustodial        Capability = "custodial"
	CapCustodialReceive Capability = "custodial_receive"
	CapInterest         Capability = "interest"
	CapFiat             Capability = "fiat"
)

// Info is the static metadata of one asset.
type Info struct {
	Currency     domain.Currency
	Name         string
	Network      string
	CoingeckoID  string
	Engine       Engine
	Capabilities []Capability
	NetworkFee   decimal.Decimal
}

func (i Info) Has(c Capability) bool {
	return lo.Contains(i.Capabilities, c)
}

// Registry maps currency codes to asset metadata. It is safe for concurrent use.
type Registry struct {
	assets []Info
	byCode map[string]Info

	mu     sync.RWMutex
	chains map[Engine]backend.ChainService
}

// NewRegistry validates the given assets and builds a registry, preserving order.
func NewRegistry(assets []Info) (*Registry, error) {
	byCode := make(map[string]Info, len(assets))
	for i, a := range assets {
		if err := a.Currency.Validate(); err != nil {
			return nil, fmt.Errorf("asset at index %d: %w", i, err)
		}
		if _, dup := byCode[a.Currency.Code]; dup {
			return nil, fmt.Errorf("asset at index %d: duplicate code %s", i, a.Currency.Code)
		}
		byCode[a.Currency.Code] = a
	}

	for _, a := range assets {
		if !a.Currency.IsSubToken() {
			continue
		}
		parent, ok := byCode[a.Currency.Parent]
		if !ok {
			return nil, fmt.Errorf("asset %s: unknown parent chain %s", a.Currency.Code, a.Currency.Parent)
		}
		if parent.Currency.IsSubToken() || parent.Currency.IsFiat() {
			return nil, fmt.Errorf("asset %s: parent %s is not a native chain", a.Currency.Code, parent.Currency.Code)
		}
	}

	return &Registry{
		assets: assets,
		byCode: byCode,
		chains: make(map[Engine]backend.ChainService),
	}, nil
}

// Lookup returns the metadata for code.
func (r *Registry) Lookup(code string) (Info, error) {
	a, ok := r.byCode[code]
	if !ok {
		return Info{}, fmt.Errorf("%w: %s", ErrUnknownAsset, code)
	}
	return a, nil
}

// Currency returns just the currency for code.
func (r *Registry) Currency(code string) (domain.Currency, error) {
	a, err := r.Lookup(code)
	if err != nil {
		return domain.Currency{}, err
	}
	return a.Currency, nil
}

// All returns every asset in registration order.
func (r *Registry) All() []Info {
	return append([]Info(nil), r.assets...)
}

// WithCapability returns the assets that support c.
func (r *Registry) WithCapability(c Capability) []Info {
	return lo.Filter(r.assets, func(a Info, _ int) bool { return a.Has(c) })
}

// Crypto returns every non-fiat asset.
func (r *Registry) Crypto() []Info {
	return lo.Filter(r.assets, func(a Info, _ int) bool { return a.Currency.IsCrypto() })
}

// Fiat returns every fiat currency.
func (r *Registry) Fiat() []Info {
	return lo.Filter(r.assets, func(a Info, _ int) bool { return a.Currency.IsFiat() })
}

// BindChain registers the chain service used by every asset with the given engine.
func (r *Registry) BindChain(engine Engine, svc backend.ChainService) {
	if svc == nil {
		panic("asset: nil chain service")
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.chains[engine] = svc
}

// ChainService returns the chain service for code. A sub-token without a
// service for its own engine uses its parent chain's service.
func (r *Registry) ChainService(code string) (backend.ChainService, bool) {
	a, ok := r.byCode[code]
	if !ok {
		return nil, false
	}

	r.mu.RLock()
	defer r.mu.RUnlock()

	if svc, ok := r.chains[a.Engine]; ok {
		return svc, true
	}
	if a.Currency.IsSubToken() {
		if parent, ok := r.byCode[a.Currency.Parent]; ok {
			svc, ok := r.chains[parent.Engine]
			return svc, ok
		}
	}
	return nil, false
}

// CoingeckoIDs maps currency codes to CoinGecko coin ids for the assets that have one.
func (r *Registry) CoingeckoIDs() map[string]string {
	withID := lo.Filter(r.assets, func(a Info, _ int) bool { return a.CoingeckoID != "" })
	return lo.SliceToMap(withID, func(a Info) (string, string) {
		return a.Currency.Code, a.CoingeckoID
	})
}

// Networks maps currency codes to their custodial network ids.
func (r *Registry) Networks() map[string]string {
	withNetwork := lo.Filter(r.assets, func(a Info, _ int) bool { return a.Network != "" })
	return lo.SliceToMap(withNetwork, func(a Info) (string, string) {
		return a.Currency.Code, a.Network
	})
}

// FeeOptions implements backend.FeeService from the static network fees in the
// registry. The priority fee is twice the regular one.
func (r *Registry) FeeOptions(_ context.Context, currency domain.Currency) (backend.FeeOptions, error) {
	a, err := r.Lookup(currency.Code)
	if err != nil {
		return backend.FeeOptions{}, err
	}
	feeCurrency := a.Currency
	if a.Currency.IsSubToken() {
		parent, err := r.Lookup(a.Currency.Parent)
		if err != nil {
			return backend.FeeOptions{}, err
		}
		feeCurrency = parent.Currency
	}
	regular := domain.NewMoney(a.NetworkFee, feeCurrency)
	return backend.FeeOptions{
		Regular:  regular,
		Priority: regular.MulRate(decimal.NewFromInt(2)),
	}, nil
}

type assetEntry struct {
	Code         string   `yaml:"code"`
	Name         string   `yaml:"name"`
	Ticker       string   `yaml:"ticker"`
	Kind         string   `yaml:"kind"`
	Decimals     int32    `yaml:"decimals"`
	Parent       string   `yaml:"parent"`
	Engine       string   `yaml:"engine"`
	Network      string   `yaml:"network"`
	CoingeckoID  string   `yaml:"coingecko_id"`
	NetworkFee   string   `yaml:"network_fee"`
	Capabilities []string `yaml:"capabilities"`
}

type assetsFile struct {
	Assets []assetEntry `yaml:"assets"`
}

// LoadFile reads a registry from a YAML file.
func LoadFile(path string) (*Registry, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("unable to read %s: %w", path, err)
	}
	reg, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("unable to load %s: %w", path, err)
	}
	return reg, nil
}

// Parse builds a registry from YAML.
func Parse(data []byte) (*Registry, error) {
	var file assetsFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("parsing assets: %w", err)
	}

	infos := make([]Info, 0, len(file.Assets))
	for i, e := range file.Assets {
		info, err := e.toInfo()
		if err != nil {
			return nil, fmt.Errorf("asset at index %d: %w", i, err)
		}
		infos = append(infos, info)
	}
	return NewRegistry(infos)
}

func (e assetEntry) toInfo() (Info, error) {
	if e.Code == "" {
		return Info{}, fmt.Errorf("missing code")
	}
	if e.Kind == "" {
		return Info{}, fmt.Errorf("%s: missing kind", e.Code)
	}

	kind := domain.CurrencyKind(e.Kind)
	engine := Engine(e.Engine)
	switch engine {
	case EngineUTXO, EngineETH, EngineERC20, EngineXLM, EngineFiat:
	case "":
		if kind == domain.CurrencyKindFiat {
			engine = EngineFiat
		} else {
			return Info{}, fmt.Errorf("%s: missing engine", e.Code)
		}
	default:
		return Info{}, fmt.Errorf("%s: unknown engine %q", e.Code, e.Engine)
	}

	caps := make([]Capability, 0, len(e.Capabilities))
	for _, c := range e.Capabilities {
		switch capability := Capability(c); capability {
		case CapNonCustodial, CapCustodial, CapCustodialReceive, CapInterest, CapFiat:
			caps = append(caps, capability)
		default:
			return Info{}, fmt.Errorf("%s: unknown capability %q", e.Code, c)
		}
	}

	fee := decimal.Zero
	if e.NetworkFee != "" {
		var err error
		if fee, err = decimal.NewFromString(e.NetworkFee); err != nil {
			return Info{}, fmt.Errorf("%s: invalid network_fee %q: %w", e.Code, e.NetworkFee, err)
		}
	}

	ticker := e.Ticker
	if ticker == "" {
		ticker = e.Code
	}

	return Info{
		Currency: domain.Currency{
			Code:     e.Code,
			Ticker:   ticker,
			Kind:     kind,
			Decimals: e.Decimals,
			Parent:   e.Parent,
		},
		Name:         e.Name,
		Network:      e.Network,
		CoingeckoID:  e.CoingeckoID,
		Engine:       engine,
		Capabilities: caps,
		NetworkFee:   fee,
	}, nil
}

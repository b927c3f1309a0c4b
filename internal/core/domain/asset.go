package domain

import (
	"strings"

	"custody-ledger/pkg/apperror"

	"github.com/shopspring/decimal"
)

// Asset is a fiat currency code or crypto symbol. The set is closed:
// anything not listed here is rejected at the boundary by ParseAsset.
type Asset string

const (
	AssetUSD Asset = "USD"
	AssetAED Asset = "AED"
	AssetEUR Asset = "EUR"
	AssetGBP Asset = "GBP"

	AssetBTC  Asset = "BTC"
	AssetETH  Asset = "ETH"
	AssetUSDT Asset = "USDT"
	AssetUSDC Asset = "USDC"
)

// AssetClass separates fiat currencies from crypto tokens.
type AssetClass string

const (
	AssetClassFiat   AssetClass = "FIAT"
	AssetClassCrypto AssetClass = "CRYPTO"
)

type assetInfo struct {
	class AssetClass
	scale int32 // max decimal places accepted for an amount
}

var assets = map[Asset]assetInfo{
	AssetUSD:  {AssetClassFiat, 2},
	AssetAED:  {AssetClassFiat, 2},
	AssetEUR:  {AssetClassFiat, 2},
	AssetGBP:  {AssetClassFiat, 2},
	AssetBTC:  {AssetClassCrypto, 8},
	AssetETH:  {AssetClassCrypto, 18},
	AssetUSDT: {AssetClassCrypto, 6},
	AssetUSDC: {AssetClassCrypto, 6},
}

// ParseAsset normalises s and returns the matching Asset.
func ParseAsset(s string) (Asset, error) {
	a := Asset(strings.ToUpper(strings.TrimSpace(s)))
	if !a.Valid() {
		return "", apperror.ErrInvalidAsset(s)
	}
	return a, nil
}

// Assets lists every supported asset, fiat first.
func Assets() []Asset {
	return []Asset{
		AssetUSD, AssetAED, AssetEUR, AssetGBP,
		AssetBTC, AssetETH, AssetUSDT, AssetUSDC,
	}
}

func (a Asset) Valid() bool {
	_, ok := assets[a]
	return ok
}

func (a Asset) Class() AssetClass {
	return assets[a].class
}

func (a Asset) IsFiat() bool   { return a.Class() == AssetClassFiat }
func (a Asset) IsCrypto() bool { return a.Class() == AssetClassCrypto }

// Scale is the number of decimal places an amount of a may carry.
func (a Asset) Scale() int32 {
	return assets[a].scale
}

func (a Asset) String() string { return string(a) }

// ValidateAmount checks that amount is strictly positive and representable
// in a's precision.
func ValidateAmount(a Asset, amount decimal.Decimal) error {
	if !amount.IsPositive() {
		return apperror.ErrInvalidAmount()
	}
	if !amount.Equal(amount.Truncate(a.Scale())) {
		return apperror.Validation("Amount has more decimal places than " + string(a) + " supports")
	}
	return nil
}

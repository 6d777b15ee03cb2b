package marketdata

import (
	"strings"
)

// Common quote assets, longest match first
var quoteAssets = []string{"USDT", "USDC", "BUSD", "BTC", "ETH", "BNB"}

// BinanceSymbol converts BTC/USDT, btc-usdt or BTCUSDT to Binance's BTCUSDT
func BinanceSymbol(symbol string) string {
	symbol = strings.ToUpper(strings.TrimSpace(symbol))
	symbol = strings.ReplaceAll(symbol, "/", "")
	return strings.ReplaceAll(symbol, "-", "")
}

// StandardSymbol converts a Binance symbol back to BASE/QUOTE. Symbols with
// an unknown quote asset are returned unchanged.
func StandardSymbol(exchangeSymbol string) string {
	exchangeSymbol = strings.ToUpper(exchangeSymbol)
	if strings.Contains(exchangeSymbol, "/") {
		return exchangeSymbol
	}

	for _, quote := range quoteAssets {
		if strings.HasSuffix(exchangeSymbol, quote) && len(exchangeSymbol) > len(quote) {
			return strings.TrimSuffix(exchangeSymbol, quote) + "/" + quote
		}
	}
	return exchangeSymbol
}

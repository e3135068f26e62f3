package exchange

import (
	"BTCPulse/internal/domain/service"
	"BTCPulse/pkg/config"
)

// NewSources builds the enabled adapters in canonical order, applying config
// overrides on top of each adapter's defaults.
func NewSources(cfg config.ExchangesConfig, opts ...Option) []service.Source {
	var out []service.Source
	if !cfg.Binance.Disabled {
		out = append(out, NewBinance(DefaultBinanceSettings().Merge(cfg.Binance), opts...))
	}
	if !cfg.OKX.Disabled {
		out = append(out, NewOKX(DefaultOKXSettings().Merge(cfg.OKX), opts...))
	}
	if !cfg.Huobi.Disabled {
		out = append(out, NewHuobi(DefaultHuobiSettings().Merge(cfg.Huobi), opts...))
	}
	return out
}

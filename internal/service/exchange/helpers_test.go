package exchange

import (
	"BTCPulse/internal/domain/repository"
	"BTCPulse/pkg/logger"
	"BTCPulse/pkg/metrics"
)

func nopLogger() *logger.Logger { return logger.Nop() }

func nopMetrics() repository.Metrics { return metrics.Nop{} }

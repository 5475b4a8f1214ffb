package transfer

import "github.com/Valencza/sistem-inventaris-barang/internal/core/numerator"

const (
	// NumeratorStrategy defines the numbering strategy for transfers.
	// Numbers are user-facing and audited, so we use Strict strategy.
	NumeratorStrategy = numerator.StrategyStrict
)

// NumberConfig returns the transfer numbering configuration:
// TRF-YYYY-NNNN, counter resets every January.
func NumberConfig() numerator.Config {
	return numerator.Config{
		Prefix:      "TRF",
		IncludeYear: true,
		PadWidth:    4,
		ResetPeriod: "year",
	}
}

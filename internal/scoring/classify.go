package scoring

import "github.com/opensource-finance/kestrel/internal/domain"

// Risk classification thresholds. Fixed constants, deliberately not
// configurable through the rule registry.
const (
	highThreshold   = 50 // score > 50 -> high
	mediumThreshold = 25 // score > 25 -> medium
)

// Classify maps a fraud score to a risk level. Pure, deterministic, total:
// exactly 25 is low, exactly 50 is medium, 51 and above is high.
func Classify(score int) domain.RiskLevel {
	switch {
	case score > highThreshold:
		return domain.RiskHigh
	case score > mediumThreshold:
		return domain.RiskMedium
	default:
		return domain.RiskLow
	}
}

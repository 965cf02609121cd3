package license

import (
	"fmt"
	"strings"
)

// Tier is a license class. Ordering is meaningful: a higher tier includes
// every feature of the tiers below it.
type Tier int

const (
	TierTrial Tier = iota
	TierBasic
	TierPro
	TierEnterprise
)

// String returns the canonical tier name as stored in license payloads and
// backend rows.
func (t Tier) String() string {
	switch t {
	case TierTrial:
		return "trial"
	case TierBasic:
		return "basic"
	case TierPro:
		return "professional"
	case TierEnterprise:
		return "enterprise"
	default:
		return fmt.Sprintf("tier(%d)", int(t))
	}
}

// ParseTier maps a tier name to its Tier. "pro" is accepted as an alias for
// "professional"; older keys in the field carry both spellings.
func ParseTier(s string) (Tier, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "trial":
		return TierTrial, nil
	case "basic":
		return TierBasic, nil
	case "pro", "professional":
		return TierPro, nil
	case "enterprise":
		return TierEnterprise, nil
	default:
		return TierTrial, fmt.Errorf("unknown license tier %q", s)
	}
}

// Includes reports whether a license of tier t grants features requiring
// tier required.
func (t Tier) Includes(required Tier) bool {
	return t >= required
}

// MaxFileSize returns the input file size ceiling for the tier in bytes.
// Zero means unlimited.
func (t Tier) MaxFileSize() int64 {
	switch t {
	case TierTrial:
		return 10 << 20 // 10 MiB
	case TierBasic:
		return 100 << 20
	case TierPro:
		return 500 << 20
	default:
		return 0
	}
}

// ActivationLimit returns the number of concurrent machine activations a
// newly issued license of this tier receives. Consulted at issuance only;
// the max_activations already on a license row stays authoritative.
func ActivationLimit(t Tier) int {
	switch t {
	case TierBasic:
		return 1
	case TierPro:
		return 3
	case TierEnterprise:
		return 10
	default:
		return 1
	}
}

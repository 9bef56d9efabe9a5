package models

type KYCTier string

const (
	TierUnverified KYCTier = "unverified"
	TierStandard   KYCTier = "standard"
	TierEnhanced   KYCTier = "enhanced"
)

// TierFromLevel maps the stored KYC verification level to a limit tier.
func TierFromLevel(level int) KYCTier {
	switch {
	case level >= 2:
		return TierEnhanced
	case level == 1:
		return TierStandard
	default:
		return TierUnverified
	}
}

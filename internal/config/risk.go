package config

import (
	"time"
)

// Amounts are in pence.

type TierLimit struct {
	PerTransaction int64
	RollingTotal   int64
}

type LimitsConfig struct {
	Window     time.Duration
	Unverified TierLimit
	Standard   TierLimit
	Enhanced   TierLimit
}

type StepUpConfig struct {
	TransferThreshold      int64
	PaymentThreshold       int64
	StandingOrderThreshold int64
	ChallengeTTL           time.Duration
	CodeLength             int
	MaxAttempts            int
}

type FraudConfig struct {
	LowThreshold        int
	HighThreshold       int
	LargeAmount         int64
	NewPayeeLargeAmount int64
	OffHoursAmount      int64
	OffHoursStart       int
	OffHoursEnd         int
	NewAccountAmount    int64
	NewAccountAge       time.Duration
	RapidWindow         time.Duration
	RapidCount          int
}

type AMLConfig struct {
	LargeTransaction   int64
	ReportingThreshold int64
	StructuringBand    int // percent of the reporting threshold
	StructuringWindow  time.Duration
	StructuringCount   int
}

type CoolingConfig struct {
	FasterPayments time.Duration
	CHAPS          time.Duration
	BACS           time.Duration
}

type Fee struct {
	Fixed       int64
	BasisPoints int64
}

type RailsConfig struct {
	FasterPaymentsLimit  int64
	FasterPaymentsFee    Fee
	CHAPSFee             Fee
	BACSFee              Fee
	FasterPaymentsClear  string
	CHAPSClear           string
	BACSClear            string
	FeeAccount           string
	BankSortCodePrefixes []string
}

type PipelineConfig struct {
	OutcomeTTL time.Duration
	Currency   string
	BankBIC    string
}

type RiskConfig struct {
	Limits   LimitsConfig
	StepUp   StepUpConfig
	Fraud    FraudConfig
	AML      AMLConfig
	Cooling  CoolingConfig
	Rails    RailsConfig
	Pipeline PipelineConfig
}

func LoadRiskConfig() *RiskConfig {
	return &RiskConfig{
		Limits: LimitsConfig{
			Window: getEnvAsDuration("LIMITS_WINDOW", 24*time.Hour),
			Unverified: TierLimit{
				PerTransaction: getEnvAsInt64("LIMITS_UNVERIFIED_PER_TX", 100_000),
				RollingTotal:   getEnvAsInt64("LIMITS_UNVERIFIED_ROLLING", 250_000),
			},
			Standard: TierLimit{
				PerTransaction: getEnvAsInt64("LIMITS_STANDARD_PER_TX", 2_500_000),
				RollingTotal:   getEnvAsInt64("LIMITS_STANDARD_ROLLING", 5_000_000),
			},
			Enhanced: TierLimit{
				PerTransaction: getEnvAsInt64("LIMITS_ENHANCED_PER_TX", 10_000_000),
				RollingTotal:   getEnvAsInt64("LIMITS_ENHANCED_ROLLING", 25_000_000),
			},
		},
		StepUp: StepUpConfig{
			TransferThreshold:      getEnvAsInt64("STEPUP_TRANSFER_THRESHOLD", 2_500_000),
			PaymentThreshold:       getEnvAsInt64("STEPUP_PAYMENT_THRESHOLD", 1_000_000),
			StandingOrderThreshold: getEnvAsInt64("STEPUP_STANDING_ORDER_THRESHOLD", 1_000_000),
			ChallengeTTL:           getEnvAsDuration("STEPUP_CHALLENGE_TTL", 5*time.Minute),
			CodeLength:             getEnvAsInt("STEPUP_CODE_LENGTH", 6),
			MaxAttempts:            getEnvAsInt("STEPUP_MAX_ATTEMPTS", 3),
		},
		Fraud: FraudConfig{
			LowThreshold:        getEnvAsInt("FRAUD_LOW_THRESHOLD", 30),
			HighThreshold:       getEnvAsInt("FRAUD_HIGH_THRESHOLD", 70),
			LargeAmount:         getEnvAsInt64("FRAUD_LARGE_AMOUNT", 500_000),
			NewPayeeLargeAmount: getEnvAsInt64("FRAUD_NEW_PAYEE_LARGE_AMOUNT", 100_000),
			OffHoursAmount:      getEnvAsInt64("FRAUD_OFF_HOURS_AMOUNT", 50_000),
			OffHoursStart:       getEnvAsInt("FRAUD_OFF_HOURS_START", 0),
			OffHoursEnd:         getEnvAsInt("FRAUD_OFF_HOURS_END", 6),
			NewAccountAmount:    getEnvAsInt64("FRAUD_NEW_ACCOUNT_AMOUNT", 50_000),
			NewAccountAge:       getEnvAsDuration("FRAUD_NEW_ACCOUNT_AGE", 30*24*time.Hour),
			RapidWindow:         getEnvAsDuration("FRAUD_RAPID_WINDOW", 10*time.Minute),
			RapidCount:          getEnvAsInt("FRAUD_RAPID_COUNT", 3),
		},
		AML: AMLConfig{
			LargeTransaction:   getEnvAsInt64("AML_LARGE_TRANSACTION", 1_000_000),
			ReportingThreshold: getEnvAsInt64("AML_REPORTING_THRESHOLD", 1_000_000),
			StructuringBand:    getEnvAsInt("AML_STRUCTURING_BAND_PERCENT", 90),
			StructuringWindow:  getEnvAsDuration("AML_STRUCTURING_WINDOW", 7*24*time.Hour),
			StructuringCount:   getEnvAsInt("AML_STRUCTURING_COUNT", 3),
		},
		Cooling: CoolingConfig{
			FasterPayments: getEnvAsDuration("COOLING_FASTER_PAYMENTS", 4*time.Hour),
			CHAPS:          getEnvAsDuration("COOLING_CHAPS", 4*time.Hour),
			BACS:           getEnvAsDuration("COOLING_BACS", 30*time.Minute),
		},
		Rails: RailsConfig{
			FasterPaymentsLimit: getEnvAsInt64("RAILS_FPS_LIMIT", 100_000_000),
			FasterPaymentsFee: Fee{
				Fixed:       getEnvAsInt64("RAILS_FPS_FEE_FIXED", 0),
				BasisPoints: getEnvAsInt64("RAILS_FPS_FEE_BPS", 0),
			},
			CHAPSFee: Fee{
				Fixed:       getEnvAsInt64("RAILS_CHAPS_FEE_FIXED", 2_500),
				BasisPoints: getEnvAsInt64("RAILS_CHAPS_FEE_BPS", 0),
			},
			BACSFee: Fee{
				Fixed:       getEnvAsInt64("RAILS_BACS_FEE_FIXED", 0),
				BasisPoints: getEnvAsInt64("RAILS_BACS_FEE_BPS", 0),
			},
			FasterPaymentsClear:  getEnv("RAILS_FPS_CLEARING_ACCOUNT", "clearing-fps"),
			CHAPSClear:           getEnv("RAILS_CHAPS_CLEARING_ACCOUNT", "clearing-chaps"),
			BACSClear:            getEnv("RAILS_BACS_CLEARING_ACCOUNT", "clearing-bacs"),
			FeeAccount:           getEnv("SYSTEM_FEE_ACCOUNT", "0000000001"),
			BankSortCodePrefixes: getEnvAsList("BANK_SORT_CODE_PREFIXES", []string{"0400"}),
		},
		Pipeline: PipelineConfig{
			OutcomeTTL: getEnvAsDuration("PIPELINE_OUTCOME_TTL", 24*time.Hour),
			Currency:   getEnv("PIPELINE_CURRENCY", "GBP"),
			BankBIC:    getEnv("BANK_BIC", "RPAYGB2L"),
		},
	}
}

package models

// Stage names a step of the authorization pipeline, in execution order.
type Stage string

const (
	StageAuthenticate Stage = "authenticate"
	StageValidate     Stage = "validate"
	StageLimits       Stage = "limits"
	StageStepUp       Stage = "step_up"
	StageChecksum     Stage = "checksum"
	StageCoP          Stage = "confirmation_of_payee"
	StageRail         Stage = "rail"
	StagePayee        Stage = "payee"
	StageCoolingOff   Stage = "cooling_off"
	StageFraud        Stage = "fraud"
	StageAML          Stage = "aml"
	StageMutation     Stage = "mutation"
)

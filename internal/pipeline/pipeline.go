// Package pipeline authorizes outbound payments. Every run passes the same
// fixed sequence of stages and stops at the first terminal outcome; only a run
// that clears every stage reaches the ledger.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/ruralpay/payauth/internal/aml"
	"github.com/ruralpay/payauth/internal/config"
	"github.com/ruralpay/payauth/internal/cop"
	"github.com/ruralpay/payauth/internal/fraud"
	"github.com/ruralpay/payauth/internal/models"
	"github.com/ruralpay/payauth/internal/modulus"
	"github.com/ruralpay/payauth/internal/rails"
)

// ErrInfrastructure marks failures of a collaborator. The attempt is abandoned
// and is never retried by the pipeline itself.
var ErrInfrastructure = errors.New("could not complete, try again")

var ErrInvalidAmount = errors.New("amount must be greater than zero")

type StageError struct {
	Stage models.Stage
	Err   error
}

func (e *StageError) Error() string {
	return fmt.Sprintf("%s stage: %v", e.Stage, e.Err)
}

func (e *StageError) Unwrap() []error {
	return []error{ErrInfrastructure, e.Err}
}

func fail(stage models.Stage, err error) error {
	return &StageError{Stage: stage, Err: err}
}

// transactionNamespace scopes ledger transaction ids. Intent ids are only
// unique per user, so the ledger never sees them directly.
var transactionNamespace = uuid.MustParse("6f1c9a52-3d7e-4b8a-9e21-5c0d4f7a8b13")

// TransactionID is the ledger transaction id for a user's intent.
func TransactionID(userID, intentID string) string {
	return uuid.NewSHA1(transactionNamespace, []byte(userID+"\x00"+intentID)).String()
}

const (
	reasonNameMismatch  = "The name you entered doesn't match the name on this account. Check the details with the person you are paying."
	reasonFraudBlock    = "We've stopped this payment to protect your account. Please contact us if you think this is a mistake."
	reasonNoSuchAccount = "There is no account with these details. Check the sort code and account number."
)

type Dependencies struct {
	PIN        PINVerifier
	Accounts   AccountDirectory
	KYC        KYCDirectory
	Payees     PayeeStore
	Ledger     Ledger
	Schedules  ScheduleStore
	Audit      AuditRecorder
	Compliance ComplianceRecorder
	Outcomes   OutcomeStore
	Blocks     BlockHistory
	Cache      CacheInvalidator
	Settlement SettlementQueue

	Checksum   ChecksumValidator
	CoP        PayeeMatcher
	Fraud      FraudScorer
	AML        AMLMonitor
	Limits     LimitEnforcer
	CoolingOff CoolingOffEnforcer
	StepUp     StepUpPolicy
	Challenges ChallengeVerifier
	Rails      RailSelector

	Now func() time.Time
}

type Orchestrator struct {
	deps     Dependencies
	cfg      config.PipelineConfig
	validate *validator.Validate
	now      func() time.Time
}

func New(deps Dependencies, cfg config.PipelineConfig) *Orchestrator {
	v := validator.New()
	models.RegisterValidations(v)

	now := deps.Now
	if now == nil {
		now = time.Now
	}
	return &Orchestrator{deps: deps, cfg: cfg, validate: v, now: now}
}

// Credentials authenticate one instruction. ChallengeID is only needed above
// the step-up threshold.
type Credentials struct {
	PIN         string
	ChallengeID string
}

type TransferRequest struct {
	IntentID      string
	UserID        string
	FromAccountID string
	ToAccountID   string
	Amount        int64
	Reference     string
	Credentials
}

type PaymentRequest struct {
	IntentID      string
	UserID        string
	FromAccountID string
	Destination   models.Destination
	Amount        int64
	Reference     string
	Credentials
}

type ScheduledPaymentRequest struct {
	PaymentRequest
	Frequency models.Frequency
	StartDate time.Time
}

type RecipientPreview struct {
	Checksum modulus.Result `json:"checksum"`
	CoP      *cop.Result    `json:"cop,omitempty"`
	Warning  string         `json:"warning,omitempty"`
}

// AuthorizeTransfer moves money between two accounts held by the same user.
func (o *Orchestrator) AuthorizeTransfer(ctx context.Context, req TransferRequest) (Outcome, error) {
	return o.authorize(ctx, &models.PaymentIntent{
		ID:            req.IntentID,
		UserID:        req.UserID,
		Purpose:       models.PurposeTransfer,
		FromAccountID: req.FromAccountID,
		ToAccountID:   req.ToAccountID,
		Amount:        req.Amount,
		Reference:     req.Reference,
		PIN:           req.PIN,
		ChallengeID:   req.ChallengeID,
		CreatedAt:     o.now(),
	})
}

// AuthorizePaymentToPayee pays a saved payee or new bank details.
func (o *Orchestrator) AuthorizePaymentToPayee(ctx context.Context, req PaymentRequest) (Outcome, error) {
	return o.authorize(ctx, o.paymentIntent(req, models.PurposePayment))
}

// AuthorizeScheduledPayment creates a standing order instead of moving funds.
// It passes the same gates as an immediate payment.
func (o *Orchestrator) AuthorizeScheduledPayment(ctx context.Context, req ScheduledPaymentRequest) (Outcome, error) {
	intent := o.paymentIntent(req.PaymentRequest, models.PurposeStandingOrder)
	intent.Schedule = &models.Schedule{Frequency: req.Frequency, StartDate: req.StartDate}
	return o.authorize(ctx, intent)
}

func (o *Orchestrator) paymentIntent(req PaymentRequest, purpose models.Purpose) *models.PaymentIntent {
	dest := req.Destination
	dest.SortCode = models.NormalizeSortCode(dest.SortCode)
	dest.AccountNumber = strings.TrimSpace(dest.AccountNumber)
	dest.Name = strings.TrimSpace(dest.Name)

	return &models.PaymentIntent{
		ID:            req.IntentID,
		UserID:        req.UserID,
		Purpose:       purpose,
		FromAccountID: req.FromAccountID,
		Destination:   dest,
		Amount:        req.Amount,
		Reference:     req.Reference,
		PIN:           req.PIN,
		ChallengeID:   req.ChallengeID,
		CreatedAt:     o.now(),
	}
}

// PreviewRecipient runs the checksum and name check without side effects.
func (o *Orchestrator) PreviewRecipient(ctx context.Context, name, sortCode, accountNumber string) (RecipientPreview, error) {
	sortCode = models.NormalizeSortCode(sortCode)
	accountNumber = strings.TrimSpace(accountNumber)

	preview := RecipientPreview{Checksum: o.deps.Checksum.Validate(sortCode, accountNumber)}
	if !preview.Checksum.Valid || strings.TrimSpace(name) == "" {
		return preview, nil
	}

	result, err := o.deps.CoP.Match(ctx, name, sortCode, accountNumber)
	if errors.Is(err, cop.ErrNoSuchAccount) {
		preview.Warning = reasonNoSuchAccount
		return preview, nil
	}
	if err != nil {
		return RecipientPreview{}, fail(models.StageCoP, err)
	}
	preview.CoP = &result
	preview.Warning = result.Warning()
	if !result.Proceedable() {
		preview.Warning = reasonNameMismatch
	}
	return preview, nil
}

// PreviewRail quotes the rail an immediate external payment would use.
func (o *Orchestrator) PreviewRail(amount int64) (rails.Selection, error) {
	if amount <= 0 {
		return rails.Selection{}, ErrInvalidAmount
	}
	return o.deps.Rails.Select(amount, false, true), nil
}

// run carries what earlier stages established to later ones.
type run struct {
	intent     *models.PaymentIntent
	from       *models.Account
	to         *models.Account
	creditor   models.Party
	ownAccount bool
	onUs       bool
	payee      *models.Payee
	cop        *cop.Result
	rail       rails.Selection
	warnings   []string
}

type stageFunc func(ctx context.Context, r *run) (Outcome, error)

func (o *Orchestrator) authorize(ctx context.Context, intent *models.PaymentIntent) (Outcome, error) {
	if reason := o.checkIntent(intent); reason != "" {
		log.Printf("[PIPELINE] intent %s rejected: %s", intent.ID, reason)
		return ValidationFailed{Reason: reason, Stage: models.StageValidate}, nil
	}

	r := &run{intent: intent}
	if out, err := o.authenticate(ctx, r); out != nil || err != nil {
		return out, err
	}

	if out, err := o.replay(ctx, r); out != nil || err != nil {
		return out, err
	}

	stages := []stageFunc{
		o.validateAccounts,
		o.enforceLimits,
		o.stepUp,
		o.checksum,
		o.confirmPayee,
		o.selectRail,
		o.resolvePayee,
		o.coolingOff,
		o.scoreFraud,
		o.screenAML,
	}
	for _, stage := range stages {
		out, err := stage(ctx, r)
		if err != nil {
			log.Printf("[PIPELINE] intent %s aborted: %v", intent.ID, err)
			return nil, err
		}
		if out != nil {
			o.conclude(ctx, r, out)
			return out, nil
		}
	}

	return o.mutate(ctx, r)
}

// checkIntent covers everything that can be judged from the request alone.
func (o *Orchestrator) checkIntent(in *models.PaymentIntent) string {
	if err := o.validate.Struct(in); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) && len(verrs) > 0 {
			return fieldReason(verrs[0])
		}
		return "invalid payment details"
	}

	switch in.Purpose {
	case models.PurposeTransfer:
		if in.ToAccountID == "" {
			return "destination account is required"
		}
		if in.ToAccountID == in.FromAccountID {
			return "cannot transfer to the same account"
		}
	default:
		d := in.Destination
		raw := d.Name != "" || d.SortCode != "" || d.AccountNumber != ""
		complete := d.Name != "" && d.SortCode != "" && d.AccountNumber != ""
		if d.IsSavedPayee() == raw || (raw && !complete) {
			return "choose a saved payee or enter the recipient's name, sort code and account number"
		}
	}

	if in.Purpose == models.PurposeStandingOrder {
		if in.Schedule == nil {
			return "a schedule is required"
		}
		today := o.now().Truncate(24 * time.Hour)
		if in.Schedule.StartDate.Before(today) {
			return "start date cannot be in the past"
		}
	}
	return ""
}

func fieldReason(fe validator.FieldError) string {
	switch fe.Field() {
	case "Amount":
		return ErrInvalidAmount.Error()
	case "SortCode":
		return modulus.ReasonInvalidSortCode
	case "AccountNumber":
		return modulus.ReasonInvalidAccountNumber
	case "PIN":
		return "PIN must be 4 to 6 digits"
	case "Reference":
		return "reference must be 18 characters or fewer"
	case "Name":
		return "recipient name is too long"
	case "Frequency":
		return "unsupported payment frequency"
	case "StartDate":
		return "start date is required"
	default:
		return fmt.Sprintf("%s is missing or invalid", strings.ToLower(fe.Field()))
	}
}

func (o *Orchestrator) authenticate(ctx context.Context, r *run) (Outcome, error) {
	ok, err := o.deps.PIN.VerifyPIN(ctx, r.intent.UserID, r.intent.PIN)
	if err != nil {
		return nil, fail(models.StageAuthenticate, err)
	}
	if !ok {
		o.audit(ctx, r, "pin_rejected", models.StageAuthenticate, "rejected", nil)
		return ValidationFailed{Reason: "incorrect PIN", Stage: models.StageAuthenticate}, nil
	}
	return nil, nil
}

// replay returns the outcome of an intent that already reached an
// irreversible conclusion. The memo is only a fast path: a fraud or AML block
// it has lost is rebuilt from the audit trail. A failed lookup abandons the
// attempt rather than letting a blocked intent run again.
func (o *Orchestrator) replay(ctx context.Context, r *run) (Outcome, error) {
	in := r.intent
	out, ok, err := o.deps.Outcomes.Load(ctx, in.UserID, in.ID)
	if err != nil {
		log.Printf("[PIPELINE] outcome lookup failed for intent %s: %v", in.ID, err)
		return nil, fail(models.StageValidate, err)
	}
	if ok {
		log.Printf("[PIPELINE] intent %s replayed: %s", in.ID, out.Status())
		return out, nil
	}

	stage, err := o.deps.Blocks.FindBlock(ctx, in.UserID, in.ID)
	if errors.Is(err, models.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		log.Printf("[PIPELINE] block history lookup failed for intent %s: %v", in.ID, err)
		return nil, fail(models.StageValidate, err)
	}

	switch stage {
	case models.StageFraud:
		out = Blocked{Reason: reasonFraudBlock, Stage: models.StageFraud}
	case models.StageAML:
		out = Blocked{Reason: aml.CustomerMessage, Stage: models.StageAML}
	default:
		return nil, fail(models.StageValidate, fmt.Errorf("unexpected block stage %q", stage))
	}
	log.Printf("[PIPELINE] intent %s replayed from block history: %s", in.ID, out.Status())
	o.remember(ctx, r, out)
	return out, nil
}

func (o *Orchestrator) account(ctx context.Context, id string) (*models.Account, error) {
	acct, err := o.deps.Accounts.GetAccount(ctx, id)
	if errors.Is(err, models.ErrNotFound) {
		return nil, nil
	}
	return acct, err
}

func (o *Orchestrator) validateAccounts(ctx context.Context, r *run) (Outcome, error) {
	in := r.intent
	invalid := func(reason string) (Outcome, error) {
		return ValidationFailed{Reason: reason, Stage: models.StageValidate}, nil
	}

	from, err := o.account(ctx, in.FromAccountID)
	if err != nil {
		return nil, fail(models.StageValidate, err)
	}
	if from == nil || from.OwnerID != in.UserID {
		return invalid("source account not found")
	}
	if !from.IsActive() {
		return invalid("source account is not active")
	}
	if in.Schedule == nil && from.Balance < in.Amount {
		return invalid("insufficient funds")
	}
	r.from = from

	if in.Purpose == models.PurposeTransfer {
		to, err := o.account(ctx, in.ToAccountID)
		if err != nil {
			return nil, fail(models.StageValidate, err)
		}
		if to == nil || to.OwnerID != in.UserID {
			return invalid("destination account not found")
		}
		if !to.IsActive() {
			return invalid("destination account is not active")
		}
		r.to = to
		r.ownAccount = true
		r.onUs = true
		r.creditor = models.Party{Name: to.HolderName, SortCode: to.SortCode, AccountNumber: to.AccountNumber}
		return nil, nil
	}

	if in.Destination.IsSavedPayee() {
		payee, err := o.deps.Payees.Get(ctx, in.UserID, in.Destination.PayeeID)
		if errors.Is(err, models.ErrNotFound) {
			return invalid("payee not found")
		}
		if err != nil {
			return nil, fail(models.StageValidate, err)
		}
		r.payee = payee
		r.creditor = models.Party{Name: payee.Name, SortCode: payee.SortCode, AccountNumber: payee.AccountNumber}
	} else {
		d := in.Destination
		r.creditor = models.Party{Name: d.Name, SortCode: d.SortCode, AccountNumber: d.AccountNumber}
	}

	if r.creditor.SortCode == from.SortCode && r.creditor.AccountNumber == from.AccountNumber {
		return invalid("cannot pay the account you are paying from")
	}
	return nil, nil
}

func (o *Orchestrator) enforceLimits(ctx context.Context, r *run) (Outcome, error) {
	tier, err := o.deps.KYC.Tier(ctx, r.intent.UserID)
	if err != nil {
		return nil, fail(models.StageLimits, err)
	}

	result, err := o.deps.Limits.Check(ctx, r.intent.UserID, r.intent.Amount, tier)
	if err != nil {
		return nil, fail(models.StageLimits, err)
	}
	if !result.Allowed {
		return Blocked{Reason: result.Reason, Stage: models.StageLimits}, nil
	}
	return nil, nil
}

func (o *Orchestrator) stepUp(ctx context.Context, r *run) (Outcome, error) {
	req := o.deps.StepUp.Assess(r.intent.Amount, r.intent.Purpose)
	if !req.Required {
		return nil, nil
	}

	out := RequiresStepUp{Category: req.Category, Threshold: req.Threshold}
	if r.intent.ChallengeID == "" {
		out.Reason = "Additional verification is needed for a payment of this size."
		return out, nil
	}

	verified, err := o.deps.Challenges.IsChallengeVerified(ctx, r.intent.UserID, r.intent.ChallengeID)
	if err != nil {
		return nil, fail(models.StageStepUp, err)
	}
	if !verified {
		out.Reason = "The verification challenge has not been completed or has expired."
		return out, nil
	}
	return nil, nil
}

func (o *Orchestrator) checksum(ctx context.Context, r *run) (Outcome, error) {
	if r.ownAccount {
		return nil, nil
	}

	result := o.deps.Checksum.Validate(r.creditor.SortCode, r.creditor.AccountNumber)
	if !result.Valid {
		return ValidationFailed{Reason: result.Reason, Stage: models.StageChecksum}, nil
	}
	return nil, nil
}

func (o *Orchestrator) confirmPayee(ctx context.Context, r *run) (Outcome, error) {
	if r.ownAccount {
		return nil, nil
	}

	result, err := o.deps.CoP.Match(ctx, r.creditor.Name, r.creditor.SortCode, r.creditor.AccountNumber)
	if errors.Is(err, cop.ErrNoSuchAccount) {
		return ValidationFailed{Reason: reasonNoSuchAccount, Stage: models.StageCoP}, nil
	}
	if err != nil {
		return nil, fail(models.StageCoP, err)
	}
	r.cop = &result

	if !result.Proceedable() {
		return Blocked{Reason: reasonNameMismatch, Stage: models.StageCoP}, nil
	}
	if warning := result.Warning(); warning != "" {
		r.warnings = append(r.warnings, warning)
	}
	return nil, nil
}

func (o *Orchestrator) selectRail(ctx context.Context, r *run) (Outcome, error) {
	urgent := r.intent.Purpose != models.PurposeStandingOrder

	if !r.ownAccount {
		acct, err := o.deps.Accounts.FindByDetails(ctx, r.creditor.SortCode, r.creditor.AccountNumber)
		if err != nil && !errors.Is(err, models.ErrNotFound) {
			return nil, fail(models.StageRail, err)
		}
		if acct != nil && err == nil {
			r.onUs = true
			if acct.OwnerID == r.intent.UserID {
				if !acct.IsActive() {
					return ValidationFailed{Reason: "destination account is not active", Stage: models.StageRail}, nil
				}
				r.to = acct
				r.ownAccount = true
			}
		}
	}

	r.rail = o.deps.Rails.Select(r.intent.Amount, r.ownAccount, urgent)
	return nil, nil
}

// resolvePayee is the only write before the mutation. A concurrent run that
// created the same payee first is not an error.
func (o *Orchestrator) resolvePayee(ctx context.Context, r *run) (Outcome, error) {
	if r.intent.Purpose == models.PurposeTransfer || r.payee != nil {
		return nil, nil
	}

	payee, err := o.deps.Payees.Resolve(ctx, &models.Payee{
		ID:            uuid.New().String(),
		OwnerID:       r.intent.UserID,
		Name:          r.creditor.Name,
		SortCode:      r.creditor.SortCode,
		AccountNumber: r.creditor.AccountNumber,
		Reference:     r.intent.Reference,
		CreatedAt:     o.now(),
	})
	if err != nil {
		return nil, fail(models.StagePayee, err)
	}
	r.payee = payee
	return nil, nil
}

func (o *Orchestrator) coolingOff(ctx context.Context, r *run) (Outcome, error) {
	if r.payee == nil || !r.payee.IsNew() {
		return nil, nil
	}

	at := o.now()
	if s := r.intent.Schedule; s != nil && s.StartDate.After(at) {
		at = s.StartDate
	}

	record := o.deps.CoolingOff.Check(r.payee, r.rail.Rail, at)
	if !record.Allowed {
		return Blocked{Reason: record.Reason, Stage: models.StageCoolingOff}, nil
	}
	return nil, nil
}

func (o *Orchestrator) scoreFraud(ctx context.Context, r *run) (Outcome, error) {
	assessment, err := o.deps.Fraud.Score(ctx, fraud.Input{
		UserID:           r.intent.UserID,
		AccountID:        r.from.ID,
		Amount:           r.intent.Amount,
		CounterpartyName: r.creditor.Name,
		IsNewPayee:       r.payee != nil && r.payee.IsNew(),
		OnUsCounterparty: r.onUs,
		AccountOpenedAt:  r.from.OpenedAt,
	})
	if err != nil {
		return nil, fail(models.StageFraud, err)
	}

	details := models.Metadata{
		"score":    assessment.Score,
		"decision": string(assessment.Decision),
		"rules":    assessment.Rules,
	}
	switch assessment.Decision {
	case fraud.Block:
		if err := o.record(ctx, r, "fraud_block", models.StageFraud, "blocked", details); err != nil {
			return nil, fail(models.StageFraud, err)
		}
		return Blocked{Reason: reasonFraudBlock, Stage: models.StageFraud}, nil
	case fraud.Challenge:
		o.audit(ctx, r, "fraud_challenge", models.StageFraud, "flagged", details)
	}
	return nil, nil
}

// screenAML keeps alert detail in the compliance record; the customer only
// ever sees aml.CustomerMessage.
func (o *Orchestrator) screenAML(ctx context.Context, r *run) (Outcome, error) {
	outcome, err := o.deps.AML.Check(ctx, aml.Input{
		UserID:           r.intent.UserID,
		AccountID:        r.from.ID,
		Amount:           r.intent.Amount,
		CounterpartyName: r.creditor.Name,
		Direction:        aml.Debit,
	})
	if err != nil {
		return nil, fail(models.StageAML, err)
	}

	if len(outcome.Alerts) > 0 {
		if err := o.deps.Compliance.RecordAlerts(ctx, r.intent.ID, r.intent.UserID, outcome.Alerts); err != nil {
			log.Printf("[PIPELINE] compliance record failed for intent %s: %v", r.intent.ID, err)
		}
	}
	if outcome.Passed {
		return nil, nil
	}

	kinds := make([]string, 0, len(outcome.Alerts))
	for _, a := range outcome.Alerts {
		kinds = append(kinds, string(a.Kind))
	}
	if err := o.record(ctx, r, "aml_block", models.StageAML, "blocked", models.Metadata{"alerts": kinds}); err != nil {
		return nil, fail(models.StageAML, err)
	}
	return Blocked{Reason: aml.CustomerMessage, Stage: models.StageAML}, nil
}

func (o *Orchestrator) mutate(ctx context.Context, r *run) (Outcome, error) {
	in := r.intent
	txID := TransactionID(in.UserID, in.ID)
	out := Allowed{
		TransactionID: txID,
		Rail:          r.rail,
		CoP:           r.cop,
		Warnings:      r.warnings,
	}
	if r.payee != nil {
		out.PayeeID = r.payee.ID
	}

	if in.Schedule != nil {
		order := &models.StandingOrder{
			ID:            uuid.New().String(),
			OwnerID:       in.UserID,
			FromAccountID: in.FromAccountID,
			PayeeID:       out.PayeeID,
			Amount:        in.Amount,
			Reference:     in.Reference,
			Frequency:     in.Schedule.Frequency,
			Rail:          string(r.rail.Rail),
			StartDate:     in.Schedule.StartDate,
			NextRunAt:     in.Schedule.StartDate,
			CreatedAt:     o.now(),
		}
		if err := o.deps.Schedules.CreateStandingOrder(ctx, order); err != nil {
			return nil, fail(models.StageMutation, err)
		}
		out.ScheduleID = order.ID
		o.housekeeping(ctx, r, out)
		return out, nil
	}

	to := r.rail.ClearingAccount
	if r.rail.Rail == rails.Internal {
		to = r.to.ID
	}

	err := o.deps.Ledger.Transfer(ctx, models.LedgerTransfer{
		TransactionID:    txID,
		UserID:           in.UserID,
		FromAccountID:    in.FromAccountID,
		ToAccountID:      to,
		Amount:           in.Amount,
		Fee:              r.rail.Fee,
		Rail:             string(r.rail.Rail),
		Reference:        in.Reference,
		CounterpartyName: r.creditor.Name,
	})
	switch {
	case errors.Is(err, models.ErrDuplicateTransaction):
		log.Printf("[PIPELINE] intent %s already applied to the ledger", in.ID)
		return nil, fmt.Errorf("intent %s: %w", in.ID, err)
	case errors.Is(err, models.ErrInsufficientFunds):
		return ValidationFailed{Reason: "insufficient funds to cover the payment and fee", Stage: models.StageMutation}, nil
	case err != nil:
		log.Printf("[PIPELINE] ledger mutation failed for intent %s: %v", in.ID, err)
		return nil, fail(models.StageMutation, err)
	}

	o.housekeeping(ctx, r, out)
	return out, nil
}

// housekeeping runs after a committed mutation. Nothing here can change the
// outcome, so failures are logged and dropped.
func (o *Orchestrator) housekeeping(ctx context.Context, r *run, out Allowed) {
	in := r.intent
	now := o.now()

	if r.payee != nil && r.payee.IsNew() && in.Schedule == nil {
		if _, err := o.deps.Payees.Update(ctx, in.UserID, r.payee.ID, models.PayeeUpdate{FirstUsedAt: &now}); err != nil {
			log.Printf("[PIPELINE] failed to mark payee %s first used: %v", r.payee.ID, err)
		}
	}

	o.audit(ctx, r, "payment_authorized", models.StageMutation, "allowed", models.Metadata{
		"rail":     string(out.Rail.Rail),
		"fee":      out.Rail.Fee,
		"payee_id": out.PayeeID,
		"schedule": out.ScheduleID,
	})

	accounts := []string{in.FromAccountID}
	if r.to != nil && r.rail.Rail == rails.Internal {
		accounts = append(accounts, r.to.ID)
	}
	if err := o.deps.Cache.Invalidate(ctx, in.UserID, accounts...); err != nil {
		log.Printf("[PIPELINE] cache invalidation failed for user %s: %v", in.UserID, err)
	}

	if r.rail.Rail.External() && in.Schedule == nil {
		err := o.deps.Settlement.Enqueue(ctx, models.SettlementInstruction{
			TransactionID: out.TransactionID,
			Rail:          string(r.rail.Rail),
			Amount:        in.Amount,
			Currency:      o.cfg.Currency,
			Debtor: models.Party{
				Name:          r.from.HolderName,
				SortCode:      r.from.SortCode,
				AccountNumber: r.from.AccountNumber,
			},
			Creditor:  r.creditor,
			Reference: in.Reference,
			CreatedAt: now,
		})
		if err != nil {
			log.Printf("[PIPELINE] settlement enqueue failed for %s: %v", in.ID, err)
		}
	}

	o.remember(ctx, r, out)
	log.Printf("[PIPELINE] intent %s allowed on %s", in.ID, out.Rail.Rail)
}

// conclude records a terminal outcome reached before the mutation.
func (o *Orchestrator) conclude(ctx context.Context, r *run, out Outcome) {
	log.Printf("[PIPELINE] intent %s stopped: %s", r.intent.ID, out.Status())

	blocked, ok := out.(Blocked)
	if !ok {
		return
	}
	switch blocked.Stage {
	case models.StageFraud, models.StageAML:
		o.remember(ctx, r, out)
	default:
		o.audit(ctx, r, "payment_blocked", blocked.Stage, "blocked", models.Metadata{"reason": blocked.Reason})
	}
}

func (o *Orchestrator) remember(ctx context.Context, r *run, out Outcome) {
	if err := o.deps.Outcomes.Save(ctx, r.intent.UserID, r.intent.ID, out); err != nil {
		log.Printf("[PIPELINE] failed to remember outcome of intent %s: %v", r.intent.ID, err)
	}
}

func (o *Orchestrator) audit(ctx context.Context, r *run, eventType string, stage models.Stage, status string, details models.Metadata) {
	if err := o.record(ctx, r, eventType, stage, status, details); err != nil {
		log.Printf("[PIPELINE] audit write failed for intent %s: %v", r.intent.ID, err)
	}
}

// record writes an audit event and reports failure. Fraud and AML blocks go
// through here directly: the event is what makes the block final.
func (o *Orchestrator) record(ctx context.Context, r *run, eventType string, stage models.Stage, status string, details models.Metadata) error {
	event := models.AuditEvent{
		ID:        uuid.New().String(),
		Timestamp: o.now(),
		EventType: eventType,
		IntentID:  r.intent.ID,
		UserID:    r.intent.UserID,
		AccountID: r.intent.FromAccountID,
		Amount:    r.intent.Amount,
		Stage:     string(stage),
		Status:    status,
		Details:   details,
	}
	return o.deps.Audit.Record(ctx, event)
}

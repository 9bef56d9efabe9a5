package pipeline

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/ruralpay/payauth/internal/aml"
	"github.com/ruralpay/payauth/internal/cop"
	"github.com/ruralpay/payauth/internal/models"
	"github.com/ruralpay/payauth/internal/rails"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newPayment(intentID string, dest models.Destination, amount int64) PaymentRequest {
	return PaymentRequest{
		IntentID:      intentID,
		UserID:        userID,
		FromAccountID: "acc-main",
		Destination:   dest,
		Amount:        amount,
		Reference:     "rent",
		Credentials:   Credentials{PIN: pin},
	}
}

func TestAuthorizeTransfer(t *testing.T) {
	ctx := context.Background()

	t.Run("own accounts move exactly the amount", func(t *testing.T) {
		h := newHarness(t)

		out, err := h.orch.AuthorizeTransfer(ctx, TransferRequest{
			IntentID:      "intent-1",
			UserID:        userID,
			FromAccountID: "acc-main",
			ToAccountID:   "acc-savings",
			Amount:        5000,
			Credentials:   Credentials{PIN: pin},
		})

		require.NoError(t, err)
		allowed, ok := out.(Allowed)
		require.True(t, ok, "expected Allowed, got %#v", out)
		assert.Equal(t, TransactionID(userID, "intent-1"), allowed.TransactionID)
		assert.Equal(t, allowed.TransactionID, h.bank.transfers[0].TransactionID)
		assert.Equal(t, rails.Internal, allowed.Rail.Rail)
		assert.Nil(t, allowed.CoP)

		balances := h.bank.balances()
		assert.Equal(t, int64(4_995_000), balances["acc-main"])
		assert.Equal(t, int64(105_000), balances["acc-savings"])
		assert.Equal(t, 0, h.payees.count())
		assert.Empty(t, h.rec.settlements)
		assert.Equal(t, [][]string{{"acc-main", "acc-savings"}}, h.rec.invalidated)
		assert.Contains(t, h.rec.eventTypes(), "payment_authorized")
	})

	t.Run("another customer's account is not a transfer destination", func(t *testing.T) {
		h := newHarness(t)

		out, err := h.orch.AuthorizeTransfer(ctx, TransferRequest{
			IntentID: "intent-2", UserID: userID, FromAccountID: "acc-main", ToAccountID: "acc-other",
			Amount: 5000, Credentials: Credentials{PIN: pin},
		})

		require.NoError(t, err)
		assert.Equal(t, ValidationFailed{Reason: "destination account not found", Stage: models.StageValidate}, out)
	})

	t.Run("same account", func(t *testing.T) {
		h := newHarness(t)

		out, err := h.orch.AuthorizeTransfer(ctx, TransferRequest{
			IntentID: "intent-3", UserID: userID, FromAccountID: "acc-main", ToAccountID: "acc-main",
			Amount: 5000, Credentials: Credentials{PIN: pin},
		})

		require.NoError(t, err)
		assert.Equal(t, StatusValidationFailed, out.Status())
	})

	t.Run("wrong PIN is audited and stops the run", func(t *testing.T) {
		h := newHarness(t)
		before := h.bank.balances()

		out, err := h.orch.AuthorizeTransfer(ctx, TransferRequest{
			IntentID: "intent-4", UserID: userID, FromAccountID: "acc-main", ToAccountID: "acc-savings",
			Amount: 5000, Credentials: Credentials{PIN: "9999"},
		})

		require.NoError(t, err)
		assert.Equal(t, ValidationFailed{Reason: "incorrect PIN", Stage: models.StageAuthenticate}, out)
		assert.Equal(t, []string{"pin_rejected"}, h.rec.eventTypes())
		assert.Equal(t, before, h.bank.balances())
	})

	t.Run("tier limit blocks", func(t *testing.T) {
		h := newHarness(t)
		h.auth.tier = models.TierUnverified
		before := h.bank.balances()

		out, err := h.orch.AuthorizeTransfer(ctx, TransferRequest{
			IntentID: "intent-5", UserID: userID, FromAccountID: "acc-main", ToAccountID: "acc-savings",
			Amount: 150_000, Credentials: Credentials{PIN: pin},
		})

		require.NoError(t, err)
		blocked, ok := out.(Blocked)
		require.True(t, ok)
		assert.Equal(t, models.StageLimits, blocked.Stage)
		assert.Equal(t, before, h.bank.balances())
		assert.Equal(t, []string{"payment_blocked"}, h.rec.eventTypes())
	})

	t.Run("ledger failure is an infrastructure error", func(t *testing.T) {
		h := newHarness(t)
		h.bank.err = errors.New("connection reset by peer")

		out, err := h.orch.AuthorizeTransfer(ctx, TransferRequest{
			IntentID: "intent-6", UserID: userID, FromAccountID: "acc-main", ToAccountID: "acc-savings",
			Amount: 5000, Credentials: Credentials{PIN: pin},
		})

		assert.Nil(t, out)
		assert.ErrorIs(t, err, ErrInfrastructure)
		var stageErr *StageError
		require.ErrorAs(t, err, &stageErr)
		assert.Equal(t, models.StageMutation, stageErr.Stage)
		assert.Empty(t, h.rec.outcomes)
	})

	t.Run("replayed intent returns the remembered outcome", func(t *testing.T) {
		h := newHarness(t)
		req := TransferRequest{
			IntentID: "intent-7", UserID: userID, FromAccountID: "acc-main", ToAccountID: "acc-savings",
			Amount: 5000, Credentials: Credentials{PIN: pin},
		}

		first, err := h.orch.AuthorizeTransfer(ctx, req)
		require.NoError(t, err)
		second, err := h.orch.AuthorizeTransfer(ctx, req)
		require.NoError(t, err)

		assert.Equal(t, first, second)
		assert.Len(t, h.bank.transfers, 1)
		assert.Equal(t, int64(4_995_000), h.bank.balances()["acc-main"])
	})

	t.Run("intent ids are scoped to the user", func(t *testing.T) {
		h := newHarness(t)
		h.auth.pins["user-2"] = pin
		h.bank.accounts["acc-other"].Balance = 20_000
		h.bank.accounts["acc-other-savings"] = &models.Account{
			ID: "acc-other-savings", OwnerID: "user-2", SortCode: "040004", AccountNumber: "77778888",
			HolderName: "Bob Other", Status: models.AccountStatusActive, OpenedAt: h.now.AddDate(-1, 0, 0),
		}

		first, err := h.orch.AuthorizeTransfer(ctx, TransferRequest{
			IntentID: "shared-key", UserID: userID, FromAccountID: "acc-main", ToAccountID: "acc-savings",
			Amount: 5000, Credentials: Credentials{PIN: pin},
		})
		require.NoError(t, err)
		second, err := h.orch.AuthorizeTransfer(ctx, TransferRequest{
			IntentID: "shared-key", UserID: "user-2", FromAccountID: "acc-other", ToAccountID: "acc-other-savings",
			Amount: 5000, Credentials: Credentials{PIN: pin},
		})
		require.NoError(t, err)

		require.Equal(t, StatusAllowed, first.Status())
		require.Equal(t, StatusAllowed, second.Status())
		assert.NotEqual(t, first.(Allowed).TransactionID, second.(Allowed).TransactionID)
		assert.Len(t, h.bank.transfers, 2)
		assert.Equal(t, int64(15_000), h.bank.balances()["acc-other"])
	})

	t.Run("ledger rejects a second application of the same intent", func(t *testing.T) {
		h := newHarness(t)
		req := TransferRequest{
			IntentID: "intent-8", UserID: userID, FromAccountID: "acc-main", ToAccountID: "acc-savings",
			Amount: 5000, Credentials: Credentials{PIN: pin},
		}

		_, err := h.orch.AuthorizeTransfer(ctx, req)
		require.NoError(t, err)
		h.rec.outcomes = map[string]Outcome{}

		out, err := h.orch.AuthorizeTransfer(ctx, req)
		assert.Nil(t, out)
		assert.ErrorIs(t, err, models.ErrDuplicateTransaction)
		assert.NotErrorIs(t, err, ErrInfrastructure)
		assert.Len(t, h.bank.transfers, 1)
	})
}

func TestBlockDurability(t *testing.T) {
	ctx := context.Background()

	// setup leaves a harness in which a large first payment to a day-old payee
	// at 2am is blocked by fraud scoring.
	setup := func(t *testing.T) *harness {
		h := newHarness(t)
		h.now = time.Date(2026, 3, 3, 2, 0, 0, 0, time.UTC)
		h.savePayee(models.Payee{ID: "p-new", OwnerID: userID, Name: "Jane Doe", SortCode: barclaysSortCode, AccountNumber: barclaysAccount, CreatedAt: h.now.Add(-24 * time.Hour)})
		h.holders[barclaysSortCode+barclaysAccount] = "Jane Doe"
		h.history.recent = []models.PaymentRecord{{Amount: 1000}, {Amount: 2000}, {Amount: 3000}}
		return h
	}
	req := newPayment("intent-40", models.Destination{PayeeID: "p-new"}, 600_000)
	fraudBlock := Blocked{Reason: reasonFraudBlock, Stage: models.StageFraud}

	t.Run("block outlives the outcome memo", func(t *testing.T) {
		h := setup(t)

		out, err := h.orch.AuthorizePaymentToPayee(ctx, req)
		require.NoError(t, err)
		require.Equal(t, fraudBlock, out)

		h.rec.forget()
		h.history.recent = nil
		again, err := h.orch.AuthorizePaymentToPayee(ctx, req)

		require.NoError(t, err)
		assert.Equal(t, fraudBlock, again)
		assert.Equal(t, 1, h.fraud.calls)
		assert.Empty(t, h.bank.transfers)
		assert.Contains(t, h.rec.outcomes, userID+"/intent-40")
	})

	t.Run("memo write failure does not reopen the intent", func(t *testing.T) {
		h := setup(t)
		h.rewire(func(d *Dependencies) { d.Outcomes = brokenOutcomes{saveErr: errors.New("redis: connection refused")} })

		out, err := h.orch.AuthorizePaymentToPayee(ctx, req)
		require.NoError(t, err)
		require.Equal(t, fraudBlock, out)

		h.history.recent = nil
		again, err := h.orch.AuthorizePaymentToPayee(ctx, req)

		require.NoError(t, err)
		assert.Equal(t, fraudBlock, again)
		assert.Equal(t, 1, h.fraud.calls)
		assert.Empty(t, h.bank.transfers)
	})

	t.Run("memo read failure abandons the attempt", func(t *testing.T) {
		h := setup(t)
		h.history.recent = nil
		h.rewire(func(d *Dependencies) { d.Outcomes = brokenOutcomes{loadErr: errors.New("redis: i/o timeout")} })
		before := h.bank.balances()

		out, err := h.orch.AuthorizePaymentToPayee(ctx, req)

		assert.Nil(t, out)
		assert.ErrorIs(t, err, ErrInfrastructure)
		assert.Equal(t, 0, h.fraud.calls)
		assert.Empty(t, h.bank.transfers)
		assert.Equal(t, before, h.bank.balances())
	})

	t.Run("unrecorded block is an infrastructure error", func(t *testing.T) {
		h := setup(t)
		h.rec.auditErr = errors.New("audit sink unavailable")

		out, err := h.orch.AuthorizePaymentToPayee(ctx, req)

		assert.Nil(t, out)
		assert.ErrorIs(t, err, ErrInfrastructure)
		var stageErr *StageError
		require.ErrorAs(t, err, &stageErr)
		assert.Equal(t, models.StageFraud, stageErr.Stage)
		assert.Empty(t, h.rec.outcomes)
		assert.Empty(t, h.bank.transfers)
	})
}

func TestAuthorizePaymentToPayee(t *testing.T) {
	ctx := context.Background()
	newDetails := func(name string) models.Destination {
		return models.Destination{Name: name, SortCode: "20-29-59", AccountNumber: barclaysAccount}
	}

	t.Run("large new payee payment asks for step-up without side effects", func(t *testing.T) {
		h := newHarness(t)
		h.holders[barclaysSortCode+barclaysAccount] = "Jane Doe"
		before := h.bank.balances()

		out, err := h.orch.AuthorizePaymentToPayee(ctx, newPayment("intent-10", newDetails("Jane Doe"), 1_500_000))

		require.NoError(t, err)
		stepUp, ok := out.(RequiresStepUp)
		require.True(t, ok, "expected RequiresStepUp, got %#v", out)
		assert.Equal(t, "large_payment", stepUp.Category)
		assert.Equal(t, int64(1_000_000), stepUp.Threshold)
		assert.Equal(t, 0, h.payees.count())
		assert.Empty(t, h.rec.eventTypes())
		assert.Equal(t, 0, h.fraud.calls)
		assert.Equal(t, before, h.bank.balances())
	})

	t.Run("unverified challenge still requires step-up", func(t *testing.T) {
		h := newHarness(t)
		req := newPayment("intent-11", newDetails("Jane Doe"), 1_500_000)
		req.ChallengeID = "challenge-pending"

		out, err := h.orch.AuthorizePaymentToPayee(ctx, req)

		require.NoError(t, err)
		stepUp, ok := out.(RequiresStepUp)
		require.True(t, ok)
		assert.Contains(t, stepUp.Reason, "expired")
	})

	t.Run("verified challenge resumes from the top", func(t *testing.T) {
		h := newHarness(t)
		used := h.now.Add(-48 * time.Hour)
		h.savePayee(models.Payee{ID: "p-jane", OwnerID: userID, Name: "Jane Doe", SortCode: barclaysSortCode, AccountNumber: barclaysAccount, FirstUsedAt: &used, CreatedAt: used})
		h.holders[barclaysSortCode+barclaysAccount] = "Jane Doe"
		req := newPayment("intent-12", models.Destination{PayeeID: "p-jane"}, 1_500_000)

		out, err := h.orch.AuthorizePaymentToPayee(ctx, req)
		require.NoError(t, err)
		require.Equal(t, StatusRequiresStepUp, out.Status())

		h.auth.verified["challenge-1"] = true
		req.ChallengeID = "challenge-1"
		out, err = h.orch.AuthorizePaymentToPayee(ctx, req)

		require.NoError(t, err)
		allowed, ok := out.(Allowed)
		require.True(t, ok, "expected Allowed, got %#v", out)
		assert.Equal(t, rails.FasterPayments, allowed.Rail.Rail)
		assert.Equal(t, int64(1_500_000), h.bank.balances()["clearing-fps"])
	})

	t.Run("close match proceeds with a warning", func(t *testing.T) {
		h := newHarness(t)
		used := h.now.Add(-48 * time.Hour)
		h.savePayee(models.Payee{ID: "p-smith", OwnerID: userID, Name: "J Smith", SortCode: barclaysSortCode, AccountNumber: barclaysAccount, FirstUsedAt: &used, CreatedAt: used})
		h.holders[barclaysSortCode+barclaysAccount] = "John Smith-Caruthers"

		out, err := h.orch.AuthorizePaymentToPayee(ctx, newPayment("intent-13", models.Destination{PayeeID: "p-smith"}, 20_000))

		require.NoError(t, err)
		allowed, ok := out.(Allowed)
		require.True(t, ok, "expected Allowed, got %#v", out)
		require.NotNil(t, allowed.CoP)
		assert.Equal(t, cop.CloseMatch, allowed.CoP.Classification)
		require.Len(t, allowed.Warnings, 1)
		assert.Contains(t, allowed.Warnings[0], "John Smith-Caruthers")
		assert.Equal(t, "p-smith", allowed.PayeeID)

		require.Len(t, h.rec.settlements, 1)
		settlement := h.rec.settlements[0]
		assert.Equal(t, TransactionID(userID, "intent-13"), settlement.TransactionID)
		assert.Equal(t, "Alice Walker", settlement.Debtor.Name)
		assert.Equal(t, barclaysAccount, settlement.Creditor.AccountNumber)
		assert.Equal(t, "GBP", settlement.Currency)
	})

	t.Run("name mismatch blocks before any payee is created", func(t *testing.T) {
		h := newHarness(t)
		h.holders[barclaysSortCode+barclaysAccount] = "Completely Different Person"
		before := h.bank.balances()

		out, err := h.orch.AuthorizePaymentToPayee(ctx, newPayment("intent-14", newDetails("X Y"), 20_000))

		require.NoError(t, err)
		blocked, ok := out.(Blocked)
		require.True(t, ok, "expected Blocked, got %#v", out)
		assert.Equal(t, models.StageCoP, blocked.Stage)
		assert.Contains(t, blocked.Reason, "doesn't match")
		assert.Equal(t, 0, h.payees.count())
		assert.Empty(t, h.bank.transfers)
		assert.Equal(t, before, h.bank.balances())
		assert.Equal(t, 0, h.fraud.calls)
	})

	t.Run("new payee waits out the cooling-off window", func(t *testing.T) {
		h := newHarness(t)
		h.holders[barclaysSortCode+barclaysAccount] = "Jane Doe"
		before := h.bank.balances()
		req := newPayment("intent-15", newDetails("Jane Doe"), 20_000)

		out, err := h.orch.AuthorizePaymentToPayee(ctx, req)

		require.NoError(t, err)
		blocked, ok := out.(Blocked)
		require.True(t, ok, "expected Blocked, got %#v", out)
		assert.Equal(t, models.StageCoolingOff, blocked.Stage)
		assert.Contains(t, blocked.Reason, "4h")
		assert.Equal(t, before, h.bank.balances())
		assert.Equal(t, 1, h.payees.count())

		h.now = h.now.Add(4*time.Hour + time.Minute)
		out, err = h.orch.AuthorizePaymentToPayee(ctx, req)

		require.NoError(t, err)
		allowed, ok := out.(Allowed)
		require.True(t, ok, "expected Allowed, got %#v", out)
		assert.Equal(t, 1, h.payees.count())

		payee, err := h.payees.Get(ctx, userID, allowed.PayeeID)
		require.NoError(t, err)
		require.NotNil(t, payee.FirstUsedAt)
		assert.True(t, payee.FirstUsedAt.Equal(h.now))
	})

	t.Run("fraud block is final for the intent", func(t *testing.T) {
		h := newHarness(t)
		h.now = time.Date(2026, 3, 3, 2, 0, 0, 0, time.UTC)
		created := h.now.Add(-24 * time.Hour)
		h.savePayee(models.Payee{ID: "p-new", OwnerID: userID, Name: "Jane Doe", SortCode: barclaysSortCode, AccountNumber: barclaysAccount, CreatedAt: created})
		h.holders[barclaysSortCode+barclaysAccount] = "Jane Doe"
		h.history.recent = []models.PaymentRecord{{Amount: 1000}, {Amount: 2000}, {Amount: 3000}}
		before := h.bank.balances()
		req := newPayment("intent-16", models.Destination{PayeeID: "p-new"}, 600_000)

		out, err := h.orch.AuthorizePaymentToPayee(ctx, req)

		require.NoError(t, err)
		blocked, ok := out.(Blocked)
		require.True(t, ok, "expected Blocked, got %#v", out)
		assert.Equal(t, models.StageFraud, blocked.Stage)
		assert.Equal(t, before, h.bank.balances())

		require.Len(t, h.rec.events, 1)
		event := h.rec.events[0]
		assert.Equal(t, "fraud_block", event.EventType)
		assert.Equal(t, 100, event.Details["score"])
		assert.Contains(t, event.Details["rules"], "large-amount-new-payee")

		h.history.recent = nil
		again, err := h.orch.AuthorizePaymentToPayee(ctx, req)
		require.NoError(t, err)
		assert.Equal(t, blocked, again)
		assert.Equal(t, 1, h.fraud.calls)
		assert.Empty(t, h.bank.transfers)
	})

	t.Run("AML block hides the alert detail", func(t *testing.T) {
		h := newHarness(t)
		used := h.now.Add(-48 * time.Hour)
		h.savePayee(models.Payee{ID: "p-vk", OwnerID: userID, Name: "Viktor Kestrel", SortCode: "089999", AccountNumber: "66374958", FirstUsedAt: &used, CreatedAt: used})
		before := h.bank.balances()

		out, err := h.orch.AuthorizePaymentToPayee(ctx, newPayment("intent-17", models.Destination{PayeeID: "p-vk"}, 10_000))

		require.NoError(t, err)
		assert.Equal(t, Blocked{Reason: aml.CustomerMessage, Stage: models.StageAML}, out)
		require.Len(t, h.rec.alerts, 1)
		assert.Equal(t, aml.AlertSanctionsMatch, h.rec.alerts[0].Kind)
		assert.Equal(t, before, h.bank.balances())
		assert.Contains(t, h.rec.eventTypes(), "aml_block")
		assert.Contains(t, h.rec.outcomes, userID+"/intent-17")
	})

	t.Run("concurrent runs share one new payee", func(t *testing.T) {
		h := newHarness(t)
		h.holders[barclaysSortCode+barclaysAccount] = "Jane Doe"

		var wg sync.WaitGroup
		errs := make([]error, 2)
		outs := make([]Outcome, 2)
		for i := range 2 {
			wg.Add(1)
			go func(i int) {
				defer wg.Done()
				intentID := []string{"intent-a", "intent-b"}[i]
				outs[i], errs[i] = h.orch.AuthorizePaymentToPayee(ctx, newPayment(intentID, newDetails("Jane Doe"), 20_000))
			}(i)
		}
		wg.Wait()

		for i := range 2 {
			require.NoError(t, errs[i])
			assert.Equal(t, StatusBlocked, outs[i].Status())
		}
		assert.Equal(t, 1, h.payees.count())
	})

	t.Run("missing account at our own sort code", func(t *testing.T) {
		h := newHarness(t)
		h.rewire(func(d *Dependencies) {
			d.CoP = cop.NewMatcher(cop.NewCompositeDirectory(h.holders, h.holders, []string{"0400"}))
		})
		before := h.bank.balances()

		out, err := h.orch.AuthorizePaymentToPayee(ctx, newPayment("intent-41",
			models.Destination{Name: "Jane Doe", SortCode: "04-00-04", AccountNumber: "99999999"}, 20_000))

		require.NoError(t, err)
		assert.Equal(t, ValidationFailed{Reason: reasonNoSuchAccount, Stage: models.StageCoP}, out)
		assert.Equal(t, 0, h.payees.count())
		assert.Equal(t, before, h.bank.balances())
	})

	t.Run("unknown payee", func(t *testing.T) {
		h := newHarness(t)

		out, err := h.orch.AuthorizePaymentToPayee(ctx, newPayment("intent-18", models.Destination{PayeeID: "missing"}, 20_000))

		require.NoError(t, err)
		assert.Equal(t, ValidationFailed{Reason: "payee not found", Stage: models.StageValidate}, out)
	})

	t.Run("failing checksum", func(t *testing.T) {
		h := newHarness(t)
		dest := models.Destination{Name: "Jane Doe", SortCode: barclaysSortCode, AccountNumber: "63748401"}

		out, err := h.orch.AuthorizePaymentToPayee(ctx, newPayment("intent-19", dest, 20_000))

		require.NoError(t, err)
		assert.Equal(t, ValidationFailed{Reason: "failed modulus check for this sort code", Stage: models.StageChecksum}, out)
		assert.Equal(t, 0, h.payees.count())
	})

	t.Run("on-us payee to another customer settles externally", func(t *testing.T) {
		h := newHarness(t)
		used := h.now.Add(-48 * time.Hour)
		h.savePayee(models.Payee{ID: "p-bob", OwnerID: userID, Name: "Bob Other", SortCode: "040004", AccountNumber: "55556666", FirstUsedAt: &used, CreatedAt: used})
		h.holders["04000455556666"] = "Bob Other"

		out, err := h.orch.AuthorizePaymentToPayee(ctx, newPayment("intent-20", models.Destination{PayeeID: "p-bob"}, 20_000))

		require.NoError(t, err)
		allowed, ok := out.(Allowed)
		require.True(t, ok, "expected Allowed, got %#v", out)
		assert.Equal(t, rails.FasterPayments, allowed.Rail.Rail)
		assert.Equal(t, int64(20_000), h.bank.balances()["clearing-fps"])
		assert.Len(t, h.rec.settlements, 1)
	})
}

func TestAuthorizeScheduledPayment(t *testing.T) {
	ctx := context.Background()

	t.Run("creates a standing order instead of moving funds", func(t *testing.T) {
		h := newHarness(t)
		h.holders[barclaysSortCode+barclaysAccount] = "Jane Doe"
		before := h.bank.balances()
		start := h.now.Add(48 * time.Hour)

		out, err := h.orch.AuthorizeScheduledPayment(ctx, ScheduledPaymentRequest{
			PaymentRequest: newPayment("intent-30", models.Destination{Name: "Jane Doe", SortCode: barclaysSortCode, AccountNumber: barclaysAccount}, 20_000),
			Frequency:      models.FrequencyMonthly,
			StartDate:      start,
		})

		require.NoError(t, err)
		allowed, ok := out.(Allowed)
		require.True(t, ok, "expected Allowed, got %#v", out)
		assert.Equal(t, rails.BACS, allowed.Rail.Rail)
		assert.NotEmpty(t, allowed.ScheduleID)

		require.Len(t, h.rec.orders, 1)
		order := h.rec.orders[0]
		assert.Equal(t, allowed.ScheduleID, order.ID)
		assert.Equal(t, allowed.PayeeID, order.PayeeID)
		assert.True(t, order.NextRunAt.Equal(start))

		assert.Equal(t, before, h.bank.balances())
		assert.Empty(t, h.rec.settlements)

		payee, err := h.payees.Get(ctx, userID, allowed.PayeeID)
		require.NoError(t, err)
		assert.Nil(t, payee.FirstUsedAt)
	})

	t.Run("start date in the past", func(t *testing.T) {
		h := newHarness(t)

		out, err := h.orch.AuthorizeScheduledPayment(ctx, ScheduledPaymentRequest{
			PaymentRequest: newPayment("intent-31", models.Destination{Name: "Jane Doe", SortCode: barclaysSortCode, AccountNumber: barclaysAccount}, 20_000),
			Frequency:      models.FrequencyWeekly,
			StartDate:      h.now.AddDate(0, 0, -3),
		})

		require.NoError(t, err)
		assert.Equal(t, ValidationFailed{Reason: "start date cannot be in the past", Stage: models.StageValidate}, out)
	})

	t.Run("scheduled payments need a PIN too", func(t *testing.T) {
		h := newHarness(t)
		req := newPayment("intent-32", models.Destination{Name: "Jane Doe", SortCode: barclaysSortCode, AccountNumber: barclaysAccount}, 20_000)
		req.PIN = "0000"

		out, err := h.orch.AuthorizeScheduledPayment(ctx, ScheduledPaymentRequest{
			PaymentRequest: req,
			Frequency:      models.FrequencyWeekly,
			StartDate:      h.now.Add(24 * time.Hour),
		})

		require.NoError(t, err)
		assert.Equal(t, StatusValidationFailed, out.Status())
		assert.Empty(t, h.rec.orders)
	})
}

func TestIntentNormalization(t *testing.T) {
	h := newHarness(t)
	req := newPayment("intent-42", models.Destination{Name: "  Jane Doe ", SortCode: "20-29-59", AccountNumber: " 63748738"}, 20_000)

	intent := h.orch.paymentIntent(req, models.PurposePayment)
	assert.Equal(t, models.Destination{Name: "Jane Doe", SortCode: barclaysSortCode, AccountNumber: barclaysAccount}, intent.Destination)
	assert.Equal(t, "20-29-59", req.Destination.SortCode)

	raw := *intent
	raw.Destination = req.Destination
	checked := raw
	h.orch.checkIntent(&checked)
	assert.Equal(t, raw, checked)
}

func TestPreviews(t *testing.T) {
	ctx := context.Background()

	t.Run("recipient close match", func(t *testing.T) {
		h := newHarness(t)
		h.holders[barclaysSortCode+barclaysAccount] = "John Smith-Caruthers"

		preview, err := h.orch.PreviewRecipient(ctx, "J Smith", "20-29-59", barclaysAccount)

		require.NoError(t, err)
		assert.True(t, preview.Checksum.Valid)
		require.NotNil(t, preview.CoP)
		assert.Equal(t, cop.CloseMatch, preview.CoP.Classification)
		assert.NotEmpty(t, preview.Warning)
		assert.Equal(t, 0, h.payees.count())
	})

	t.Run("recipient with bad checksum skips the name check", func(t *testing.T) {
		h := newHarness(t)

		preview, err := h.orch.PreviewRecipient(ctx, "Jane Doe", barclaysSortCode, "63748401")

		require.NoError(t, err)
		assert.False(t, preview.Checksum.Valid)
		assert.Nil(t, preview.CoP)
	})

	t.Run("recipient at our own sort code that does not exist", func(t *testing.T) {
		h := newHarness(t)
		h.rewire(func(d *Dependencies) {
			d.CoP = cop.NewMatcher(cop.NewCompositeDirectory(h.holders, h.holders, []string{"0400"}))
		})

		preview, err := h.orch.PreviewRecipient(ctx, "Jane Doe", "040004", "99999999")

		require.NoError(t, err)
		assert.True(t, preview.Checksum.Valid)
		assert.Nil(t, preview.CoP)
		assert.Equal(t, reasonNoSuchAccount, preview.Warning)
	})

	t.Run("rail", func(t *testing.T) {
		h := newHarness(t)

		selection, err := h.orch.PreviewRail(20_000)
		require.NoError(t, err)
		assert.Equal(t, rails.FasterPayments, selection.Rail)

		selection, err = h.orch.PreviewRail(200_000_000)
		require.NoError(t, err)
		assert.Equal(t, rails.CHAPS, selection.Rail)

		_, err = h.orch.PreviewRail(0)
		assert.ErrorIs(t, err, ErrInvalidAmount)
	})
}

func TestOutcomeEncoding(t *testing.T) {
	blocked := Blocked{Reason: "limit", Stage: models.StageLimits}

	data, err := MarshalOutcome(blocked)
	require.NoError(t, err)
	assert.JSONEq(t, `{"status":"blocked","outcome":{"reason":"limit","stage":"limits"}}`, string(data))

	decoded, err := UnmarshalOutcome(data)
	require.NoError(t, err)
	assert.Equal(t, blocked, decoded)

	_, err = UnmarshalOutcome([]byte(`{"status":"maybe","outcome":{}}`))
	assert.Error(t, err)
}

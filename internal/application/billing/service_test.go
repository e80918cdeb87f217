package billing

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"copro-backend/internal/application/emails"
	"copro-backend/internal/domain"
	"copro-backend/internal/testutil"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

type recordingNotifier struct {
	mu      sync.Mutex
	notices []emails.CallNotice
}

func (n *recordingNotifier) SendCallNotice(ctx context.Context, notice emails.CallNotice) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.notices = append(n.notices, notice)
	return nil
}

func fixedNow(t time.Time) func() time.Time {
	return func() time.Time { return t }
}

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func setupBilling(t *testing.T) (*Service, *gorm.DB, domain.Building) {
	db := testutil.NewDB(t)
	b := testutil.Building(t, db, "Les Tilleuls")
	s := &Service{DB: db, DueDays: 30, Now: fixedNow(date(2025, 1, 15))}
	return s, db, b
}

func TestGenerate_QuarterlySingleOwner(t *testing.T) {
	s, db, b := setupBilling(t)
	o := testutil.Owner(t, db, b, "Martin", 1000)
	c := testutil.Charge(t, db, b, domain.ChargesGenerales, "1200", domain.Trimestriel, domain.KeyMilliemes)

	res, err := s.GenerateBillingCalls(context.Background(), c.ID, date(2025, 1, 1), date(2025, 12, 31))
	require.NoError(t, err)
	assert.Equal(t, 4, res.Created)
	assert.Equal(t, 0, res.Skipped)
	require.Len(t, res.Calls, 4)
	for _, call := range res.Calls {
		assert.Equal(t, o.ID, call.OwnerID)
		assert.True(t, dec("300").Equal(call.MontantAppele), call.MontantAppele.String())
		assert.Equal(t, domain.EnAttente, call.PaymentState)
	}
	assert.Equal(t, "2025-01-01", domain.DateKey(res.Calls[0].PeriodeDebut))
	assert.Equal(t, "2025-03-31", domain.DateKey(res.Calls[0].PeriodeFin))
	assert.Equal(t, "2025-01-31", domain.DateKey(res.Calls[0].DateEcheance))
	assert.Equal(t, "2025-10-01", domain.DateKey(res.Calls[3].PeriodeDebut))
}

func TestGenerate_SplitsByMilliemes(t *testing.T) {
	s, db, b := setupBilling(t)
	a := testutil.Owner(t, db, b, "A", 600)
	bo := testutil.Owner(t, db, b, "B", 400)
	c := testutil.Charge(t, db, b, domain.ChargesGenerales, "1200", domain.Trimestriel, domain.KeyMilliemes)

	res, err := s.GenerateBillingCalls(context.Background(), c.ID, date(2025, 1, 1), date(2025, 12, 31))
	require.NoError(t, err)
	require.Len(t, res.Calls, 8)

	total := decimal.Zero
	for _, call := range res.Calls {
		switch call.OwnerID {
		case a.ID:
			assert.True(t, dec("180").Equal(call.MontantAppele))
		case bo.ID:
			assert.True(t, dec("120").Equal(call.MontantAppele))
		default:
			t.Fatalf("unexpected owner %s", call.OwnerID)
		}
		total = total.Add(call.MontantAppele)
	}
	assert.True(t, dec("1200").Equal(total))
}

func TestGenerate_IsIdempotent(t *testing.T) {
	s, db, b := setupBilling(t)
	testutil.Owner(t, db, b, "Martin", 1000)
	c := testutil.Charge(t, db, b, domain.ChargesGenerales, "1200", domain.Trimestriel, domain.KeyMilliemes)
	ctx := context.Background()

	first, err := s.GenerateBillingCalls(ctx, c.ID, date(2025, 1, 1), date(2025, 12, 31))
	require.NoError(t, err)
	second, err := s.GenerateBillingCalls(ctx, c.ID, date(2025, 1, 1), date(2025, 12, 31))
	require.NoError(t, err)

	assert.Equal(t, 0, second.Created)
	assert.Equal(t, 4, second.Skipped)
	require.Len(t, second.Calls, 4)
	for i := range first.Calls {
		assert.Equal(t, first.Calls[i].ID, second.Calls[i].ID)
	}

	var count int64
	require.NoError(t, db.Model(&domain.BillingCall{}).Where("charge_id = ?", c.ID).Count(&count).Error)
	assert.Equal(t, int64(4), count)
}

func TestGenerate_OverlappingWindowOnlyAddsMissing(t *testing.T) {
	s, db, b := setupBilling(t)
	testutil.Owner(t, db, b, "Martin", 1000)
	c := testutil.Charge(t, db, b, domain.ChargesGenerales, "1200", domain.Mensuel, domain.KeyMilliemes)
	ctx := context.Background()

	_, err := s.GenerateBillingCalls(ctx, c.ID, date(2025, 1, 1), date(2025, 6, 30))
	require.NoError(t, err)
	res, err := s.GenerateBillingCalls(ctx, c.ID, date(2025, 1, 1), date(2025, 12, 31))
	require.NoError(t, err)
	assert.Equal(t, 6, res.Created)
	assert.Equal(t, 6, res.Skipped)
	assert.Len(t, res.Calls, 12)
}

func TestGenerate_ProratesOnValidityWindow(t *testing.T) {
	s, db, b := setupBilling(t)
	testutil.Owner(t, db, b, "Martin", 1000)
	c := testutil.Charge(t, db, b, domain.ChargesGenerales, "1200", domain.Trimestriel, domain.KeyMilliemes)
	from := date(2025, 5, 1)
	require.NoError(t, db.Model(&c).Update("date_debut", from).Error)

	res, err := s.GenerateBillingCalls(context.Background(), c.ID, date(2025, 1, 1), date(2025, 9, 30))
	require.NoError(t, err)
	require.Len(t, res.Calls, 2)
	assert.Equal(t, "2025-05-01", domain.DateKey(res.Calls[0].PeriodeDebut))
	// 300 × 61/91
	assert.True(t, dec("201.10").Equal(res.Calls[0].MontantAppele), res.Calls[0].MontantAppele.String())
	assert.True(t, dec("300").Equal(res.Calls[1].MontantAppele))
}

func TestGenerate_ExcludedOwnerGetsNoCall(t *testing.T) {
	s, db, b := setupBilling(t)
	a := testutil.Owner(t, db, b, "A", 500)
	bo := testutil.Owner(t, db, b, "B", 500)
	c := testutil.Charge(t, db, b, domain.ChargesSpeciales, "1200", domain.Annuel, domain.KeyMilliemes)
	require.NoError(t, db.Create(&domain.Exclusion{ChargeID: c.ID, OwnerID: bo.ID}).Error)

	res, err := s.GenerateBillingCalls(context.Background(), c.ID, date(2025, 1, 1), date(2025, 12, 31))
	require.NoError(t, err)
	require.Len(t, res.Calls, 1)
	assert.Equal(t, a.ID, res.Calls[0].OwnerID)
	assert.True(t, dec("1200").Equal(res.Calls[0].MontantAppele))
}

func TestGenerate_Errors(t *testing.T) {
	s, db, b := setupBilling(t)
	c := testutil.Charge(t, db, b, domain.ChargesGenerales, "1200", domain.Annuel, domain.KeyMilliemes)
	ctx := context.Background()

	_, err := s.GenerateBillingCalls(ctx, uuid.New(), date(2025, 1, 1), date(2025, 12, 31))
	assert.ErrorIs(t, err, domain.ErrNotFound)

	_, err = s.GenerateBillingCalls(ctx, c.ID, date(2025, 12, 31), date(2025, 1, 1))
	assert.ErrorIs(t, err, domain.ErrValidation)

	require.NoError(t, db.Model(&c).Update("actif", false).Error)
	_, err = s.GenerateBillingCalls(ctx, c.ID, date(2025, 1, 1), date(2025, 12, 31))
	assert.ErrorIs(t, err, domain.ErrValidation)
}

func TestGenerate_RollsBackWholeBatchOnFailure(t *testing.T) {
	s, db, b := setupBilling(t)
	for i := 0; i < 3; i++ {
		testutil.Owner(t, db, b, fmt.Sprintf("Owner %d", i), 100*(i+1))
	}
	c := testutil.Charge(t, db, b, domain.ChargesGenerales, "1200", domain.Mensuel, domain.KeyMilliemes)
	ctx := context.Background()

	errInsert := errors.New("insert failed")
	const hook = "test:fail_billing_calls"
	// Fails after the rows were written, so only the transaction can undo them.
	err := db.Callback().Create().After("gorm:create").Register(hook, func(tx *gorm.DB) {
		if tx.Statement.Table == "AppelsDeCharges" && tx.Error == nil {
			_ = tx.AddError(errInsert)
		}
	})
	require.NoError(t, err)

	_, err = s.GenerateBillingCalls(ctx, c.ID, date(2025, 1, 1), date(2025, 12, 31))
	assert.ErrorIs(t, err, errInsert)

	var count int64
	require.NoError(t, db.Model(&domain.BillingCall{}).Count(&count).Error)
	assert.Zero(t, count)

	require.NoError(t, db.Callback().Create().Remove(hook))
	res, err := s.GenerateBillingCalls(ctx, c.ID, date(2025, 1, 1), date(2025, 12, 31))
	require.NoError(t, err)
	assert.Equal(t, 36, res.Created)
}

func TestGenerate_TinyAmountOverManyOwnersKeepsTotal(t *testing.T) {
	s, db, b := setupBilling(t)
	for i := 0; i < 200; i++ {
		testutil.Owner(t, db, b, fmt.Sprintf("Owner %03d", i), 5)
	}
	c := testutil.Charge(t, db, b, domain.ChargesGenerales, "12", domain.Mensuel, domain.KeyEgalitaire)

	res, err := s.GenerateBillingCalls(context.Background(), c.ID, date(2025, 1, 1), date(2025, 1, 31))
	require.NoError(t, err)

	total := decimal.Zero
	for _, call := range res.Calls {
		assert.True(t, call.MontantAppele.IsPositive(), call.MontantAppele.String())
		total = total.Add(call.MontantAppele)
	}
	assert.True(t, dec("1").Equal(total), total.String())
	assert.Equal(t, len(res.Calls), res.Created)
}

func TestGenerate_NotifiesOwnersOnce(t *testing.T) {
	s, db, b := setupBilling(t)
	notifier := &recordingNotifier{}
	s.Notifier = notifier
	o := testutil.Owner(t, db, b, "Martin", 600)
	email := "martin@example.com"
	require.NoError(t, db.Model(&o).Update("email", email).Error)
	testutil.Owner(t, db, b, "Sans", 400)
	c := testutil.Charge(t, db, b, domain.ChargesGenerales, "1200", domain.Trimestriel, domain.KeyMilliemes)
	ctx := context.Background()

	_, err := s.GenerateBillingCalls(ctx, c.ID, date(2025, 1, 1), date(2025, 12, 31))
	require.NoError(t, err)
	_, err = s.GenerateBillingCalls(ctx, c.ID, date(2025, 1, 1), date(2025, 12, 31))
	require.NoError(t, err)

	require.Len(t, notifier.notices, 1)
	n := notifier.notices[0]
	assert.Equal(t, email, n.ToEmail)
	assert.Equal(t, "Les Tilleuls", n.BuildingName)
	assert.Len(t, n.Lines, 4)
	assert.True(t, dec("720").Equal(n.Total()))
}

func generateOne(t *testing.T, s *Service, db *gorm.DB, b domain.Building, annual string) domain.BillingCallView {
	testutil.Owner(t, db, b, "Martin", 1000)
	c := testutil.Charge(t, db, b, domain.ChargesGenerales, annual, domain.Annuel, domain.KeyMilliemes)
	res, err := s.GenerateBillingCalls(context.Background(), c.ID, date(2025, 1, 1), date(2025, 12, 31))
	require.NoError(t, err)
	require.Len(t, res.Calls, 1)
	return res.Calls[0]
}

func TestRecordPayment_ProgressesToPaid(t *testing.T) {
	s, db, b := setupBilling(t)
	call := generateOne(t, s, db, b, "100")
	ctx := context.Background()
	ref := "VIR-001"

	view, p, err := s.RecordPayment(ctx, PaymentInput{CallID: call.ID, Amount: dec("40"), Reference: &ref})
	require.NoError(t, err)
	assert.Equal(t, domain.PartiellementPaye, view.PaymentState)
	assert.True(t, dec("40").Equal(view.MontantPaye))
	assert.Equal(t, call.ID, p.BillingCallID)

	view, _, err = s.RecordPayment(ctx, PaymentInput{
		CallID:   call.ID,
		Amount:   dec("60"),
		Metadata: datatypes.JSON(`{"mode":"cheque"}`),
	})
	require.NoError(t, err)
	assert.Equal(t, domain.Paye, view.PaymentState)
	assert.Equal(t, "paye", view.Statut)
	assert.True(t, dec("100").Equal(view.MontantPaye))
	require.NotNil(t, view.ReferencePaiement)
	assert.Equal(t, ref, *view.ReferencePaiement)

	_, _, err = s.RecordPayment(ctx, PaymentInput{CallID: call.ID, Amount: dec("0.01")})
	assert.ErrorIs(t, err, domain.ErrOverpayment)

	payments, err := s.ListPayments(ctx, call.ID)
	require.NoError(t, err)
	require.Len(t, payments, 2)
	assert.True(t, dec("40").Equal(payments[0].Montant))
	assert.True(t, dec("60").Equal(payments[1].Montant))

	stored, err := s.GetCall(ctx, call.ID)
	require.NoError(t, err)
	assert.True(t, dec("100").Equal(stored.MontantPaye))
}

func TestRecordPayment_RejectsExcessWithoutChange(t *testing.T) {
	s, db, b := setupBilling(t)
	call := generateOne(t, s, db, b, "100")
	ctx := context.Background()

	_, _, err := s.RecordPayment(ctx, PaymentInput{CallID: call.ID, Amount: dec("70")})
	require.NoError(t, err)
	_, _, err = s.RecordPayment(ctx, PaymentInput{CallID: call.ID, Amount: dec("30.01")})
	assert.ErrorIs(t, err, domain.ErrOverpayment)

	stored, err := s.GetCall(ctx, call.ID)
	require.NoError(t, err)
	assert.True(t, dec("70").Equal(stored.MontantPaye))
	assert.Equal(t, domain.PartiellementPaye, stored.PaymentState)

	payments, err := s.ListPayments(ctx, call.ID)
	require.NoError(t, err)
	assert.Len(t, payments, 1)
}

func TestRecordPayment_Validation(t *testing.T) {
	s, db, b := setupBilling(t)
	call := generateOne(t, s, db, b, "100")
	ctx := context.Background()

	for _, amount := range []string{"0", "-5", "10.005"} {
		_, _, err := s.RecordPayment(ctx, PaymentInput{CallID: call.ID, Amount: dec(amount)})
		assert.ErrorIs(t, err, domain.ErrValidation, amount)
	}
	_, _, err := s.RecordPayment(ctx, PaymentInput{CallID: uuid.New(), Amount: dec("10")})
	assert.ErrorIs(t, err, domain.ErrNotFound)
	_, err = s.ListPayments(ctx, uuid.New())
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestListCalls_OverdueProjection(t *testing.T) {
	s, db, b := setupBilling(t)
	testutil.Owner(t, db, b, "Martin", 1000)
	c := testutil.Charge(t, db, b, domain.ChargesGenerales, "1200", domain.Trimestriel, domain.KeyMilliemes)
	ctx := context.Background()
	res, err := s.GenerateBillingCalls(ctx, c.ID, date(2025, 1, 1), date(2025, 12, 31))
	require.NoError(t, err)

	// Q1 is due 2025-01-31 and Q2 2025-05-01.
	s.Now = fixedNow(date(2025, 3, 1))
	_, _, err = s.RecordPayment(ctx, PaymentInput{CallID: res.Calls[1].ID, Amount: dec("300")})
	require.NoError(t, err)

	all, err := s.ListCalls(ctx, ListFilter{BuildingID: b.ID})
	require.NoError(t, err)
	require.Len(t, all, 4)
	assert.True(t, all[0].IsOverdue)
	assert.Equal(t, domain.EnRetard, all[0].Statut)
	assert.Equal(t, domain.EnAttente, all[0].PaymentState)
	assert.False(t, all[1].IsOverdue)
	assert.Equal(t, "paye", all[1].Statut)

	overdue, err := s.ListCalls(ctx, ListFilter{BuildingID: b.ID, Statut: domain.EnRetard})
	require.NoError(t, err)
	require.Len(t, overdue, 1)
	assert.Equal(t, res.Calls[0].ID, overdue[0].ID)

	pending, err := s.ListCalls(ctx, ListFilter{BuildingID: b.ID, Statut: "en_attente"})
	require.NoError(t, err)
	assert.Len(t, pending, 2)

	_, err = s.ListCalls(ctx, ListFilter{BuildingID: b.ID, Statut: "annule"})
	assert.ErrorIs(t, err, domain.ErrValidation)
	_, err = s.ListCalls(ctx, ListFilter{BuildingID: uuid.New()})
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestListCalls_FilterByOwner(t *testing.T) {
	s, db, b := setupBilling(t)
	a := testutil.Owner(t, db, b, "A", 600)
	testutil.Owner(t, db, b, "B", 400)
	c := testutil.Charge(t, db, b, domain.ChargesGenerales, "1200", domain.Semestriel, domain.KeyMilliemes)
	ctx := context.Background()
	_, err := s.GenerateBillingCalls(ctx, c.ID, date(2025, 1, 1), date(2025, 12, 31))
	require.NoError(t, err)

	calls, err := s.ListCalls(ctx, ListFilter{BuildingID: b.ID, OwnerID: &a.ID})
	require.NoError(t, err)
	require.Len(t, calls, 2)
	for _, call := range calls {
		assert.Equal(t, a.ID, call.OwnerID)
		assert.True(t, dec("360").Equal(call.MontantAppele))
	}
}

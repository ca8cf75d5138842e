package service

import (
	"context"
	"errors"
	"regexp"
	"sync"
	"testing"
	"time"

	"github.com/saleshop/internal/constants"
	"github.com/saleshop/internal/models"
	"github.com/saleshop/internal/repository"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var orderIDPattern = regexp.MustCompile(`^ORD-\d+-[0-9A-Z]{5}$`)

type recordingSubmitter struct {
	mu      sync.Mutex
	records []models.OrderRecord
	err     error
	started chan struct{}
	release chan struct{}
}

func (s *recordingSubmitter) SubmitOrder(ctx context.Context, record models.OrderRecord) (*SubmitResult, error) {
	if s.started != nil {
		s.started <- struct{}{}
	}
	if s.release != nil {
		<-s.release
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.records = append(s.records, record)
	if s.err != nil {
		return nil, s.err
	}
	return &SubmitResult{OrderID: record.OrderID}, nil
}

func (s *recordingSubmitter) Records() []models.OrderRecord {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]models.OrderRecord(nil), s.records...)
}

type recordingPayments struct {
	calls  int
	amount models.Money
	err    error
}

func (p *recordingPayments) InitiatePayment(ctx context.Context, phone string, amount models.Money) (*PaymentAck, error) {
	p.calls++
	p.amount = amount
	if p.err != nil {
		return nil, p.err
	}
	return &PaymentAck{Message: "Success. Request accepted for processing", Reference: "ws_CO_1"}, nil
}

func validCustomer() models.Customer {
	return models.Customer{FirstName: "Ada", LastName: "Lovelace", Email: "ada@example.com", PhoneNumber: "5551234567"}
}

func validAddress() models.ShippingAddress {
	return models.ShippingAddress{Street: "1 Main St", City: "Springfield", State: "IL", ZipCode: "62701"}
}

func newTestCheckout(t *testing.T, submitter OrderSubmitter, payments PaymentInitiator) (*CheckoutMachine, *CartLedger, *repository.MemoryCartSlot, *Notifier) {
	t.Helper()
	ledger, slot, notifier := newTestLedger(t)
	machine := NewCheckoutMachine(ledger, testPolicy(t), notifier, CheckoutOptions{
		Currency:  "USD",
		Submitter: submitter,
		Payments:  payments,
	})
	return machine, ledger, slot, notifier
}

func fillCart(t *testing.T, ledger *CartLedger) {
	t.Helper()
	ctx := context.Background()
	require.NoError(t, ledger.AddItem(ctx, "1", "Runner", models.NewMoneyFromInt(20), ""))
	require.NoError(t, ledger.AddItem(ctx, "1", "Runner", models.NewMoneyFromInt(20), ""))
	require.NoError(t, ledger.AddItem(ctx, "2", "Cap", models.NewMoneyFromInt(30), ""))
}

func TestCheckoutOpenRequiresItems(t *testing.T) {
	machine, ledger, _, _ := newTestCheckout(t, &recordingSubmitter{}, nil)
	_, err := machine.Open()
	require.ErrorIs(t, err, ErrEmptyCart)
	assert.Equal(t, constants.CheckoutStateClosed, machine.State())

	fillCart(t, ledger)
	view, err := machine.Open()
	require.NoError(t, err)
	assert.Equal(t, constants.CheckoutStateOpen, view.State)
	assert.Len(t, view.Items, 2)
	assert.Equal(t, "75.6", view.Summary.Total.String())

	_, err = machine.Open()
	assert.ErrorIs(t, err, ErrInvalidTransition)
}

func TestCheckoutSubmitConfirmsAndClearsCart(t *testing.T) {
	submitter := &recordingSubmitter{}
	machine, ledger, slot, notifier := newTestCheckout(t, submitter, nil)
	var events []Event
	notifier.Subscribe(func(e Event) { events = append(events, e) })

	fillCart(t, ledger)
	_, err := machine.Open()
	require.NoError(t, err)

	confirmation, err := machine.Submit(context.Background(), validCustomer(), validAddress())
	require.NoError(t, err)
	assert.Regexp(t, orderIDPattern, confirmation.OrderID)
	assert.Equal(t, "(555) 123-4567", confirmation.Record.Customer.PhoneNumber)
	assert.Equal(t, "70", confirmation.Record.Subtotal.String())
	assert.Equal(t, "0", confirmation.Record.Shipping.String())
	assert.Equal(t, "5.6", confirmation.Record.Tax.String())
	assert.Equal(t, "75.6", confirmation.Record.Total.String())
	require.Len(t, confirmation.Record.Items, 2)
	assert.Equal(t, "40", confirmation.Record.Items[0].Total.String())

	assert.True(t, ledger.IsEmpty())
	assert.Empty(t, persistedItems(t, slot))
	assert.Equal(t, constants.CheckoutStateClosed, machine.State())

	var states []string
	confirmed := false
	for _, e := range events {
		if e.Name == constants.EventCheckoutStateChanged {
			states = append(states, e.Data["to"].(string))
		}
		if e.Name == constants.EventOrderConfirmed {
			confirmed = true
			assert.Equal(t, confirmation.OrderID, e.Data["order_id"])
		}
	}
	assert.True(t, confirmed)
	assert.Equal(t, []string{
		constants.CheckoutStateOpen,
		constants.CheckoutStateSubmitting,
		constants.CheckoutStateConfirmed,
		constants.CheckoutStateClosed,
	}, states)
}

func TestCheckoutSubmitWhileSubmittingIsRejected(t *testing.T) {
	submitter := &recordingSubmitter{started: make(chan struct{}), release: make(chan struct{})}
	machine, ledger, _, _ := newTestCheckout(t, submitter, nil)
	fillCart(t, ledger)
	_, err := machine.Open()
	require.NoError(t, err)

	done := make(chan error, 1)
	go func() {
		_, err := machine.Submit(context.Background(), validCustomer(), validAddress())
		done <- err
	}()
	<-submitter.started
	assert.Equal(t, constants.CheckoutStateSubmitting, machine.State())

	_, err = machine.Submit(context.Background(), validCustomer(), validAddress())
	assert.ErrorIs(t, err, ErrAlreadyInProgress)
	_, err = machine.InitiatePayment(context.Background(), "0712345678")
	assert.ErrorIs(t, err, ErrAlreadyInProgress)
	assert.ErrorIs(t, machine.Cancel(), ErrInvalidTransition)
	assert.Equal(t, 3, ledger.TotalQuantity())

	close(submitter.release)
	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("in-flight submission did not finish")
	}
	assert.Len(t, submitter.Records(), 1)
	assert.True(t, ledger.IsEmpty())
}

func TestCheckoutFailureKeepsCartAndAllowsRetry(t *testing.T) {
	submitter := &recordingSubmitter{err: errors.New("backend down")}
	machine, ledger, _, _ := newTestCheckout(t, submitter, nil)
	fillCart(t, ledger)
	_, err := machine.Open()
	require.NoError(t, err)

	_, err = machine.Submit(context.Background(), validCustomer(), validAddress())
	require.ErrorIs(t, err, ErrSubmission)
	assert.Equal(t, constants.CheckoutStateFailed, machine.State())
	assert.Equal(t, 3, ledger.TotalQuantity())
	assert.ErrorIs(t, machine.LastError(), ErrSubmission)
	assert.NotEmpty(t, machine.View().LastError)

	submitter.mu.Lock()
	submitter.err = nil
	submitter.mu.Unlock()
	confirmation, err := machine.Submit(context.Background(), validCustomer(), validAddress())
	require.NoError(t, err)

	records := submitter.Records()
	require.Len(t, records, 2)
	assert.NotEqual(t, records[0].OrderID, records[1].OrderID)
	assert.Equal(t, records[1].OrderID, confirmation.OrderID)
	assert.Nil(t, machine.LastError())
}

func TestCheckoutValidationReportsAllFields(t *testing.T) {
	submitter := &recordingSubmitter{}
	machine, ledger, _, _ := newTestCheckout(t, submitter, nil)
	fillCart(t, ledger)
	_, err := machine.Open()
	require.NoError(t, err)

	customer := models.Customer{FirstName: " ", LastName: "L", Email: "not-an-email", PhoneNumber: "555-1234"}
	_, err = machine.Submit(context.Background(), customer, models.ShippingAddress{Street: "1 Main St"})
	require.ErrorIs(t, err, ErrValidation)

	var verr *ValidationError
	require.True(t, errors.As(err, &verr))
	fields := make(map[string]bool)
	for _, f := range verr.Fields {
		fields[f.Field] = true
	}
	for _, name := range []string{"firstName", "email", "phoneNumber", "city", "state", "zipCode"} {
		assert.True(t, fields[name], "missing field error for %s", name)
	}
	assert.False(t, fields["lastName"])
	assert.False(t, fields["street"])

	assert.Equal(t, constants.CheckoutStateOpen, machine.State())
	assert.Empty(t, submitter.Records())
}

func TestCheckoutSubmitFromClosedIsRejected(t *testing.T) {
	submitter := &recordingSubmitter{}
	machine, ledger, _, _ := newTestCheckout(t, submitter, nil)
	fillCart(t, ledger)
	_, err := machine.Submit(context.Background(), validCustomer(), validAddress())
	assert.ErrorIs(t, err, ErrInvalidTransition)
	assert.Empty(t, submitter.Records())
}

func TestCheckoutCancelAndResume(t *testing.T) {
	submitter := &recordingSubmitter{err: errors.New("timeout")}
	machine, ledger, _, _ := newTestCheckout(t, submitter, nil)
	fillCart(t, ledger)

	assert.ErrorIs(t, machine.Cancel(), ErrInvalidTransition)
	_, err := machine.Open()
	require.NoError(t, err)
	require.NoError(t, machine.Cancel())
	assert.Equal(t, constants.CheckoutStateClosed, machine.State())
	assert.Equal(t, 3, ledger.TotalQuantity())

	_, err = machine.Resume()
	assert.ErrorIs(t, err, ErrInvalidTransition)

	_, err = machine.Open()
	require.NoError(t, err)
	_, err = machine.Submit(context.Background(), validCustomer(), validAddress())
	require.Error(t, err)
	view, err := machine.Resume()
	require.NoError(t, err)
	assert.Equal(t, constants.CheckoutStateOpen, view.State)
}

func TestCheckoutRefreshTracksCartChanges(t *testing.T) {
	machine, ledger, _, _ := newTestCheckout(t, &recordingSubmitter{}, nil)
	fillCart(t, ledger)
	_, err := machine.Open()
	require.NoError(t, err)

	ledger.RemoveItem(context.Background(), "2")
	view, err := machine.Refresh()
	require.NoError(t, err)
	assert.Len(t, view.Items, 1)
	assert.Equal(t, "40", view.Summary.Subtotal.String())
	assert.Equal(t, "10", view.Summary.ShippingCost.String())
}

func TestCheckoutInitiatePayment(t *testing.T) {
	payments := &recordingPayments{}
	machine, ledger, slot, notifier := newTestCheckout(t, &recordingSubmitter{}, payments)
	var initiated *Event
	notifier.Subscribe(func(e Event) {
		if e.Name == constants.EventPaymentInitiated {
			ev := e
			initiated = &ev
		}
	})
	fillCart(t, ledger)
	_, err := machine.Open()
	require.NoError(t, err)

	_, err = machine.InitiatePayment(context.Background(), "0812345678")
	require.ErrorIs(t, err, ErrValidation)
	assert.Equal(t, 0, payments.calls)

	ack, err := machine.InitiatePayment(context.Background(), " 0712345678 ")
	require.NoError(t, err)
	assert.Equal(t, 1, payments.calls)
	assert.Equal(t, "75.6", payments.amount.String())
	assert.Equal(t, "0712345678", ack.PhoneNumber)
	assert.Equal(t, "ws_CO_1", ack.Reference)
	assert.True(t, ledger.IsEmpty())
	assert.Empty(t, persistedItems(t, slot))
	require.NotNil(t, initiated)
	assert.Equal(t, constants.ReceiptChannelPayment, initiated.Data["channel"])
}

func TestCheckoutPaymentFailureKeepsCart(t *testing.T) {
	payments := &recordingPayments{err: errors.New("gateway unavailable")}
	machine, ledger, _, _ := newTestCheckout(t, &recordingSubmitter{}, payments)
	fillCart(t, ledger)
	_, err := machine.Open()
	require.NoError(t, err)

	_, err = machine.InitiatePayment(context.Background(), "0712345678")
	require.ErrorIs(t, err, ErrSubmission)
	assert.Equal(t, constants.CheckoutStateFailed, machine.State())
	assert.Equal(t, 3, ledger.TotalQuantity())
}

func TestGenerateOrderIDFormat(t *testing.T) {
	now := time.UnixMilli(1700000000123)
	seen := make(map[string]bool)
	for i := 0; i < 50; i++ {
		id := generateOrderID(now)
		assert.Regexp(t, `^ORD-1700000000123-[0-9A-Z]{5}$`, id)
		seen[id] = true
	}
	assert.Greater(t, len(seen), 1)
}

func TestFormatContactPhone(t *testing.T) {
	assert.Equal(t, "(555) 123-4567", FormatContactPhone("5551234567"))
	assert.Equal(t, "(555) 123-4567", FormatContactPhone("(555) 123-4567"))
	assert.Equal(t, "555-1234", FormatContactPhone(" 555-1234 "))
}

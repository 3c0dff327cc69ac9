package billing

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stripe/stripe-go/v84"

	"github.com/aninnda/BikeShare-System-sub002/customer"
	"github.com/aninnda/BikeShare-System-sub002/rental"
)

type fakeStripe struct {
	customers int
	invoices  []*stripe.InvoiceParams
	lines     []*stripe.InvoiceAddLinesLineParams
	finalized []string
	paid      []string
	payErr    error
}

func (f *fakeStripe) NewCustomer(*stripe.CustomerParams) (*stripe.Customer, error) {
	f.customers++
	return &stripe.Customer{ID: fmt.Sprintf("cus_%d", f.customers)}, nil
}

func (f *fakeStripe) NewInvoice(params *stripe.InvoiceParams) (*stripe.Invoice, error) {
	f.invoices = append(f.invoices, params)
	return &stripe.Invoice{ID: fmt.Sprintf("in_%d", len(f.invoices))}, nil
}

func (f *fakeStripe) AddLines(id string, params *stripe.InvoiceAddLinesParams) (*stripe.Invoice, error) {
	f.lines = append(f.lines, params.Lines...)
	return &stripe.Invoice{ID: id}, nil
}

func (f *fakeStripe) Finalize(id string, _ *stripe.InvoiceFinalizeInvoiceParams) (*stripe.Invoice, error) {
	f.finalized = append(f.finalized, id)
	return &stripe.Invoice{ID: id}, nil
}

func (f *fakeStripe) Pay(id string, _ *stripe.InvoicePayParams) (*stripe.Invoice, error) {
	if f.payErr != nil {
		return nil, f.payErr
	}
	f.paid = append(f.paid, id)
	return &stripe.Invoice{ID: id}, nil
}

var t0 = time.Date(2026, 3, 14, 9, 0, 0, 0, time.UTC)

func completedRental(t *testing.T, d time.Duration, rate int64) rental.Rental {
	t.Helper()
	r := rental.Start("user-1", "B1", "S1", t0)
	if err := r.Complete("S2", t0.Add(d), rate); err != nil {
		t.Fatalf("failed to complete rental: %v", err)
	}
	return *r
}

func newTestInvoicer(api Stripe, customers Customers) *Invoicer {
	cfg := Config{Currency: "eur", UnlockFee: 100, VATRate: 13.5}
	return NewInvoicer(customers, api, cfg, slog.New(slog.NewTextHandler(io.Discard, nil)))
}

func TestInvoice(t *testing.T) {
	api := &fakeStripe{}
	customers := customer.NewFakeRepository()
	inv := newTestInvoicer(api, customers)
	ctx := context.Background()

	id, err := inv.Invoice(ctx, completedRental(t, 4*time.Minute+10*time.Second, 15))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if id != "in_1" || len(api.paid) != 1 || len(api.finalized) != 1 {
		t.Errorf("expected invoice in_1 finalized and paid, got %q %v %v", id, api.finalized, api.paid)
	}
	if len(api.lines) != 2 {
		t.Fatalf("expected 2 lines, got %d", len(api.lines))
	}
	if got := *api.lines[0].Amount; got != 100 {
		t.Errorf("expected unlock fee 100, got %d", got)
	}
	// 4m10s bills 5 started minutes.
	if got := *api.lines[1].Amount; got != 75 {
		t.Errorf("expected ride line 75, got %d", got)
	}
	if got := *api.lines[1].Description; got != "Ride - 5 minutes" {
		t.Errorf("unexpected description %q", got)
	}
	tax := api.lines[0].TaxAmounts[0]
	if *tax.Amount != 12 || *tax.TaxableAmount != 88 {
		t.Errorf("expected 12 tax on 88, got %d on %d", *tax.Amount, *tax.TaxableAmount)
	}

	cust, _ := customers.GetByUserID(ctx, "user-1")
	if cust.StripeID.String != "cus_1" {
		t.Errorf("expected stripe id to be saved, got %+v", cust.StripeID)
	}

	// The stored Stripe customer is reused.
	if _, err := inv.Invoice(ctx, completedRental(t, time.Minute, 15)); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if api.customers != 1 {
		t.Errorf("expected one stripe customer, got %d", api.customers)
	}
	if got := *api.invoices[1].Customer; got != "cus_1" {
		t.Errorf("expected invoice for cus_1, got %s", got)
	}
}

func TestInvoice_Errors(t *testing.T) {
	ctx := context.Background()

	active := rental.Start("user-1", "B1", "S1", t0)
	inv := newTestInvoicer(&fakeStripe{}, customer.NewFakeRepository())
	if _, err := inv.Invoice(ctx, *active); !errors.Is(err, ErrNotCompleted) {
		t.Errorf("expected ErrNotCompleted, got %v", err)
	}

	declined := errors.New("card declined")
	inv = newTestInvoicer(&fakeStripe{payErr: declined}, customer.NewFakeRepository())
	id, err := inv.Invoice(ctx, completedRental(t, time.Minute, 15))
	if !errors.Is(err, declined) || id == "" {
		t.Errorf("expected pay error with invoice id, got %q %v", id, err)
	}
}

func TestInvoice_NothingToCharge(t *testing.T) {
	api := &fakeStripe{}
	inv := NewInvoicer(customer.NewFakeRepository(), api, Config{Currency: "eur"}, slog.New(slog.NewTextHandler(io.Discard, nil)))

	id, err := inv.Invoice(context.Background(), completedRental(t, 0, 15))
	if err != nil || id != "" {
		t.Errorf("expected no invoice, got %q %v", id, err)
	}
	if len(api.invoices) != 0 {
		t.Errorf("expected stripe not to be called, got %d invoices", len(api.invoices))
	}
}

func TestInclusiveTax(t *testing.T) {
	tests := []struct {
		gross int64
		rate  float64
		want  int64
	}{
		{100, 13.5, 12},
		{15, 13.5, 2},
		{1000, 23, 187},
		{500, 0, 0},
	}
	for _, tt := range tests {
		if got := InclusiveTax(tt.gross, tt.rate); got != tt.want {
			t.Errorf("InclusiveTax(%d, %v): expected %d, got %d", tt.gross, tt.rate, tt.want, got)
		}
	}
}

// Package billing charges completed rentals through Stripe.
package billing

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"

	"github.com/stripe/stripe-go/v84"
	stripecustomer "github.com/stripe/stripe-go/v84/customer"
	"github.com/stripe/stripe-go/v84/invoice"

	"github.com/aninnda/BikeShare-System-sub002/customer"
	"github.com/aninnda/BikeShare-System-sub002/rental"
)

var ErrNotCompleted = errors.New("rental is not completed")

type Customers interface {
	GetOrCreate(ctx context.Context, userID string) (customer.Customer, error)
	AddStripeID(ctx context.Context, userID, stripeID string) error
}

// Stripe is the subset of the Stripe API used to invoice a ride.
type Stripe interface {
	NewCustomer(params *stripe.CustomerParams) (*stripe.Customer, error)
	NewInvoice(params *stripe.InvoiceParams) (*stripe.Invoice, error)
	AddLines(id string, params *stripe.InvoiceAddLinesParams) (*stripe.Invoice, error)
	Finalize(id string, params *stripe.InvoiceFinalizeInvoiceParams) (*stripe.Invoice, error)
	Pay(id string, params *stripe.InvoicePayParams) (*stripe.Invoice, error)
}

// StripeAPI calls Stripe with the globally configured stripe.Key.
type StripeAPI struct{}

func (StripeAPI) NewCustomer(params *stripe.CustomerParams) (*stripe.Customer, error) {
	return stripecustomer.New(params)
}

func (StripeAPI) NewInvoice(params *stripe.InvoiceParams) (*stripe.Invoice, error) {
	return invoice.New(params)
}

func (StripeAPI) AddLines(id string, params *stripe.InvoiceAddLinesParams) (*stripe.Invoice, error) {
	return invoice.AddLines(id, params)
}

func (StripeAPI) Finalize(id string, params *stripe.InvoiceFinalizeInvoiceParams) (*stripe.Invoice, error) {
	return invoice.FinalizeInvoice(id, params)
}

func (StripeAPI) Pay(id string, params *stripe.InvoicePayParams) (*stripe.Invoice, error) {
	return invoice.Pay(id, params)
}

type Config struct {
	Currency string
	// UnlockFee is charged once per rental, in minor units.
	UnlockFee int64
	// VATRate is the inclusive VAT percentage.
	VATRate float64
}

type Invoicer struct {
	customers Customers
	stripe    Stripe
	cfg       Config
	logger    *slog.Logger
}

func NewInvoicer(customers Customers, api Stripe, cfg Config, logger *slog.Logger) *Invoicer {
	return &Invoicer{
		customers: customers,
		stripe:    api,
		cfg:       cfg,
		logger:    logger,
	}
}

// Invoice bills a completed rental: one unlock line and one line for the
// started minutes at the rental's cost. It returns the Stripe invoice id,
// or "" when there is nothing to charge.
func (i *Invoicer) Invoice(ctx context.Context, r rental.Rental) (string, error) {
	if r.Status != rental.StatusCompleted || !r.Cost.Valid {
		return "", fmt.Errorf("%w: %s is %s", ErrNotCompleted, r.ID, r.Status)
	}

	lines := i.lines(r)
	if len(lines) == 0 {
		return "", nil
	}

	stripeID, err := i.stripeCustomer(ctx, r.UserID)
	if err != nil {
		return "", err
	}

	in, err := i.stripe.NewInvoice(&stripe.InvoiceParams{
		Customer: stripe.String(stripeID),
		Currency: stripe.String(i.cfg.Currency),
		Metadata: map[string]string{
			"rental_id": r.ID.String(),
			"bike_id":   r.BikeID,
		},
	})
	if err != nil {
		return "", fmt.Errorf("create invoice: %w", err)
	}

	if _, err := i.stripe.AddLines(in.ID, &stripe.InvoiceAddLinesParams{Lines: lines}); err != nil {
		return in.ID, fmt.Errorf("add lines to invoice %s: %w", in.ID, err)
	}
	if _, err := i.stripe.Finalize(in.ID, &stripe.InvoiceFinalizeInvoiceParams{}); err != nil {
		return in.ID, fmt.Errorf("finalize invoice %s: %w", in.ID, err)
	}
	if _, err := i.stripe.Pay(in.ID, nil); err != nil {
		return in.ID, fmt.Errorf("pay invoice %s: %w", in.ID, err)
	}

	i.logger.InfoContext(ctx, "rental invoiced", "rental_id", r.ID, "invoice_id", in.ID, "cost", r.Cost.Int64)
	return in.ID, nil
}

func (i *Invoicer) stripeCustomer(ctx context.Context, userID string) (string, error) {
	cust, err := i.customers.GetOrCreate(ctx, userID)
	if err != nil {
		return "", fmt.Errorf("get customer: %w", err)
	}
	if cust.StripeID.Valid {
		return cust.StripeID.String, nil
	}

	sc, err := i.stripe.NewCustomer(&stripe.CustomerParams{
		Email: stripe.String(cust.Email.String),
		Name:  stripe.String(cust.Name.String),
		Metadata: map[string]string{
			"user_id": userID,
			"id":      cust.ID.String(),
		},
	})
	if err != nil {
		return "", fmt.Errorf("create stripe customer: %w", err)
	}
	if err := i.customers.AddStripeID(ctx, userID, sc.ID); err != nil {
		return "", fmt.Errorf("save stripe customer id: %w", err)
	}
	return sc.ID, nil
}

func (i *Invoicer) lines(r rental.Rental) []*stripe.InvoiceAddLinesLineParams {
	var lines []*stripe.InvoiceAddLinesLineParams
	if i.cfg.UnlockFee > 0 {
		lines = append(lines, i.line(i.cfg.UnlockFee, "Ride Unlock"))
	}
	if r.Cost.Int64 > 0 {
		lines = append(lines, i.line(r.Cost.Int64, fmt.Sprintf("Ride - %d minutes", r.Minutes())))
	}
	return lines
}

func (i *Invoicer) line(amount int64, description string) *stripe.InvoiceAddLinesLineParams {
	tax := InclusiveTax(amount, i.cfg.VATRate)
	return &stripe.InvoiceAddLinesLineParams{
		Amount:      stripe.Int64(amount),
		Description: stripe.String(description),
		TaxAmounts: []*stripe.InvoiceAddLinesLineTaxAmountParams{
			{
				Amount:        stripe.Int64(tax),
				TaxableAmount: stripe.Int64(amount - tax),
				TaxRateData: &stripe.InvoiceAddLinesLineTaxAmountTaxRateDataParams{
					Percentage:  stripe.Float64(i.cfg.VATRate),
					Description: stripe.String("VAT - Reduced Rate"),
					DisplayName: stripe.String(fmt.Sprintf("VAT - Reduced Rate (%g%%)", i.cfg.VATRate)),
					Inclusive:   stripe.Bool(true),
				},
			},
		},
	}
}

// InclusiveTax is the VAT contained in a gross amount, rounded to the
// nearest minor unit.
func InclusiveTax(gross int64, ratePercent float64) int64 {
	if ratePercent <= 0 {
		return 0
	}
	return int64(math.Round(float64(gross) * ratePercent / (100 + ratePercent)))
}

package checkout

import (
	"context"

	"github.com/retailhub/checkout-service/internal/domain/customer"
)

// Gateway is the narrow contract the pipeline requires from the remote
// storefront. Every call is a suspension point: it either returns a value
// or a transport/API failure, and honors context cancellation.
type Gateway interface {
	GetCustomerByID(ctx context.Context, id string) (*customer.Profile, error)
	GetDefaultAddress(ctx context.Context, customerID string) (*customer.DefaultAddress, error)
	CreateDraftOrder(ctx context.Context, input DraftOrderInput) (orderID string, err error)
	SendDraftOrderInvoice(ctx context.Context, draftOrderID string) error
	MarkOrderAsPaid(ctx context.Context, orderID string) error
	TagCustomerWithUsedDiscount(ctx context.Context, customerID, discountTitle string) error
	DeleteCartItem(ctx context.Context, draftOrderID string) error
}

// DeleteResult records the outcome of removing one ordered bag line.
// Failures are collected here instead of propagated so one bad line never
// blocks its siblings.
type DeleteResult struct {
	DraftOrderID string
	Err          error
}

// Outcome is the terminal state of a successful checkout attempt. The
// finalize side effects succeed or fail independently of each other, so
// partial success stays observable.
type Outcome struct {
	OrderID        string
	Paid           bool
	InvoiceSent    bool
	DiscountTagged bool
	Deletes        []DeleteResult
}

// CleanedUp reports whether every bag line was removed.
func (o Outcome) CleanedUp() bool {
	for _, d := range o.Deletes {
		if d.Err != nil {
			return false
		}
	}
	return true
}

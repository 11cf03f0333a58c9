package checkout

import (
	"context"
	"sync"

	"github.com/go-faster/errors"
	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/retailhub/checkout-service/internal/apistate"
	"github.com/retailhub/checkout-service/internal/domain/cart"
	"github.com/retailhub/checkout-service/internal/domain/customer"
	"github.com/retailhub/checkout-service/internal/domain/discount"
)

// Service creates checkout attempts. It owns the gateway dependency and
// the telemetry instruments shared by all attempts.
type Service struct {
	gw     Gateway
	lg     *zap.Logger
	tracer trace.Tracer
	placed metric.Int64Counter
}

// NewService constructs a Service. Telemetry providers follow the
// application bootstrap; pass noop providers in tests.
func NewService(gw Gateway, lg *zap.Logger, tp trace.TracerProvider, mp metric.MeterProvider) (*Service, error) {
	meter := mp.Meter("checkout")
	placed, err := meter.Int64Counter("checkout.orders_placed",
		metric.WithDescription("Successfully completed checkout attempts"))
	if err != nil {
		return nil, errors.Wrap(err, "create orders counter")
	}

	return &Service{
		gw:     gw,
		lg:     lg,
		tracer: tp.Tracer("checkout"),
		placed: placed,
	}, nil
}

// Begin opens a new checkout attempt for the given session identity over
// the given bag snapshot. The snapshot and the discount selection are
// owned by the attempt for its lifetime; nothing is shared across
// attempts. Concurrent attempts are not deduplicated here; preventing
// double submission is the caller's job.
func (s *Service) Begin(ident customer.Identity, snap cart.Snapshot) *Checkout {
	id := uuid.New().String()
	return &Checkout{
		svc:       s,
		attemptID: id,
		identity:  ident,
		snapshot:  snap,
		lg:        s.lg.With(zap.String("attempt_id", id), zap.String("customer_id", ident.ID)),

		customerState: apistate.NewStream[customer.Profile](),
		addressState:  apistate.NewStream[customer.DefaultAddress](),
		checkoutState: apistate.NewStream[Outcome](),
	}
}

// Checkout is one checkout attempt: the only mutable state it holds is the
// bag snapshot captured at Begin and the current discount selection.
type Checkout struct {
	svc       *Service
	attemptID string
	identity  customer.Identity
	lg        *zap.Logger

	mu        sync.Mutex
	stage     Stage
	cause     error
	snapshot  cart.Snapshot
	selected  *discount.Discount
	profile   *customer.Profile
	defAddr   *customer.DefaultAddress
	submitted bool

	customerState *apistate.Stream[customer.Profile]
	addressState  *apistate.Stream[customer.DefaultAddress]
	checkoutState *apistate.Stream[Outcome]
}

// AttemptID returns the unique id of this attempt.
func (c *Checkout) AttemptID() string { return c.attemptID }

// Stage returns the current stage and, for StageError, the cause.
func (c *Checkout) Stage() (Stage, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.stage, c.cause
}

// CustomerState is the tri-state stream of the customer profile fetch.
func (c *Checkout) CustomerState() *apistate.Stream[customer.Profile] { return c.customerState }

// AddressState is the tri-state stream of the default address fetch.
func (c *Checkout) AddressState() *apistate.Stream[customer.DefaultAddress] { return c.addressState }

// CheckoutState is the tri-state stream of the submission itself.
func (c *Checkout) CheckoutState() *apistate.Stream[Outcome] { return c.checkoutState }

// SelectDiscount records the discount selection for this attempt. A nil
// discount clears the selection.
func (c *Checkout) SelectDiscount(d *discount.Discount) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.selected = d
}

// SelectedDiscount returns the current selection, nil when none.
func (c *Checkout) SelectedDiscount() *discount.Discount {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.selected
}

// DiscountInput derives the payload sub-request for the current selection.
// It is synchronous and nil when no discount is selected.
func (c *Checkout) DiscountInput() *DiscountInput {
	return DiscountInputFrom(c.SelectedDiscount())
}

func (c *Checkout) setStage(st Stage) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.stage.Terminal() {
		return
	}
	c.stage = st
}

func (c *Checkout) failStage(err error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.stage.Terminal() {
		return
	}
	c.stage = StageError
	c.cause = err
}

// Prepare runs the customer and default-address fetches. The two reads are
// independent and issued concurrently; both must complete before Submit.
// Any failure puts the attempt into StageError and surfaces on the
// corresponding stream.
func (c *Checkout) Prepare(ctx context.Context) error {
	ctx, span := c.svc.tracer.Start(ctx, "checkout.Prepare")
	defer span.End()

	c.setStage(StageCustomerLoading)
	c.customerState.Loading()
	c.addressState.Loading()

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		profile, err := c.svc.gw.GetCustomerByID(gctx, c.identity.ID)
		if err != nil {
			err = errors.Wrap(err, "get customer")
			c.customerState.Fail(err)
			return err
		}
		c.mu.Lock()
		c.profile = profile
		c.mu.Unlock()
		c.customerState.Success(*profile)
		c.setStage(StageAddressLoading)
		return nil
	})
	g.Go(func() error {
		addr, err := c.svc.gw.GetDefaultAddress(gctx, c.identity.ID)
		if err != nil {
			err = errors.Wrap(err, "get default address")
			c.addressState.Fail(err)
			return err
		}
		c.mu.Lock()
		c.defAddr = addr
		c.mu.Unlock()
		c.addressState.Success(*addr)
		return nil
	})

	if err := g.Wait(); err != nil {
		c.failStage(err)
		return err
	}
	return nil
}

// SubmitRequest carries the per-submission choices: an optional one-off
// entered address (the stored default address is used otherwise) and the
// payment method.
type SubmitRequest struct {
	EnteredAddress *customer.Address
	Payment        PaymentMethod
}

// Submit assembles the draft order payload and runs the post-creation
// sequence: create, invoice, conditional mark-as-paid, discount tagging
// and bag cleanup. The discount selection is captured once at entry, so a
// selection cleared mid-flight still tags with the captured title.
// Validation faults (missing address fields) propagate without touching
// the checkout stream; transport failures resolve the stream to Error.
func (c *Checkout) Submit(ctx context.Context, req SubmitRequest) (*Outcome, error) {
	ctx, span := c.svc.tracer.Start(ctx, "checkout.Submit",
		trace.WithAttributes(attribute.String("payment", string(req.Payment))))
	defer span.End()

	c.mu.Lock()
	if c.submitted {
		c.mu.Unlock()
		return nil, errors.New("checkout attempt already submitted")
	}
	c.submitted = true
	selected := c.selected
	snapshot := c.snapshot
	defAddr := c.defAddr
	c.mu.Unlock()

	ident := CustomerInput{ID: c.identity.ID, Email: c.identity.Email}
	addr, err := NormalizeAddress(req.EnteredAddress, defAddr, &ident)
	if err != nil {
		// Fail-fast contract: malformed address input is the caller's
		// fault, not a stage failure.
		return nil, err
	}

	input := BuildDraftOrderInput(snapshot.Items, addr, ident, selected)

	c.setStage(StageSubmitting)
	c.checkoutState.Loading()

	orderID, err := c.svc.gw.CreateDraftOrder(ctx, input)
	if err != nil {
		err = errors.Wrap(err, "create draft order")
		c.failStage(err)
		c.checkoutState.Fail(err)
		return nil, err
	}
	c.lg.Info("draft order created", zap.String("order_id", orderID))

	c.setStage(StagePaymentPending)
	paid, err := c.markAsPaidIfCard(ctx, orderID, req.Payment)
	if err != nil {
		err = errors.Wrap(err, "mark order as paid")
		c.failStage(err)
		c.checkoutState.Fail(err)
		return nil, err
	}

	c.setStage(StageFinalizing)
	outcome := c.finalize(ctx, orderID, selected, snapshot.Items)
	outcome.Paid = paid

	c.setStage(StageCompleted)
	c.checkoutState.Success(*outcome)
	c.svc.placed.Add(ctx, 1)
	return outcome, nil
}

// markAsPaidIfCard invokes the payment capture only for card payments.
// Non-card methods make no call at all.
func (c *Checkout) markAsPaidIfCard(ctx context.Context, orderID string, method PaymentMethod) (bool, error) {
	if !method.Card() {
		return false, nil
	}
	if err := c.svc.gw.MarkOrderAsPaid(ctx, orderID); err != nil {
		return false, err
	}
	return true, nil
}

// finalize runs the post-order side effects. Each one is independent:
// nothing here fails the attempt, every failure is logged and recorded on
// the outcome. Bag line deletions run concurrently and a failed delete
// never cancels its siblings.
func (c *Checkout) finalize(ctx context.Context, orderID string, selected *discount.Discount, items []cart.Item) *Outcome {
	ctx, span := c.svc.tracer.Start(ctx, "checkout.finalize")
	defer span.End()

	outcome := &Outcome{OrderID: orderID}

	if selected != nil {
		if err := c.svc.gw.TagCustomerWithUsedDiscount(ctx, c.identity.ID, selected.Title); err != nil {
			c.lg.Warn("tag used discount failed",
				zap.String("discount", selected.Title), zap.Error(err))
		} else {
			outcome.DiscountTagged = true
		}
	}

	if err := c.svc.gw.SendDraftOrderInvoice(ctx, orderID); err != nil {
		c.lg.Warn("invoice send failed", zap.Error(err))
	} else {
		outcome.InvoiceSent = true
	}

	outcome.Deletes = c.deleteCartItems(ctx, items)
	return outcome
}

// deleteCartItems removes the now-ordered lines, one call per line, all
// concurrent. Results are collected positionally; goroutines always return
// nil so the group never cancels siblings.
func (c *Checkout) deleteCartItems(ctx context.Context, items []cart.Item) []DeleteResult {
	if len(items) == 0 {
		return nil
	}

	results := make([]DeleteResult, len(items))
	var g errgroup.Group
	for i, it := range items {
		g.Go(func() error {
			err := c.svc.gw.DeleteCartItem(ctx, it.DraftOrderID)
			if err != nil {
				c.lg.Warn("bag item delete failed",
					zap.String("draft_order_id", it.DraftOrderID), zap.Error(err))
			}
			results[i] = DeleteResult{DraftOrderID: it.DraftOrderID, Err: err}
			return nil
		})
	}
	_ = g.Wait()
	return results
}

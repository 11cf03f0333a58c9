package checkout

// Stage enumerates the states of one checkout attempt. An attempt moves
// forward through the non-terminal stages in order; StageError is reachable
// from every non-terminal stage and is terminal for the attempt.
type Stage uint8

const (
	// StageIdle is the initial state before any work has started.
	StageIdle Stage = iota
	// StageCustomerLoading covers the customer profile fetch.
	StageCustomerLoading
	// StageAddressLoading covers the default address fetch.
	StageAddressLoading
	// StageSubmitting covers payload assembly and draft order creation.
	StageSubmitting
	// StagePaymentPending covers the conditional mark-as-paid call.
	StagePaymentPending
	// StageFinalizing covers discount tagging, invoicing and bag cleanup.
	StageFinalizing
	// StageCompleted is the successful terminal state.
	StageCompleted
	// StageError is the failed terminal state; the cause is retained.
	StageError
)

var stageNames = [...]string{
	"idle",
	"customer_loading",
	"address_loading",
	"submitting",
	"payment_pending",
	"finalizing",
	"completed",
	"error",
}

// String returns the snake_case stage name.
func (s Stage) String() string {
	if int(s) < len(stageNames) {
		return stageNames[s]
	}
	return "unknown"
}

// Terminal reports whether the stage ends the attempt.
func (s Stage) Terminal() bool {
	return s == StageCompleted || s == StageError
}

// PaymentMethod is the payment choice recorded for a checkout attempt.
type PaymentMethod string

const (
	// PaymentCard pays by card; the order is marked paid immediately after
	// creation.
	PaymentCard PaymentMethod = "card"
	// PaymentCashOnDelivery defers payment; no mark-as-paid call is made.
	PaymentCashOnDelivery PaymentMethod = "cash_on_delivery"
)

// Card reports whether the method triggers the mark-as-paid call.
func (m PaymentMethod) Card() bool { return m == PaymentCard }

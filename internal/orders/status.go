package orders

const (
	StatusPending = "pending"

	// Confirmation sentinels observed across deployments.
	SentinelPaid             = "paid"
	SentinelPaymentConfirmed = "Payment confirmed"
)

// KnownSentinel reports whether s is one of the confirmation sentinels in use. Matching
// is exact, so a near miss such as "Paid" is not known.
func KnownSentinel(s string) bool {
	return s == SentinelPaid || s == SentinelPaymentConfirmed
}

type EffectKind int

const (
	EffectNone EffectKind = iota
	EffectPaymentConfirmed
)

func (k EffectKind) String() string {
	switch k {
	case EffectPaymentConfirmed:
		return "payment_confirmed"
	default:
		return "none"
	}
}

// Effect is the side effect an order mutation asks for.
type Effect struct {
	Kind       EffectKind
	DocumentID string
	OrderID    string
}

func (e Effect) Fires() bool { return e.Kind != EffectNone }

// OnPaymentStatusChanged fires only for a real transition into the sentinel value.
// confirmed->confirmed, pending->pending and confirmed->anything are no-ops.
func OnPaymentStatusChanged(prev, next, sentinel string) EffectKind {
	if prev == next || next != sentinel {
		return EffectNone
	}
	return EffectPaymentConfirmed
}

package redisx

import "time"

const (
	// Dedup of event processing: dedup:{service}:{event_id}
	KeyDedup = "dedup:%s:%s"

	// Cross-process invoice render lock: lock:invoice:{order_id} -> owner token
	KeyInvoiceLock = "lock:invoice:%s"
)

var (
	TTLDedup       = 48 * time.Hour
	TTLInvoiceLock = 2 * time.Minute
)

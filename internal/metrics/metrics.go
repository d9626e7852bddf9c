package metrics

import (
	"sync/atomic"
	"time"
)

type Counter struct {
	value uint64
}

func (c *Counter) Inc() {
	atomic.AddUint64(&c.value, 1)
}

func (c *Counter) Add(n uint64) {
	atomic.AddUint64(&c.value, n)
}

func (c *Counter) Load() uint64 {
	return atomic.LoadUint64(&c.value)
}

type Timer struct {
	start time.Time
}

func StartTimer() *Timer {
	return &Timer{start: time.Now()}
}

func (t *Timer) Duration() time.Duration {
	return time.Since(t.start)
}

// Gateway-wide counters, exposed on the debug metrics endpoint.
var (
	ProviderRequests  Counter
	ProviderFailures  Counter
	PaymentsInitiated Counter
	PaymentsConfirmed Counter
	Refunds           Counter
)

func Snapshot() map[string]uint64 {
	return map[string]uint64{
		"provider_requests":  ProviderRequests.Load(),
		"provider_failures":  ProviderFailures.Load(),
		"payments_initiated": PaymentsInitiated.Load(),
		"payments_confirmed": PaymentsConfirmed.Load(),
		"refunds":            Refunds.Load(),
	}
}

package observability

import (
	"strconv"
	"sync"
	"time"
)

// Routing outcome counter names.
const (
	CounterTicketsCreated     = "tickets_created"
	CounterAutoResolved       = "tickets_auto_resolved"
	CounterRouted             = "tickets_routed"
	CounterUnrouted           = "tickets_unrouted"
	CounterClassifierFailures = "classifier_failures"
)

// Metrics provides basic in-memory counters.
type Metrics struct {
	mu           sync.Mutex
	requestCount map[string]int64
	errorCount   map[string]int64
	routingCount map[string]int64
}

// NewMetrics initializes metrics storage.
func NewMetrics() *Metrics {
	return &Metrics{
		requestCount: make(map[string]int64),
		errorCount:   make(map[string]int64),
		routingCount: make(map[string]int64),
	}
}

// RecordRequest increments counters for requests.
func (m *Metrics) RecordRequest(path, method string, status int, duration time.Duration) {
	if m == nil {
		return
	}
	key := path + "|" + method + "|" + strconv.Itoa(status)
	m.mu.Lock()
	defer m.mu.Unlock()
	m.requestCount[key]++
}

// RecordError increments error counters.
func (m *Metrics) RecordError(path, method, code string) {
	if m == nil {
		return
	}
	key := path + "|" + method + "|" + code
	m.mu.Lock()
	defer m.mu.Unlock()
	m.errorCount[key]++
}

// RecordRoutingOutcome increments a routing pipeline counter.
func (m *Metrics) RecordRoutingOutcome(counter string) {
	if m == nil {
		return
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.routingCount[counter]++
}

// RoutingOutcomes returns a copy of the routing counters.
func (m *Metrics) RoutingOutcomes() map[string]int64 {
	if m == nil {
		return nil
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make(map[string]int64, len(m.routingCount))
	for k, v := range m.routingCount {
		out[k] = v
	}
	return out
}

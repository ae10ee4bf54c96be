package proxy

import (
	"fmt"
	"sync"

	"github.com/mathpl/go-tsdmetrics"
	"github.com/rcrowley/go-metrics"
)

// transactionMetrics tracks byte counts, connection counts, response latency
// and return-code distribution for one (web or ws) proxy pass, generalizing
// the teacher's forward/metrics_context.go from a single hard-coded
// http+websocket pair to an arbitrary "conn_type" tag. The streaming passes
// record the target leg as "http" or "ws"; the forward-copy leg is not
// instrumented.
type transactionMetrics struct {
	registry tsdmetrics.TaggedRegistry
	tags     tsdmetrics.Tags

	mu        sync.Mutex
	connTypes map[string]*connTypeMetrics
}

type connTypeMetrics struct {
	read, written           metrics.Counter
	connectionCount, connectionOpen metrics.Counter
	responseTime            tsdmetrics.IntegerHistogram
	returnCodes             map[uint8]metrics.Counter
}

// newTransactionMetrics builds a no-op-safe metrics tracker; opt may be nil,
// in which case every method below is a cheap no-op so instrumentation stays
// entirely optional, matching the teacher's "Meters option not set => no
// metrics machinery touched" behavior.
func newTransactionMetrics(opt *MetricsOption) *transactionMetrics {
	if opt == nil {
		return nil
	}
	return &transactionMetrics{
		registry:  opt.Registry,
		tags:      opt.Tags,
		connTypes: make(map[string]*connTypeMetrics),
	}
}

func (m *transactionMetrics) forConnType(connType string) *connTypeMetrics {
	m.mu.Lock()
	defer m.mu.Unlock()

	if c, ok := m.connTypes[connType]; ok {
		return c
	}

	tags := m.tags.AddTags(tsdmetrics.Tags{"conn_type": connType})

	c := &connTypeMetrics{
		returnCodes: make(map[uint8]metrics.Counter, 5),
	}
	c.read = mustCounter(m.registry, "bytes", tags.AddTags(tsdmetrics.Tags{"direction": "in"}))
	c.written = mustCounter(m.registry, "bytes", tags.AddTags(tsdmetrics.Tags{"direction": "out"}))
	c.connectionCount = mustCounter(m.registry, "connection.count", tags)
	c.connectionOpen = mustCounter(m.registry, "connection.open", tags)

	histo := tsdmetrics.NewIntegerHistogram(metrics.NewExpDecaySample(512, 0.15))
	h, ok := m.registry.GetOrRegister("response.time.ns", tags, histo).(tsdmetrics.IntegerHistogram)
	if ok {
		c.responseTime = h
	}

	m.connTypes[connType] = c
	return c
}

func mustCounter(registry tsdmetrics.TaggedRegistry, name string, tags tsdmetrics.Tags) metrics.Counter {
	c, ok := registry.GetOrRegister(name, tags, metrics.NewCounter()).(metrics.Counter)
	if !ok {
		// A pre-existing, differently-typed metric under this name/tag set is
		// a registration bug in the caller, not something this pass can
		// recover from cleanly; fall back to a fresh, unregistered counter so
		// instrumentation keeps working instead of crashing the proxy.
		return metrics.NewCounter()
	}
	return c
}

func (m *transactionMetrics) connectionStarted(connType string) {
	if m == nil {
		return
	}
	c := m.forConnType(connType)
	c.connectionCount.Inc(1)
	c.connectionOpen.Inc(1)
}

func (m *transactionMetrics) connectionEnded(connType string) {
	if m == nil {
		return
	}
	m.forConnType(connType).connectionOpen.Dec(1)
}

func (m *transactionMetrics) read(connType string, n int64) {
	if m == nil || n == 0 {
		return
	}
	m.forConnType(connType).read.Inc(n)
}

func (m *transactionMetrics) written(connType string, n int64) {
	if m == nil || n == 0 {
		return
	}
	m.forConnType(connType).written.Inc(n)
}

func (m *transactionMetrics) observeLatencyNanos(connType string, ns int64) {
	if m == nil {
		return
	}
	if h := m.forConnType(connType).responseTime; h != nil {
		h.Update(ns)
	}
}

func (m *transactionMetrics) observeStatusCode(connType string, code int) {
	if m == nil {
		return
	}
	c := m.forConnType(connType)
	high := uint8(code / 100)

	m.mu.Lock()
	counter, found := c.returnCodes[high]
	if !found {
		tags := m.tags.AddTags(tsdmetrics.Tags{"conn_type": connType, "httpcode": fmt.Sprintf("%dxx", high)})
		counter = mustCounter(m.registry, "response.count", tags)
		c.returnCodes[high] = counter
	}
	m.mu.Unlock()

	counter.Inc(1)
}

package observability

import (
	"strconv"
	"sync"
	"time"
)

// Metrics provides basic in-memory counters for the triage pipeline.
type Metrics struct {
	mu                sync.Mutex
	requestCount      map[string]int64
	errorCount        map[string]int64
	classifiedCount   map[string]int64
	degradedDiagnoses int64
	diagnoses         int64
	breakerTrips      int64
	escalations       int64
}

// NewMetrics initializes metrics storage.
func NewMetrics() *Metrics {
	return &Metrics{
		requestCount:    make(map[string]int64),
		errorCount:      make(map[string]int64),
		classifiedCount: make(map[string]int64),
	}
}

// RecordRequest increments counters for requests.
func (m *Metrics) RecordRequest(path, method string, status int, duration time.Duration) {
	if m == nil {
		return
	}
	key := pathKey(path, method, status)
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

// RecordClassification counts classifications per category.
func (m *Metrics) RecordClassification(category string) {
	if m == nil {
		return
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.classifiedCount[category]++
}

// RecordDiagnosis counts diagnosis attempts; degraded marks fallback results.
func (m *Metrics) RecordDiagnosis(degraded bool) {
	if m == nil {
		return
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.diagnoses++
	if degraded {
		m.degradedDiagnoses++
	}
}

// RecordBreakerTrip counts breaker transitions to open.
func (m *Metrics) RecordBreakerTrip() {
	if m == nil {
		return
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.breakerTrips++
}

// RecordEscalation counts tickets routed to human review.
func (m *Metrics) RecordEscalation() {
	if m == nil {
		return
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.escalations++
}

// Summary reports a snapshot of pipeline counters.
type Summary struct {
	Classifications   map[string]int64 `json:"classifications"`
	Diagnoses         int64            `json:"diagnoses"`
	DegradedDiagnoses int64            `json:"degraded_diagnoses"`
	BreakerTrips      int64            `json:"breaker_trips"`
	Escalations       int64            `json:"escalations"`
}

// Snapshot returns current counter values.
func (m *Metrics) Snapshot() Summary {
	if m == nil {
		return Summary{Classifications: map[string]int64{}}
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	classifications := make(map[string]int64, len(m.classifiedCount))
	for k, v := range m.classifiedCount {
		classifications[k] = v
	}
	return Summary{
		Classifications:   classifications,
		Diagnoses:         m.diagnoses,
		DegradedDiagnoses: m.degradedDiagnoses,
		BreakerTrips:      m.breakerTrips,
		Escalations:       m.escalations,
	}
}

func pathKey(path, method string, status int) string {
	return path + "|" + method + "|" + strconv.Itoa(status)
}

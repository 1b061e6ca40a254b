package proctor

// DefaultThreshold is the violation count that ends a session.
const DefaultThreshold = 3

// Monitor counts violations against a threshold. It is not safe for concurrent
// use; the owning session serializes access.
type Monitor struct {
	threshold int
	count     int
}

// NewMonitor creates a Monitor. Non-positive thresholds fall back to DefaultThreshold.
func NewMonitor(threshold int) *Monitor {
	if threshold <= 0 {
		threshold = DefaultThreshold
	}
	return &Monitor{threshold: threshold}
}

// Record counts one violation of kind. Once the threshold has been reached,
// further calls change nothing.
func (m *Monitor) Record(kind SignalKind) Disposition {
	if m.Reached() {
		return Disposition{Block: kind.Blockable(), Count: m.count, Threshold: m.threshold}
	}

	m.count++
	return Disposition{
		Counted:   true,
		Block:     kind.Blockable(),
		Count:     m.count,
		Threshold: m.threshold,
		Warning:   Warning(kind, m.count, m.threshold),
		Tripped:   m.count == m.threshold,
	}
}

// Count is the number of recorded violations.
func (m *Monitor) Count() int {
	return m.count
}

// Threshold is the configured limit.
func (m *Monitor) Threshold() int {
	return m.threshold
}

// Reached reports whether the threshold has been hit.
func (m *Monitor) Reached() bool {
	return m.count >= m.threshold
}

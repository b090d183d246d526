package session

import (
	"fmt"
	"sync/atomic"

	"github.com/ValentinKolb/qdev/lib/device"
	"github.com/VictoriaMetrics/metrics"
)

// sessionMetrics holds the per device series of a session.
// All methods are no-ops on a nil receiver.
type sessionMetrics struct {
	set          *metrics.Set
	label        string
	readBytes    *metrics.Counter
	writtenBytes *metrics.Counter
}

func newSessionMetrics(set *metrics.Set, label string, size *atomic.Int64) *sessionMetrics {
	m := &sessionMetrics{
		set:          set,
		label:        label,
		readBytes:    set.GetOrCreateCounter(fmt.Sprintf(`qdev_read_bytes_total{device=%q}`, label)),
		writtenBytes: set.GetOrCreateCounter(fmt.Sprintf(`qdev_write_bytes_total{device=%q}`, label)),
	}
	set.GetOrCreateGauge(fmt.Sprintf(`qdev_size_bytes{device=%q}`, label), func() float64 {
		return float64(size.Load())
	})
	return m
}

// result returns the value of the "result" label for err
func result(err error) string {
	switch device.CodeOf(err) {
	case device.RetCSuccess:
		return "ok"
	case device.RetCRestart:
		return "restart"
	case device.RetCOutOfMemory:
		return "oom"
	case device.RetCFault:
		return "fault"
	case device.RetCInvalidOperation:
		return "invalid"
	default:
		return "error"
	}
}

func (m *sessionMetrics) observe(op string, err error) {
	if m == nil {
		return
	}
	m.set.GetOrCreateCounter(fmt.Sprintf(`qdev_ops_total{device=%q,op=%q,result=%q}`, m.label, op, result(err))).Inc()
}

func (m *sessionMetrics) observeTransfer(op string, n int, err error) {
	if m == nil {
		return
	}
	m.observe(op, err)
	if n <= 0 {
		return
	}
	switch op {
	case "read":
		m.readBytes.Add(n)
	case "write":
		m.writtenBytes.Add(n)
	}
}

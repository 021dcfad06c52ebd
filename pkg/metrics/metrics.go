package metrics

import (
	"sync/atomic"

	"github.com/paulschiretz/pgl-deploy/pkg/plog"
)

// Metrics defines the interface for collecting and reporting deploy statistics.
type Metrics interface {
	AddEntriesScanned(n int64)
	AddEntriesMatched(n int64)
	AddFilesCopied(n int64)
	AddFilesFailed(n int64)
	AddBytesWritten(n int64)
	Log()
}

// DeployMetrics holds the atomic counters for tracking a deploy run's progress.
// It is the concrete implementation of the Metrics interface.
type DeployMetrics struct {
	EntriesScanned atomic.Int64
	EntriesMatched atomic.Int64
	FilesCopied    atomic.Int64
	FilesFailed    atomic.Int64
	BytesWritten   atomic.Int64
}

func (m *DeployMetrics) AddEntriesScanned(n int64) { m.EntriesScanned.Add(n) }
func (m *DeployMetrics) AddEntriesMatched(n int64) { m.EntriesMatched.Add(n) }
func (m *DeployMetrics) AddFilesCopied(n int64)    { m.FilesCopied.Add(n) }
func (m *DeployMetrics) AddFilesFailed(n int64)    { m.FilesFailed.Add(n) }
func (m *DeployMetrics) AddBytesWritten(n int64)   { m.BytesWritten.Add(n) }

// Log prints a summary of the deploy run.
func (m *DeployMetrics) Log() {
	plog.Info("SUM",
		"entriesScanned", m.EntriesScanned.Load(),
		"entriesMatched", m.EntriesMatched.Load(),
		"filesCopied", m.FilesCopied.Load(),
		"filesFailed", m.FilesFailed.Load(),
		"bytesWritten", m.BytesWritten.Load(),
	)
}

// NoopMetrics is an implementation of the Metrics interface that performs no operations.
// It can be used to disable metrics collection without changing the calling code.
type NoopMetrics struct{}

func (m *NoopMetrics) AddEntriesScanned(n int64) {}
func (m *NoopMetrics) AddEntriesMatched(n int64) {}
func (m *NoopMetrics) AddFilesCopied(n int64)    {}
func (m *NoopMetrics) AddFilesFailed(n int64)    {}
func (m *NoopMetrics) AddBytesWritten(n int64)   {}
func (m *NoopMetrics) Log()                      {}

// Statically assert that our types implement the interface.
var _ Metrics = (*DeployMetrics)(nil)
var _ Metrics = (*NoopMetrics)(nil)

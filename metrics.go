package corestore

import (
	"sync/atomic"
	"time"
)

// Batch kinds reported to MetricsCollector and the logger.
const (
	BatchRead  = "read"
	BatchWrite = "write"
)

// Backup directions reported to RecordBackup.
const (
	BackupExport  = "export"
	BackupRestore = "restore"
)

// MetricsCollector defines an interface for collecting operational metrics.
// Implement this interface to integrate with monitoring systems like Prometheus
// (see observability/prometheus).
type MetricsCollector interface {
	// RecordCreate is called after each Create.
	// created is false when the core already existed.
	RecordCreate(duration time.Duration, created bool, err error)

	// RecordFlush is called after each explicit batch flush.
	// kind is BatchRead or BatchWrite, ops the number of buffered operations.
	RecordFlush(kind string, ops int, duration time.Duration, err error)

	// RecordBestEffortFailure is called when a TryFlush swallowed an error.
	RecordBestEffortFailure(kind string, ops int, err error)

	// RecordStream is called when a range stream ends.
	// kind names the record type, n is the number of records yielded.
	RecordStream(kind string, n int, duration time.Duration, err error)

	// RecordBackup is called when an export or restore finishes.
	// entries is the number of key/value pairs, bytes the stored size.
	RecordBackup(kind string, entries, bytes int64, duration time.Duration, err error)
}

// NoopMetricsCollector is a no-op implementation of MetricsCollector.
// Use this when metrics collection is not needed.
type NoopMetricsCollector struct{}

func (NoopMetricsCollector) RecordCreate(time.Duration, bool, error)                {}
func (NoopMetricsCollector) RecordFlush(string, int, time.Duration, error)          {}
func (NoopMetricsCollector) RecordBestEffortFailure(string, int, error)             {}
func (NoopMetricsCollector) RecordStream(string, int, time.Duration, error)         {}
func (NoopMetricsCollector) RecordBackup(string, int64, int64, time.Duration, error) {}

// BasicMetricsCollector provides simple in-memory metrics collection.
// Useful for debugging and basic monitoring without external dependencies.
type BasicMetricsCollector struct {
	CreateCount        atomic.Int64
	CreateExisting     atomic.Int64
	CreateErrors       atomic.Int64
	CreateTotalNanos   atomic.Int64
	ReadFlushCount     atomic.Int64
	ReadFlushOps       atomic.Int64
	ReadFlushErrors    atomic.Int64
	WriteFlushCount    atomic.Int64
	WriteFlushOps      atomic.Int64
	WriteFlushErrors   atomic.Int64
	WriteFlushNanos    atomic.Int64
	BestEffortFailures atomic.Int64
	BestEffortDropped  atomic.Int64
	StreamCount        atomic.Int64
	StreamRecords      atomic.Int64
	StreamErrors       atomic.Int64
	ExportCount        atomic.Int64
	ExportEntries      atomic.Int64
	ExportBytes        atomic.Int64
	ExportErrors       atomic.Int64
	RestoreCount       atomic.Int64
	RestoreEntries     atomic.Int64
	RestoreErrors      atomic.Int64
}

// RecordCreate implements MetricsCollector.
func (b *BasicMetricsCollector) RecordCreate(duration time.Duration, created bool, err error) {
	b.CreateCount.Add(1)
	b.CreateTotalNanos.Add(duration.Nanoseconds())
	if err != nil {
		b.CreateErrors.Add(1)
	} else if !created {
		b.CreateExisting.Add(1)
	}
}

// RecordFlush implements MetricsCollector.
func (b *BasicMetricsCollector) RecordFlush(kind string, ops int, duration time.Duration, err error) {
	if kind == BatchRead {
		b.ReadFlushCount.Add(1)
		b.ReadFlushOps.Add(int64(ops))
		if err != nil {
			b.ReadFlushErrors.Add(1)
		}
		return
	}

	b.WriteFlushCount.Add(1)
	b.WriteFlushOps.Add(int64(ops))
	b.WriteFlushNanos.Add(duration.Nanoseconds())
	if err != nil {
		b.WriteFlushErrors.Add(1)
	}
}

// RecordBestEffortFailure implements MetricsCollector.
func (b *BasicMetricsCollector) RecordBestEffortFailure(kind string, ops int, err error) {
	b.BestEffortFailures.Add(1)
	b.BestEffortDropped.Add(int64(ops))
}

// RecordStream implements MetricsCollector.
func (b *BasicMetricsCollector) RecordStream(kind string, n int, duration time.Duration, err error) {
	b.StreamCount.Add(1)
	b.StreamRecords.Add(int64(n))
	if err != nil {
		b.StreamErrors.Add(1)
	}
}

// RecordBackup implements MetricsCollector.
func (b *BasicMetricsCollector) RecordBackup(kind string, entries, bytes int64, _ time.Duration, err error) {
	if kind == BackupRestore {
		b.RestoreCount.Add(1)
		b.RestoreEntries.Add(entries)
		if err != nil {
			b.RestoreErrors.Add(1)
		}
		return
	}

	b.ExportCount.Add(1)
	b.ExportEntries.Add(entries)
	b.ExportBytes.Add(bytes)
	if err != nil {
		b.ExportErrors.Add(1)
	}
}

// GetStats returns a snapshot of current metrics.
func (b *BasicMetricsCollector) GetStats() BasicMetricsStats {
	return BasicMetricsStats{
		CreateCount:        b.CreateCount.Load(),
		CreateExisting:     b.CreateExisting.Load(),
		CreateErrors:       b.CreateErrors.Load(),
		CreateAvgNanos:     avg(b.CreateTotalNanos.Load(), b.CreateCount.Load()),
		ReadFlushCount:     b.ReadFlushCount.Load(),
		ReadFlushOps:       b.ReadFlushOps.Load(),
		ReadFlushErrors:    b.ReadFlushErrors.Load(),
		WriteFlushCount:    b.WriteFlushCount.Load(),
		WriteFlushOps:      b.WriteFlushOps.Load(),
		WriteFlushErrors:   b.WriteFlushErrors.Load(),
		WriteFlushAvgNanos: avg(b.WriteFlushNanos.Load(), b.WriteFlushCount.Load()),
		BestEffortFailures: b.BestEffortFailures.Load(),
		BestEffortDropped:  b.BestEffortDropped.Load(),
		StreamCount:        b.StreamCount.Load(),
		StreamRecords:      b.StreamRecords.Load(),
		StreamErrors:       b.StreamErrors.Load(),
		ExportCount:        b.ExportCount.Load(),
		ExportEntries:      b.ExportEntries.Load(),
		ExportBytes:        b.ExportBytes.Load(),
		ExportErrors:       b.ExportErrors.Load(),
		RestoreCount:       b.RestoreCount.Load(),
		RestoreEntries:     b.RestoreEntries.Load(),
		RestoreErrors:      b.RestoreErrors.Load(),
	}
}

func avg(total, count int64) int64 {
	if count == 0 {
		return 0
	}
	return total / count
}

// BasicMetricsStats is a snapshot of BasicMetricsCollector state.
type BasicMetricsStats struct {
	CreateCount        int64
	CreateExisting     int64
	CreateErrors       int64
	CreateAvgNanos     int64
	ReadFlushCount     int64
	ReadFlushOps       int64
	ReadFlushErrors    int64
	WriteFlushCount    int64
	WriteFlushOps      int64
	WriteFlushErrors   int64
	WriteFlushAvgNanos int64
	BestEffortFailures int64
	BestEffortDropped  int64
	StreamCount        int64
	StreamRecords      int64
	StreamErrors       int64
	ExportCount        int64
	ExportEntries      int64
	ExportBytes        int64
	ExportErrors       int64
	RestoreCount       int64
	RestoreEntries     int64
	RestoreErrors      int64
}

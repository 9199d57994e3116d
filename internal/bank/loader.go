package bank

import (
	"context"
	"sync"

	"golang.org/x/sync/singleflight"
)

// LoadFunc produces a Bank. Loader calls it at most once per successful load.
type LoadFunc func() (*Bank, *LoadReport, error)

// Loader loads a Bank once and shares it. Concurrent first callers wait on a
// single load; a failed load is not cached and the next call tries again.
type Loader struct {
	load LoadFunc

	group singleflight.Group

	mu     sync.RWMutex
	bank   *Bank
	report *LoadReport
}

type loadResult struct {
	bank   *Bank
	report *LoadReport
}

// NewLoader returns a Loader around fn.
func NewLoader(fn LoadFunc) *Loader {
	return &Loader{load: fn}
}

// NewFileLoader returns a Loader that reads path with LoadFile.
func NewFileLoader(path string, opts LoadOptions) *Loader {
	return NewLoader(func() (*Bank, *LoadReport, error) {
		return LoadFile(path, opts)
	})
}

// Get returns the shared Bank, loading it on first use. The context only
// bounds how long this caller waits; an in-flight load keeps running for the
// other waiters.
func (l *Loader) Get(ctx context.Context) (*Bank, error) {
	if b := l.cached(); b != nil {
		return b, nil
	}

	ch := l.group.DoChan("bank", func() (any, error) {
		if b := l.cached(); b != nil {
			return loadResult{bank: b, report: l.Report()}, nil
		}
		b, report, err := l.load()
		if err != nil {
			return nil, err
		}
		l.mu.Lock()
		l.bank, l.report = b, report
		l.mu.Unlock()
		return loadResult{bank: b, report: report}, nil
	})

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return nil, res.Err
		}
		return res.Val.(loadResult).bank, nil
	}
}

// Report returns the report of the successful load, or nil before one.
func (l *Loader) Report() *LoadReport {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.report
}

func (l *Loader) cached() *Bank {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.bank
}

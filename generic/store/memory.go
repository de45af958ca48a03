// Package store provides Store implementations.
package store

import (
	"context"
	"sort"
	"sync"

	"github.com/warp/lending-engine/generic"
)

// =============================================================================
// MEMORY STORE - In-memory implementation (for testing/dev)
// =============================================================================

type Memory struct {
	mu          sync.RWMutex
	payments    map[generic.LoanID][]generic.Payment
	idempotency map[string]bool
}

func NewMemory() *Memory {
	return &Memory{
		payments:    make(map[generic.LoanID][]generic.Payment),
		idempotency: make(map[string]bool),
	}
}

// Append adds a single event. Append-only.
func (m *Memory) Append(_ context.Context, p generic.Payment) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.appendLocked(p)
}

func (m *Memory) appendLocked(p generic.Payment) error {
	if p.IdempotencyKey != "" && m.idempotency[p.IdempotencyKey] {
		return generic.ErrDuplicateIdempotencyKey
	}

	ps := m.payments[p.LoanID]

	// Insert after every event on or before PaidAt so same-day events keep arrival order.
	i := sort.Search(len(ps), func(i int) bool {
		return ps[i].PaidAt.After(p.PaidAt)
	})
	ps = append(ps, generic.Payment{})
	copy(ps[i+1:], ps[i:])
	ps[i] = p
	m.payments[p.LoanID] = ps

	if p.IdempotencyKey != "" {
		m.idempotency[p.IdempotencyKey] = true
	}
	return nil
}

func (m *Memory) Load(_ context.Context, loanID generic.LoanID) ([]generic.Payment, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.loadLocked(loanID), nil
}

func (m *Memory) loadLocked(loanID generic.LoanID) []generic.Payment {
	result := make([]generic.Payment, len(m.payments[loanID]))
	copy(result, m.payments[loanID])
	return result
}

func (m *Memory) LoadRange(_ context.Context, loanID generic.LoanID, from, to generic.TimePoint) ([]generic.Payment, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.rangeLocked(loanID, from, to), nil
}

func (m *Memory) rangeLocked(loanID generic.LoanID, from, to generic.TimePoint) []generic.Payment {
	var result []generic.Payment
	for _, p := range m.payments[loanID] {
		if from.BeforeOrEqual(p.PaidAt) && p.PaidAt.BeforeOrEqual(to) {
			result = append(result, p)
		}
	}
	return result
}

func (m *Memory) Exists(_ context.Context, idempotencyKey string) (bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.idempotency[idempotencyKey], nil
}

// =============================================================================
// TRANSACTIONAL MEMORY STORE
// =============================================================================

// TxMemory wraps Memory with transaction support.
type TxMemory struct {
	*Memory
}

func NewTxMemory() *TxMemory {
	return &TxMemory{Memory: NewMemory()}
}

// WithTx executes fn within a transaction.
// For memory store, this is simulated with a snapshot + rollback on error.
func (tm *TxMemory) WithTx(_ context.Context, fn func(generic.Store) error) error {
	tm.mu.Lock()
	defer tm.mu.Unlock()

	snapshot := tm.snapshot()
	if err := fn(&txMemoryView{parent: tm.Memory}); err != nil {
		tm.restore(snapshot)
		return err
	}
	return nil
}

type memorySnapshot struct {
	payments    map[generic.LoanID][]generic.Payment
	idempotency map[string]bool
}

func (tm *TxMemory) snapshot() memorySnapshot {
	ps := make(map[generic.LoanID][]generic.Payment, len(tm.payments))
	for k, v := range tm.payments {
		ps[k] = append([]generic.Payment{}, v...)
	}
	idem := make(map[string]bool, len(tm.idempotency))
	for k, v := range tm.idempotency {
		idem[k] = v
	}
	return memorySnapshot{payments: ps, idempotency: idem}
}

func (tm *TxMemory) restore(s memorySnapshot) {
	tm.payments = s.payments
	tm.idempotency = s.idempotency
}

// txMemoryView runs with the parent's write lock already held.
type txMemoryView struct {
	parent *Memory
}

func (tv *txMemoryView) Append(_ context.Context, p generic.Payment) error {
	return tv.parent.appendLocked(p)
}

func (tv *txMemoryView) Load(_ context.Context, loanID generic.LoanID) ([]generic.Payment, error) {
	return tv.parent.loadLocked(loanID), nil
}

func (tv *txMemoryView) LoadRange(_ context.Context, loanID generic.LoanID, from, to generic.TimePoint) ([]generic.Payment, error) {
	return tv.parent.rangeLocked(loanID, from, to), nil
}

func (tv *txMemoryView) Exists(_ context.Context, idempotencyKey string) (bool, error) {
	return tv.parent.idempotency[idempotencyKey], nil
}

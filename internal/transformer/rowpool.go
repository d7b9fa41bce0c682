// Package transformer turns parsed features into positional rows for bulk copy.
// This file defines a pooled Row type used across encoder → loader to reduce
// heap churn on large collections.
package transformer

import "sync"

// Row is a pooled container holding a positional row for a bulk-copy session.
//
// Ownership contract:
//   - Exactly one goroutine "owns" a Row at a time.
//   - A Row may be passed downstream via channels (ownership transfer).
//   - The final consumer (the load stage) calls Free() after the copy session
//     has consumed r.V.
//
// During ctx cancellation the load stage may still hold rows the encoder has
// already handed over. Rows abandoned on such paths must use Drop(), never
// Free(), or a reused Row could be written while it is still being read.
type Row struct {
	V []any
	// Index is the 0-based position of the source feature in the features array.
	Index int
}

var rowPool sync.Pool

// GetRow returns a pooled Row with length colCount. All elements are nil.
func GetRow(colCount int) *Row {
	if v := rowPool.Get(); v != nil {
		r := v.(*Row)
		if cap(r.V) < colCount {
			r.V = make([]any, colCount)
		}
		r.V = r.V[:colCount]
		for i := range r.V {
			r.V[i] = nil
		}
		r.Index = 0
		return r
	}
	return &Row{V: make([]any, colCount)}
}

// Free returns the Row to the pool.
// Call this ONLY when you're sure no other goroutine can observe r or r.V.
func (r *Row) Free() {
	rowPool.Put(r)
}

// Drop discards the Row WITHOUT returning it to the pool.
func (r *Row) Drop() {
	r.V = nil
	r.Index = 0
}

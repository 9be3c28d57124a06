// Package batch runs a per-item function over a list, isolating failures so
// one bad item never aborts its siblings. Reconciliation and the notification
// scheduler both loop through it.
package batch

import "context"

type ItemError struct {
	Index int
	Err   error
}

type Result struct {
	Succeeded int
	Failed    []ItemError
}

func (r *Result) Errors() []string {
	msgs := make([]string, 0, len(r.Failed))
	for _, f := range r.Failed {
		msgs = append(msgs, f.Err.Error())
	}
	return msgs
}

// Run applies fn to each item sequentially. A failed item is recorded and the
// loop continues; ctx cancellation stops the loop early with the partial result.
func Run[T any](ctx context.Context, items []T, fn func(ctx context.Context, item T) error) *Result {
	res := &Result{}
	for i, item := range items {
		if err := ctx.Err(); err != nil {
			return res
		}
		if err := fn(ctx, item); err != nil {
			res.Failed = append(res.Failed, ItemError{Index: i, Err: err})
			continue
		}
		res.Succeeded++
	}
	return res
}

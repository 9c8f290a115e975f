// Package budget accounts the tokens spent assembling model context.
//
// An Allocator splits a fixed total into named buckets sized by an
// operation profile. Adds are checked against the owning bucket and
// rejected without mutation on overflow; Select greedily fills a bucket
// from candidate items by relevance.
package budget

import (
	"fmt"
	"sort"
	"sync"

	"github.com/strandworks/strand/store"
)

// Estimator converts text to a token count. Any estimator satisfies the
// contract as long as it is monotonically consistent: longer text never
// estimates lower than a prefix of itself.
type Estimator func(text string) int

// HeuristicEstimator approximates tokens as one per four bytes of text.
// Non-empty text always costs at least one token.
func HeuristicEstimator(text string) int {
	if len(text) == 0 {
		return 0
	}
	n := len(text) / 4
	if n == 0 {
		return 1
	}
	return n
}

// OperationKind selects a bucket profile.
type OperationKind string

const (
	// KindGeneration is an initial, from-scratch generation call.
	KindGeneration OperationKind = "generation"
	// KindEdit is an incremental edit to existing output.
	KindEdit OperationKind = "edit"
	// KindDiagnostic is an error-investigation call.
	KindDiagnostic OperationKind = "diagnostic"
)

// Bucket names shared by the built-in profiles.
const (
	BucketSystem  = "system"
	BucketHistory = "history"
	BucketContext = "context"
)

// Profile maps bucket names to their token capacities.
type Profile map[string]int

// ProfileFor splits a total budget into buckets for the given operation
// kind. Generation favors fresh context, edits favor history, diagnostics
// sit in between.
func ProfileFor(kind OperationKind, total int) Profile {
	switch kind {
	case KindEdit:
		return Profile{
			BucketSystem:  total * 10 / 100,
			BucketHistory: total * 55 / 100,
			BucketContext: total * 35 / 100,
		}
	case KindDiagnostic:
		return Profile{
			BucketSystem:  total * 10 / 100,
			BucketHistory: total * 40 / 100,
			BucketContext: total * 50 / 100,
		}
	default:
		return Profile{
			BucketSystem:  total * 10 / 100,
			BucketHistory: total * 25 / 100,
			BucketContext: total * 65 / 100,
		}
	}
}

// ErrUnknownBucket is returned for operations against a bucket the profile
// does not define.
type ErrUnknownBucket struct {
	Name string
}

func (e *ErrUnknownBucket) Error() string {
	return fmt.Sprintf("budget: unknown bucket: %s", e.Name)
}

// ErrBucketOverflow is returned when an add would exceed a bucket. The
// bucket is left unchanged.
type ErrBucketOverflow struct {
	Bucket    string
	Need      int
	Remaining int
}

func (e *ErrBucketOverflow) Error() string {
	return fmt.Sprintf("budget: bucket %s overflow: need %d tokens, %d remaining", e.Bucket, e.Need, e.Remaining)
}

type bucket struct {
	capacity int
	used     int
}

// Allocator tracks token spending per bucket. It is safe for concurrent use.
type Allocator struct {
	mu       sync.Mutex
	buckets  map[string]*bucket
	estimate Estimator
}

// Option configures an Allocator.
type Option func(*Allocator)

// WithEstimator replaces the default heuristic estimator.
func WithEstimator(fn Estimator) Option {
	return func(a *Allocator) {
		a.estimate = fn
	}
}

// NewAllocator creates an Allocator with the given bucket profile.
func NewAllocator(profile Profile, opts ...Option) *Allocator {
	a := &Allocator{
		buckets:  make(map[string]*bucket, len(profile)),
		estimate: HeuristicEstimator,
	}
	for name, capacity := range profile {
		a.buckets[name] = &bucket{capacity: capacity}
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Remaining returns the unspent tokens in a bucket.
func (a *Allocator) Remaining(name string) (int, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	b, ok := a.buckets[name]
	if !ok {
		return 0, &ErrUnknownBucket{Name: name}
	}
	return b.capacity - b.used, nil
}

// CanAdd reports whether text fits in the bucket without mutating it.
func (a *Allocator) CanAdd(name, text string) bool {
	a.mu.Lock()
	defer a.mu.Unlock()

	b, ok := a.buckets[name]
	if !ok {
		return false
	}
	return a.estimate(text) <= b.capacity-b.used
}

// Add charges text against the bucket. On overflow the bucket is left
// untouched and ErrBucketOverflow is returned.
func (a *Allocator) Add(name, text string) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	b, ok := a.buckets[name]
	if !ok {
		return &ErrUnknownBucket{Name: name}
	}

	cost := a.estimate(text)
	if remaining := b.capacity - b.used; cost > remaining {
		return &ErrBucketOverflow{Bucket: name, Need: cost, Remaining: remaining}
	}
	b.used += cost
	return nil
}

// Select greedily fills the bucket from candidate items: highest relevance
// first, smaller cost breaking ties, skipping items too large for the
// remaining space. Selected items are charged against the bucket and
// returned in selection order.
func (a *Allocator) Select(name string, items []store.Item) ([]store.Item, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	b, ok := a.buckets[name]
	if !ok {
		return nil, &ErrUnknownBucket{Name: name}
	}

	type costed struct {
		item store.Item
		cost int
	}
	candidates := make([]costed, 0, len(items))
	for _, item := range items {
		candidates = append(candidates, costed{item: item, cost: a.estimate(item.Content)})
	}
	sort.SliceStable(candidates, func(i, j int) bool {
		if candidates[i].item.Relevance != candidates[j].item.Relevance {
			return candidates[i].item.Relevance > candidates[j].item.Relevance
		}
		return candidates[i].cost < candidates[j].cost
	})

	var selected []store.Item
	for _, c := range candidates {
		if c.cost > b.capacity-b.used {
			continue
		}
		b.used += c.cost
		selected = append(selected, c.item)
	}
	return selected, nil
}

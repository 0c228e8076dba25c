// Package ordering computes bucket/order assignments for items on a board.
//
// A bucket is an ordered list of items. Within a bucket, orders are dense:
// after any operation here, each bucket touched holds orders 0..n-1 with no
// gaps or duplicates. Functions are pure; callers persist Result.Changed.
package ordering

import (
	"errors"
	"fmt"
	"sort"
)

var (
	ErrIndexOutOfRange   = errors.New("index out of range")
	ErrUnknownItem       = errors.New("unknown item")
	ErrUnknownBucket     = errors.New("unknown bucket")
	ErrDuplicateItem     = errors.New("item listed more than once")
	ErrDuplicatePosition = errors.New("two items share a bucket position")
	ErrNegativeOrder     = errors.New("order must be >= 0")
	ErrNotDense          = errors.New("bucket orders are not 0..n-1")
)

// Item is one orderable entry.
type Item struct {
	ID     string
	Bucket string
	Order  int
}

// Position addresses a slot in a bucket's sorted sub-list.
type Position struct {
	Bucket string
	Index  int
}

// Result is the full item list after an operation, in input order, plus the
// subset whose bucket or order changed.
type Result struct {
	Items   []Item
	Changed []Item
}

// Bucket returns the items of bucket sorted by order, ties broken by input
// position.
func Bucket(items []Item, bucket string) []Item {
	idx := bucketIndexes(items, bucket)
	out := make([]Item, len(idx))
	for i, j := range idx {
		out[i] = items[j]
	}
	return out
}

// bucketIndexes returns indexes into items for bucket, sorted by order.
func bucketIndexes(items []Item, bucket string) []int {
	var idx []int
	for i, it := range items {
		if it.Bucket == bucket {
			idx = append(idx, i)
		}
	}
	sort.SliceStable(idx, func(a, b int) bool {
		return items[idx[a]].Order < items[idx[b]].Order
	})
	return idx
}

// Move relocates the item at from to to and renumbers the affected buckets.
//
// The source index must be in [0, len(src)). The destination index must be
// in [0, len(dst)] when the buckets differ and in [0, len(src)-1] when they
// are the same. Moving an item onto its own position changes nothing.
func Move(items []Item, from, to Position) (Result, error) {
	out := make([]Item, len(items))
	copy(out, items)

	src := bucketIndexes(out, from.Bucket)
	if from.Index < 0 || from.Index >= len(src) {
		return Result{}, fmt.Errorf("%w: source %s[%d] of %d", ErrIndexOutOfRange, from.Bucket, from.Index, len(src))
	}

	if from.Bucket == to.Bucket {
		if to.Index < 0 || to.Index >= len(src) {
			return Result{}, fmt.Errorf("%w: destination %s[%d] of %d", ErrIndexOutOfRange, to.Bucket, to.Index, len(src))
		}
		if from.Index == to.Index {
			return Result{Items: out}, nil
		}
		moved := src[from.Index]
		src = remove(src, from.Index)
		src = insert(src, to.Index, moved)
		renumber(out, src, from.Bucket)
		return Result{Items: out, Changed: changed(items, out)}, nil
	}

	dst := bucketIndexes(out, to.Bucket)
	if to.Index < 0 || to.Index > len(dst) {
		return Result{}, fmt.Errorf("%w: destination %s[%d] of %d", ErrIndexOutOfRange, to.Bucket, to.Index, len(dst))
	}

	moved := src[from.Index]
	src = remove(src, from.Index)
	dst = insert(dst, to.Index, moved)
	renumber(out, src, from.Bucket)
	renumber(out, dst, to.Bucket)

	return Result{Items: out, Changed: changed(items, out)}, nil
}

// Append returns the order a new item gets at the end of bucket: one past
// the highest order present, or 0 for an empty bucket.
func Append(items []Item, bucket string) int {
	next := 0
	for _, it := range items {
		if it.Bucket == bucket && it.Order >= next {
			next = it.Order + 1
		}
	}
	return next
}

// Apply overlays caller-computed assignments onto items. Every assignment
// must name a known item at most once, a valid bucket and a non-negative
// order. The resulting board must not place two items at the same position,
// and every bucket an assignment moves an item into or out of must end up
// holding orders 0..n-1.
func Apply(items []Item, assignments []Item, validBucket func(string) bool) (Result, error) {
	out := make([]Item, len(items))
	copy(out, items)

	byID := make(map[string]int, len(items))
	for i, it := range items {
		byID[it.ID] = i
	}

	seen := make(map[string]struct{}, len(assignments))
	touched := make(map[string]struct{})
	for _, a := range assignments {
		i, ok := byID[a.ID]
		if !ok {
			return Result{}, fmt.Errorf("%w: %s", ErrUnknownItem, a.ID)
		}
		if _, dup := seen[a.ID]; dup {
			return Result{}, fmt.Errorf("%w: %s", ErrDuplicateItem, a.ID)
		}
		seen[a.ID] = struct{}{}
		if a.Order < 0 {
			return Result{}, fmt.Errorf("%w: %s has %d", ErrNegativeOrder, a.ID, a.Order)
		}
		if validBucket != nil && !validBucket(a.Bucket) {
			return Result{}, fmt.Errorf("%w: %s", ErrUnknownBucket, a.Bucket)
		}
		touched[items[i].Bucket] = struct{}{}
		touched[a.Bucket] = struct{}{}
		out[i].Bucket = a.Bucket
		out[i].Order = a.Order
	}

	type slot struct {
		bucket string
		order  int
	}
	taken := make(map[slot]string, len(out))
	for _, it := range out {
		s := slot{it.Bucket, it.Order}
		if other, ok := taken[s]; ok {
			return Result{}, fmt.Errorf("%w: %s and %s at %s[%d]", ErrDuplicatePosition, other, it.ID, it.Bucket, it.Order)
		}
		taken[s] = it.ID
	}

	var sub []Item
	for _, it := range out {
		if _, ok := touched[it.Bucket]; ok {
			sub = append(sub, it)
		}
	}
	if v := Check(sub); len(v) > 0 {
		return Result{}, fmt.Errorf("%w: %s", ErrNotDense, v[0])
	}

	return Result{Items: out, Changed: changed(items, out)}, nil
}

// Normalize renumbers every bucket to 0..n-1, keeping relative order.
func Normalize(items []Item) Result {
	out := make([]Item, len(items))
	copy(out, items)
	for _, b := range Buckets(out) {
		renumber(out, bucketIndexes(out, b), b)
	}
	return Result{Items: out, Changed: changed(items, out)}
}

// Violation describes a bucket whose orders are not exactly 0..n-1.
type Violation struct {
	Bucket string
	Orders []int
}

func (v Violation) String() string {
	return fmt.Sprintf("bucket %s has orders %v", v.Bucket, v.Orders)
}

// Check reports every bucket whose orders are not dense.
func Check(items []Item) []Violation {
	var out []Violation
	for _, b := range Buckets(items) {
		sub := Bucket(items, b)
		dense := true
		orders := make([]int, len(sub))
		for i, it := range sub {
			orders[i] = it.Order
			if it.Order != i {
				dense = false
			}
		}
		if !dense {
			out = append(out, Violation{Bucket: b, Orders: orders})
		}
	}
	return out
}

// Buckets returns the distinct buckets in items, sorted.
func Buckets(items []Item) []string {
	set := make(map[string]struct{})
	for _, it := range items {
		set[it.Bucket] = struct{}{}
	}
	out := make([]string, 0, len(set))
	for b := range set {
		out = append(out, b)
	}
	sort.Strings(out)
	return out
}

func renumber(items []Item, idx []int, bucket string) {
	for order, i := range idx {
		items[i].Bucket = bucket
		items[i].Order = order
	}
}

func changed(before, after []Item) []Item {
	var out []Item
	for i := range after {
		if before[i].Bucket != after[i].Bucket || before[i].Order != after[i].Order {
			out = append(out, after[i])
		}
	}
	return out
}

func remove(s []int, i int) []int {
	out := make([]int, 0, len(s)-1)
	out = append(out, s[:i]...)
	return append(out, s[i+1:]...)
}

func insert(s []int, i int, v int) []int {
	out := make([]int, 0, len(s)+1)
	out = append(out, s[:i]...)
	out = append(out, v)
	return append(out, s[i:]...)
}

// Package knapsack implements the greedy heuristics used to fill a disc or
// other fixed-size container with as many staged files as will fit.
//
// Sizes and capacity are unitless. Every solver is deterministic: ties in
// size are broken by key, and FirstFit walks keys in natural sort order.
package knapsack

import (
	"fmt"
	"sort"

	"github.com/juju/naturalsort"
	"github.com/samber/lo"

	errUtils "github.com/cedar-backup/cback/errors"
)

// Item is a key with a non-negative size.
type Item struct {
	Key  string
	Size int64
}

// Items is an item set keyed by Item.Key.
type Items map[string]Item

// NewItems builds an item set from a key to size map.
func NewItems(sizes map[string]int64) Items {
	items := make(Items, len(sizes))
	for key, size := range sizes {
		items[key] = Item{Key: key, Size: size}
	}
	return items
}

// Result lists the selected keys in selection order and their total size.
type Result struct {
	Keys []string
	Used int64
}

// Algorithm selects a subset of items whose total size does not exceed capacity.
type Algorithm func(items Items, capacity int64) Result

// Algorithm names accepted by Lookup.
const (
	First     = "first"
	Best      = "best"
	Worst     = "worst"
	Alternate = "alternate"
)

var algorithms = map[string]Algorithm{
	First:     FirstFit,
	Best:      BestFit,
	Worst:     WorstFit,
	Alternate: AlternateFit,
}

// Lookup returns the algorithm registered under name.
func Lookup(name string) (Algorithm, error) {
	alg, ok := algorithms[name]
	if !ok {
		return nil, fmt.Errorf("%w: '%s' (expected one of %v)", errUtils.ErrUnknownAlgorithm, name, Names())
	}
	return alg, nil
}

// Names returns the registered algorithm names in sorted order.
func Names() []string {
	names := lo.Keys(algorithms)
	sort.Strings(names)
	return names
}

// filler tracks the remaining capacity while items are offered one by one.
// Items that do not fit are skipped; the scan never stops early, so zero-size
// items are always taken.
type filler struct {
	remaining int64
	result    Result
}

func newFiller(capacity int64) *filler {
	return &filler{
		remaining: max(capacity, 0),
		result:    Result{Keys: []string{}},
	}
}

func (f *filler) offer(item Item) {
	if item.Size > f.remaining {
		return
	}
	f.result.Keys = append(f.result.Keys, item.Key)
	f.result.Used += item.Size
	f.remaining -= item.Size
}

// FirstFit takes items in natural key order, skipping any that do not fit.
func FirstFit(items Items, capacity int64) Result {
	keys := lo.Keys(items)
	naturalsort.Sort(keys)

	f := newFiller(capacity)
	for _, key := range keys {
		f.offer(items[key])
	}
	return f.result
}

// BestFit takes items from largest to smallest, so each pick is the largest
// remaining item that still fits. It usually reaches the best utilization
// with the fewest items.
func BestFit(items Items, capacity int64) Result {
	f := newFiller(capacity)
	for _, item := range sortedDescending(items) {
		f.offer(item)
	}
	return f.result
}

// WorstFit takes items from smallest to largest, favouring the number of
// items over utilization.
func WorstFit(items Items, capacity int64) Result {
	f := newFiller(capacity)
	for _, item := range sortedAscending(items) {
		f.offer(item)
	}
	return f.result
}

// AlternateFit splits the ascending item list into a small half and a large
// half and alternates between the smallest remaining small item and the
// largest remaining large item.
func AlternateFit(items Items, capacity int64) Result {
	sorted := sortedAscending(items)
	front := sorted[:len(sorted)/2]
	back := lo.Reverse(append([]Item(nil), sorted[len(sorted)/2:]...))

	f := newFiller(capacity)
	for i, j := 0, 0; i < len(front) || j < len(back); {
		if i < len(front) {
			f.offer(front[i])
			i++
		}
		if j < len(back) {
			f.offer(back[j])
			j++
		}
	}
	return f.result
}

func sortedAscending(items Items) []Item {
	list := lo.Values(items)
	sort.Slice(list, func(i, j int) bool {
		if list[i].Size != list[j].Size {
			return list[i].Size < list[j].Size
		}
		return list[i].Key < list[j].Key
	})
	return list
}

func sortedDescending(items Items) []Item {
	list := lo.Values(items)
	sort.Slice(list, func(i, j int) bool {
		if list[i].Size != list[j].Size {
			return list[i].Size > list[j].Size
		}
		return list[i].Key < list[j].Key
	})
	return list
}

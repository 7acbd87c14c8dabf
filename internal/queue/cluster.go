package queue

import (
	"cmp"
	"slices"
)

// Split partitions items into n contiguous parts. Part i (counting down from n) takes
// ceil(remaining/i) items, so sizes never differ by more than one and larger parts come
// first. When n exceeds len(items) the trailing parts are empty. n <= 0 yields nil.
func Split[T any](items []T, n int) [][]T {
	if n <= 0 {
		return nil
	}
	parts := make([][]T, 0, n)
	rest := items
	for i := n; i > 0; i-- {
		size := (len(rest) + i - 1) / i
		parts = append(parts, rest[:size:size])
		rest = rest[size:]
	}
	return parts
}

// AssignClusters shuffles a copy of items, splits it into maxClusters parts and stamps each
// item with its 1-based cluster number. The input slice is left untouched.
func AssignClusters(items []Item, maxClusters int, shuffle Shuffler) []Item {
	shuffled := slices.Clone(items)
	if shuffle != nil {
		shuffle(len(shuffled), func(i, j int) {
			shuffled[i], shuffled[j] = shuffled[j], shuffled[i]
		})
	}

	out := make([]Item, 0, len(shuffled))
	for idx, part := range Split(shuffled, maxClusters) {
		for _, item := range part {
			item.ClusterID = idx + 1
			out = append(out, item)
		}
	}
	return out
}

// ClusterSizes counts items per cluster; index 0 holds cluster 1.
func ClusterSizes(items []Item, maxClusters int) []int {
	if maxClusters <= 0 {
		return nil
	}
	sizes := make([]int, maxClusters)
	for _, item := range items {
		if item.ClusterID >= 1 && item.ClusterID <= maxClusters {
			sizes[item.ClusterID-1]++
		}
	}
	return sizes
}

// SortItems orders items by channel xmltv_id, then date. Ties keep their relative order.
func SortItems(items []Item) {
	slices.SortStableFunc(items, func(a, b Item) int {
		if c := cmp.Compare(a.Channel.XMLTVID, b.Channel.XMLTVID); c != 0 {
			return c
		}
		return cmp.Compare(a.Date, b.Date)
	})
}

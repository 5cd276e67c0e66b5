package feed

import "sort"

// Select returns the entries eligible for publishing: strictly newer than
// the watermark, strictly older than now, ascending by publish time, capped
// at max. The upper bound guards against clock-skewed or fraudulent future
// timestamps. Sorting happens before truncation so old entries buried at
// the tail of an unsorted feed are not lost. Ties keep feed order; the
// sort is stable because syndication formats offer no finer ordering key.
func Select(entries []Entry, watermark, now int64, max int) []Entry {
	var eligible []Entry
	for _, e := range entries {
		if e.PublishedAt > watermark && e.PublishedAt < now {
			eligible = append(eligible, e)
		}
	}

	sort.SliceStable(eligible, func(i, j int) bool {
		return eligible[i].PublishedAt < eligible[j].PublishedAt
	})

	if max >= 0 && len(eligible) > max {
		eligible = eligible[:max]
	}
	return eligible
}

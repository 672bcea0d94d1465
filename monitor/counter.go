package monitor

import (
	"sort"

	"warden/core"
)

// orderedCounter counts keys and remembers the order each key was first seen,
// so equal counts sort in first-seen order
type orderedCounter struct {
	keys   []string
	counts map[string]int
}

func newOrderedCounter() *orderedCounter {
	return &orderedCounter{counts: make(map[string]int)}
}

func (c *orderedCounter) add(key string) {
	if _, ok := c.counts[key]; !ok {
		c.keys = append(c.keys, key)
	}
	c.counts[key]++
}

// top returns at most n entries, highest count first
func (c *orderedCounter) top(n int) []core.CountEntry {
	entries := make([]core.CountEntry, len(c.keys))
	for i, k := range c.keys {
		entries[i] = core.CountEntry{Key: k, Count: c.counts[k]}
	}
	sort.SliceStable(entries, func(i, j int) bool {
		return entries[i].Count > entries[j].Count
	})
	if len(entries) > n {
		entries = entries[:n]
	}
	return entries
}

// endpointCounter tracks requests and blocks per endpoint in first-seen order
type endpointCounter struct {
	order []string
	stats map[string]*core.EndpointStat
}

func newEndpointCounter() *endpointCounter {
	return &endpointCounter{stats: make(map[string]*core.EndpointStat)}
}

func (c *endpointCounter) get(endpoint string) *core.EndpointStat {
	s, ok := c.stats[endpoint]
	if !ok {
		s = &core.EndpointStat{Endpoint: endpoint}
		c.stats[endpoint] = s
		c.order = append(c.order, endpoint)
	}
	return s
}

func (c *endpointCounter) request(endpoint string) { c.get(endpoint).Requests++ }
func (c *endpointCounter) blocked(endpoint string) { c.get(endpoint).Blocked++ }

// top returns at most n endpoints, most requests first
func (c *endpointCounter) top(n int) []core.EndpointStat {
	out := make([]core.EndpointStat, len(c.order))
	for i, e := range c.order {
		out[i] = *c.stats[e]
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Requests > out[j].Requests
	})
	if len(out) > n {
		out = out[:n]
	}
	return out
}

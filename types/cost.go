package types

import (
	"fmt"
	"strings"
)

// CostTable accumulates billing amounts keyed by region:usage_type.
// Insertion order is preserved so that substring matching stays
// deterministic ("first match wins" over table order).
type CostTable struct {
	keys    []string
	amounts map[string]float64
}

// NewCostTable returns an empty table.
func NewCostTable() *CostTable {
	return &CostTable{amounts: make(map[string]float64)}
}

// Add accumulates an amount under region:usageType.
func (t *CostTable) Add(region, usageType string, amount float64) {
	key := fmt.Sprintf("%s:%s", region, usageType)
	if _, ok := t.amounts[key]; !ok {
		t.keys = append(t.keys, key)
	}
	t.amounts[key] += amount
}

// Len returns the number of distinct line items.
func (t *CostTable) Len() int {
	return len(t.keys)
}

// Match scans line items in insertion order and returns the first whose
// key contains both the region and the host family as substrings.
// Substring containment can false-positive when families are prefixes of
// each other (c5 vs c5n); kept for compatibility with upstream behavior.
func (t *CostTable) Match(region, family string) (float64, bool) {
	for _, key := range t.keys {
		if strings.Contains(key, region) && strings.Contains(key, family) {
			return t.amounts[key], true
		}
	}
	return 0, false
}

// Keys returns the line-item keys in insertion order.
func (t *CostTable) Keys() []string {
	out := make([]string, len(t.keys))
	copy(out, t.keys)
	return out
}

// Amount returns the accumulated amount for an exact key.
func (t *CostTable) Amount(key string) float64 {
	return t.amounts[key]
}

package storage

import (
	"encoding/json"
	"strconv"
)

// QueryBuilder accumulates equality filters over one (driver,
// collection) pair and executes them with a full key scan. Select and
// OrderBy are accepted for forward compatibility but the reference
// drivers do not honor them.
type QueryBuilder struct {
	driver     Driver
	collection string
	conditions map[string]string
	limit      int
	fields     []string
	orderField string
	orderDesc  bool
}

// NewQuery binds a builder to a driver and collection.
func NewQuery(driver Driver, collection string) *QueryBuilder {
	return &QueryBuilder{
		driver:     driver,
		collection: collection,
		conditions: make(map[string]string),
	}
}

// Where adds an equality filter; repeated calls AND conjunctively.
func (q *QueryBuilder) Where(field, value string) *QueryBuilder {
	q.conditions[field] = value
	return q
}

// Select records a field projection. No-op in the reference drivers.
func (q *QueryBuilder) Select(fields ...string) *QueryBuilder {
	q.fields = fields
	return q
}

// OrderBy records a sort request. No-op in the reference drivers.
func (q *QueryBuilder) OrderBy(field string, descending bool) *QueryBuilder {
	q.orderField = field
	q.orderDesc = descending
	return q
}

// Limit caps the number of records GetAll returns.
func (q *QueryBuilder) Limit(n int) *QueryBuilder {
	q.limit = n
	return q
}

// matches parses data as a flat JSON object and checks every condition,
// short-circuiting on the first mismatch.
func (q *QueryBuilder) matches(data string) bool {
	if len(q.conditions) == 0 {
		return true
	}
	var doc map[string]any
	if err := json.Unmarshal([]byte(data), &doc); err != nil {
		return false
	}
	for field, want := range q.conditions {
		value, ok := doc[field]
		if !ok || stringifyValue(value) != want {
			return false
		}
	}
	return true
}

// Get returns the first stored record satisfying all filters, or "".
func (q *QueryBuilder) Get() string {
	for _, key := range q.driver.ListKeys(q.collection) {
		data := q.driver.Retrieve(q.collection, key)
		if data != "" && q.matches(data) {
			return data
		}
	}
	return ""
}

// GetAll returns every matching record, at most limit if set.
func (q *QueryBuilder) GetAll() []string {
	var out []string
	for _, key := range q.driver.ListKeys(q.collection) {
		data := q.driver.Retrieve(q.collection, key)
		if data == "" || !q.matches(data) {
			continue
		}
		out = append(out, data)
		if q.limit > 0 && len(out) >= q.limit {
			break
		}
	}
	return out
}

// Exists reports whether at least one record matches.
func (q *QueryBuilder) Exists() bool {
	return q.Get() != ""
}

// Store proxies an upsert to the bound driver.
func (q *QueryBuilder) Store(key, data string) bool {
	return q.driver.Store(q.collection, key, data)
}

// Remove deletes every matching record; true iff at least one was
// removed.
func (q *QueryBuilder) Remove() bool {
	removed := false
	for _, key := range q.driver.ListKeys(q.collection) {
		data := q.driver.Retrieve(q.collection, key)
		if data == "" || !q.matches(data) {
			continue
		}
		if q.driver.Remove(q.collection, key) {
			removed = true
		}
	}
	return removed
}

// stringifyValue renders a JSON value the way filters are written:
// numbers without exponent notation, booleans as true/false.
func stringifyValue(v any) string {
	switch t := v.(type) {
	case string:
		return t
	case bool:
		return strconv.FormatBool(t)
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	case nil:
		return ""
	default:
		raw, err := json.Marshal(t)
		if err != nil {
			return ""
		}
		return string(raw)
	}
}

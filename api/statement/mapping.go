package statement

import "strings"

// headerHeuristics drive auto-mapping: evaluated in this order, first
// matching header wins per field, and a header already claimed by an
// earlier field is never reassigned. Operators rely on these defaults
// being predictable, so the order is part of the contract.
var headerHeuristics = []struct {
	field    string
	keywords []string
}{
	{FieldOccurredAt, []string{"date", "occur"}},
	{FieldTxnID, []string{"txn", "transaction", "id"}},
	{FieldMsisdn, []string{"msisdn", "phone", "mobile"}},
	{FieldAmount, []string{"amount", "amt"}},
	{FieldReference, []string{"reference", "ref", "narration", "remarks"}},
}

// Mapping assigns detected column headers to logical fields. The one
// invariant it defends at all times, auto-mapped or user-overridden, is
// one-to-one: no two fields share a column.
type Mapping struct {
	byField map[string]string
}

func NewMapping() *Mapping {
	return &Mapping{byField: make(map[string]string)}
}

// AutoMap proposes a mapping from the detected headers using
// case-insensitive substring heuristics. The result is partial when no
// header matches a field.
func AutoMap(headers []string) *Mapping {
	m := NewMapping()
	claimed := make(map[string]bool, len(headers))
	for _, h := range headerHeuristics {
		for _, header := range headers {
			if claimed[header] {
				continue
			}
			lc := strings.ToLower(header)
			matched := false
			for _, kw := range h.keywords {
				if strings.Contains(lc, kw) {
					matched = true
					break
				}
			}
			if matched {
				m.byField[h.field] = header
				claimed[header] = true
				break
			}
		}
	}
	return m
}

// Set assigns a column to a field, first clearing any other field that
// currently points at the same column. An empty column unassigns the field.
func (m *Mapping) Set(field, column string) {
	if column == "" {
		delete(m.byField, field)
		return
	}
	for f, c := range m.byField {
		if c == column && f != field {
			delete(m.byField, f)
		}
	}
	m.byField[field] = column
}

// Column returns the column assigned to a field, if any.
func (m *Mapping) Column(field string) (string, bool) {
	c, ok := m.byField[field]
	return c, ok
}

// Columns returns a copy of the field-to-column assignments.
func (m *Mapping) Columns() map[string]string {
	out := make(map[string]string, len(m.byField))
	for f, c := range m.byField {
		out[f] = c
	}
	return out
}

// MissingFields lists required fields that still lack a column.
func (m *Mapping) MissingFields() []string {
	var missing []string
	for _, f := range RequiredFields {
		if _, ok := m.byField[f]; !ok {
			missing = append(missing, f)
		}
	}
	return missing
}

// Complete reports whether every required field has a column assigned.
func (m *Mapping) Complete() bool {
	return len(m.MissingFields()) == 0
}

// FieldSpecs materializes the mapping into the per-pass processing
// configuration, one spec per logical field in declaration order. masks
// picks the mask per field; fields it omits fall back to the field's
// first registry option. Unmapped fields carry a nil ColumnKey so the
// processor records them as missing rather than skipping them.
func (m *Mapping) FieldSpecs(masks map[string]string) []FieldSpec {
	specs := make([]FieldSpec, 0, len(AllFields))
	for _, f := range AllFields {
		maskID := masks[f]
		if maskID == "" {
			if opts := maskOptionsByField[f]; len(opts) > 0 {
				maskID = opts[0]
			}
		}
		spec := FieldSpec{Key: f, MaskID: maskID}
		if col, ok := m.byField[f]; ok {
			c := col
			spec.ColumnKey = &c
		}
		specs = append(specs, spec)
	}
	return specs
}

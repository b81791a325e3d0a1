package statement

import "sort"

// autoMatchMinSegments is the advisory threshold: a reference with at
// least this many non-empty dot segments names an ikimina and is likely
// to auto-match downstream. This is a structural heuristic only; it is
// deliberately not verified against the registry here, so the preview
// step stays cheap and cannot fail on a lookup.
const autoMatchMinSegments = 3

// Analyze computes the pre-import diagnostics over the full processed
// batch, valid and invalid rows alike, so the operator sees whole-file
// feedback before committing. It never mutates rows and must be re-run
// whenever the mapping or masks change.
func Analyze(rows []ProcessedRow) BatchFeedback {
	fb := BatchFeedback{DuplicateTxnIDs: []string{}}

	counts := make(map[string]int, len(rows))
	for _, r := range rows {
		if r.Record.TxnID != "" {
			counts[r.Record.TxnID]++
		}
	}
	for id, n := range counts {
		if n > 1 {
			fb.DuplicateTxnIDs = append(fb.DuplicateTxnIDs, id)
			// every row sharing the id counts, not just the extras
			fb.DuplicateRowCount += n
		}
	}
	sort.Strings(fb.DuplicateTxnIDs)

	for _, r := range rows {
		if r.Record.Reference == nil || *r.Record.Reference == "" {
			fb.MissingReferenceCount++
		} else if len(referenceSegments(*r.Record.Reference)) >= autoMatchMinSegments {
			fb.AutoMatchCount++
		}
		if c, ok := r.Cells[FieldMsisdn]; ok && !c.Valid {
			fb.InvalidMsisdnCount++
		}
		if c, ok := r.Cells[FieldOccurredAt]; ok && !c.Valid {
			fb.InvalidDateCount++
		}
	}
	return fb
}

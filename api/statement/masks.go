package statement

import (
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// Mask identifiers. A mask is a pure validation-and-normalization rule for
// one field's raw cell value; the variant configuration picks the default
// per field and the operator can override it per import.
const (
	MaskDateISO         = "date.iso"
	MaskDateDayFirst    = "date.dayfirst"
	MaskDateMonthFirst  = "date.monthfirst"
	MaskPhoneRwanda     = "phone.rw"
	MaskAmountPositive  = "amount.positive"
	MaskCodeFree        = "code.free"
	MaskTextFree        = "text.free"
	MaskReferenceToken  = "reference.token"
	MaskReferenceStrict = "reference.strict"
)

// MaskResult is the outcome of applying a mask. Errors are signaled via
// Valid=false so callers can keep processing the rest of the row and batch.
type MaskResult struct {
	Value  interface{}
	Valid  bool
	Reason string
}

// MaskDefinition is an immutable named rule from the registry.
type MaskDefinition struct {
	ID    string
	Label string
	Apply func(raw *string) MaskResult
}

func maskOK(v interface{}) MaskResult {
	return MaskResult{Value: v, Valid: true}
}

func maskFail(raw *string, reason string) MaskResult {
	var v interface{}
	if raw != nil {
		v = *raw
	}
	return MaskResult{Value: v, Valid: false, Reason: reason}
}

// isoDateLayouts are always accepted by every date mask.
var isoDateLayouts = []string{
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	"2006-01-02",
}

// ambiguousDateRe matches numeric dates like 02/01/2024, 2-1-24 or
// 02.01.2024 15:30 whose day/month order depends on the statement source.
var ambiguousDateRe = regexp.MustCompile(`^(\d{1,2})[/\-.](\d{1,2})[/\-.](\d{2,4})(?:[ T](\d{1,2}):(\d{2})(?::(\d{2}))?)?$`)

func atoi(s string) int {
	n := 0
	for _, c := range s {
		n = n*10 + int(c-'0')
	}
	return n
}

func parseAmbiguousDate(s string, dayFirst bool) (time.Time, bool) {
	m := ambiguousDateRe.FindStringSubmatch(s)
	if m == nil {
		return time.Time{}, false
	}
	a, b := atoi(m[1]), atoi(m[2])
	year := atoi(m[3])
	if len(m[3]) == 2 {
		year += 2000
	}
	day, month := a, b
	if !dayFirst {
		day, month = b, a
	}
	hour, min, sec := 0, 0, 0
	if m[4] != "" {
		hour, min = atoi(m[4]), atoi(m[5])
		if m[6] != "" {
			sec = atoi(m[6])
		}
	}
	if month < 1 || month > 12 || day < 1 || day > 31 || hour > 23 || min > 59 || sec > 59 {
		return time.Time{}, false
	}
	t := time.Date(year, time.Month(month), day, hour, min, sec, 0, time.UTC)
	// time.Date normalizes overflow (e.g. Feb 30); reject anything that shifted
	if t.Day() != day || t.Month() != time.Month(month) || t.Year() != year {
		return time.Time{}, false
	}
	return t, true
}

// dateMaskISO accepts ISO-8601 forms only; ambiguous numeric dates are
// rejected so that SMS-derived timestamps cannot be silently reordered.
func dateMaskISO(raw *string) MaskResult {
	if raw == nil || strings.TrimSpace(*raw) == "" {
		return maskFail(raw, "date is required")
	}
	s := strings.TrimSpace(*raw)
	for _, layout := range isoDateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return maskOK(t.UTC().Format(time.RFC3339))
		}
	}
	return maskFail(raw, fmt.Sprintf("unrecognized date %q", s))
}

func dateMask(dayFirst bool) func(raw *string) MaskResult {
	return func(raw *string) MaskResult {
		if raw == nil || strings.TrimSpace(*raw) == "" {
			return maskFail(raw, "date is required")
		}
		s := strings.TrimSpace(*raw)
		for _, layout := range isoDateLayouts {
			if t, err := time.Parse(layout, s); err == nil {
				return maskOK(t.UTC().Format(time.RFC3339))
			}
		}
		if t, ok := parseAmbiguousDate(s, dayFirst); ok {
			return maskOK(t.Format(time.RFC3339))
		}
		return maskFail(raw, fmt.Sprintf("unrecognized date %q", s))
	}
}

// msisdnRe accepts Rwandan mobile numbers in local (07X...), national
// (2507X...) and international (+2507X...) form; 72/73/78/79 prefixes.
var msisdnRe = regexp.MustCompile(`^(?:\+?250|0)?(7[2389]\d{7})$`)

func phoneMaskRwanda(raw *string) MaskResult {
	if raw == nil || strings.TrimSpace(*raw) == "" {
		return maskFail(raw, "phone number is required")
	}
	s := strings.TrimSpace(*raw)
	s = strings.NewReplacer(" ", "", "-", "", "(", "", ")", "").Replace(s)
	m := msisdnRe.FindStringSubmatch(s)
	if m == nil {
		return maskFail(raw, fmt.Sprintf("%q is not a recognized Rwandan mobile number", strings.TrimSpace(*raw)))
	}
	return maskOK("+250" + m[1])
}

func amountMaskPositive(raw *string) MaskResult {
	if raw == nil || strings.TrimSpace(*raw) == "" {
		return maskFail(raw, "amount is required")
	}
	s := strings.TrimSpace(*raw)
	s = strings.ReplaceAll(s, ",", "")
	s = strings.ReplaceAll(s, " ", "")
	d, err := decimal.NewFromString(s)
	if err != nil {
		return maskFail(raw, fmt.Sprintf("amount %q is not numeric", strings.TrimSpace(*raw)))
	}
	if d.Sign() <= 0 {
		return maskFail(raw, "amount must be greater than zero")
	}
	return maskOK(d)
}

func codeMaskFree(raw *string) MaskResult {
	if raw == nil || strings.TrimSpace(*raw) == "" {
		return maskFail(raw, "value is required")
	}
	return maskOK(strings.TrimSpace(*raw))
}

// textMaskFree trims and treats empty as absence, never as an error.
func textMaskFree(raw *string) MaskResult {
	if raw == nil {
		return maskOK(nil)
	}
	s := strings.TrimSpace(*raw)
	if s == "" {
		return maskOK(nil)
	}
	return maskOK(s)
}

// referenceSegments splits a reference token and counts non-empty
// dot-delimited segments.
func referenceSegments(ref string) []string {
	parts := strings.Split(ref, ".")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}

// referenceMaskStrict enforces the DISTRICT.SACCO.IKIMINA[.MEMBER] grammar
// on present values; absence stays valid since the reference is optional.
func referenceMaskStrict(raw *string) MaskResult {
	if raw == nil {
		return maskOK(nil)
	}
	s := strings.TrimSpace(*raw)
	if s == "" {
		return maskOK(nil)
	}
	parts := strings.Split(s, ".")
	if len(parts) != 3 && len(parts) != 4 {
		return maskFail(raw, "reference must be DISTRICT.SACCO.IKIMINA or DISTRICT.SACCO.IKIMINA.MEMBER")
	}
	for _, p := range parts {
		if strings.TrimSpace(p) == "" {
			return maskFail(raw, "reference has an empty segment")
		}
	}
	return maskOK(s)
}

var maskRegistry = map[string]MaskDefinition{
	MaskDateISO:         {ID: MaskDateISO, Label: "Date (ISO-8601)", Apply: dateMaskISO},
	MaskDateDayFirst:    {ID: MaskDateDayFirst, Label: "Date (day first)", Apply: dateMask(true)},
	MaskDateMonthFirst:  {ID: MaskDateMonthFirst, Label: "Date (month first)", Apply: dateMask(false)},
	MaskPhoneRwanda:     {ID: MaskPhoneRwanda, Label: "Mobile number (Rwanda)", Apply: phoneMaskRwanda},
	MaskAmountPositive:  {ID: MaskAmountPositive, Label: "Amount (positive)", Apply: amountMaskPositive},
	MaskCodeFree:        {ID: MaskCodeFree, Label: "Code (free text)", Apply: codeMaskFree},
	MaskTextFree:        {ID: MaskTextFree, Label: "Free text", Apply: textMaskFree},
	MaskReferenceToken:  {ID: MaskReferenceToken, Label: "Reference (pass-through)", Apply: textMaskFree},
	MaskReferenceStrict: {ID: MaskReferenceStrict, Label: "Reference (strict grammar)", Apply: referenceMaskStrict},
}

// maskOptionsByField lists the selectable masks per logical field, first
// entry being the built-in default.
var maskOptionsByField = map[string][]string{
	FieldOccurredAt: {MaskDateDayFirst, MaskDateMonthFirst, MaskDateISO},
	FieldTxnID:      {MaskCodeFree},
	FieldMsisdn:     {MaskPhoneRwanda},
	FieldAmount:     {MaskAmountPositive},
	FieldReference:  {MaskReferenceToken, MaskReferenceStrict, MaskTextFree},
}

// MaskOptions returns the ordered mask choices for a logical field.
func MaskOptions(fieldKey string) []MaskDefinition {
	ids := maskOptionsByField[fieldKey]
	defs := make([]MaskDefinition, 0, len(ids))
	for _, id := range ids {
		defs = append(defs, maskRegistry[id])
	}
	return defs
}

// ApplyMask runs the named mask against a raw cell. An unknown mask id
// yields an invalid result rather than an error so row processing can
// continue over the rest of the batch.
func ApplyMask(maskID string, raw *string) MaskResult {
	def, ok := maskRegistry[maskID]
	if !ok {
		return maskFail(raw, fmt.Sprintf("unknown mask %q", maskID))
	}
	return def.Apply(raw)
}

package statement

import (
	"fmt"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
)

func sp(s string) *string { return &s }

func TestDateMasks(t *testing.T) {
	cases := []struct {
		name   string
		maskID string
		in     *string
		valid  bool
		want   string
	}{
		{"iso date", MaskDateISO, sp("2024-09-01"), true, "2024-09-01T00:00:00Z"},
		{"rfc3339", MaskDateDayFirst, sp("2024-09-01T10:30:00Z"), true, "2024-09-01T10:30:00Z"},
		{"iso datetime space", MaskDateMonthFirst, sp("2024-09-01 10:30:00"), true, "2024-09-01T10:30:00Z"},
		{"day first", MaskDateDayFirst, sp("02/03/2024"), true, "2024-03-02T00:00:00Z"},
		{"month first", MaskDateMonthFirst, sp("02/03/2024"), true, "2024-02-03T00:00:00Z"},
		{"day first with time", MaskDateDayFirst, sp("02-03-2024 14:05"), true, "2024-03-02T14:05:00Z"},
		{"two digit year", MaskDateDayFirst, sp("2.3.24"), true, "2024-03-02T00:00:00Z"},
		{"impossible day", MaskDateDayFirst, sp("30/02/2024"), false, ""},
		{"impossible month", MaskDateMonthFirst, sp("30/02/2024"), false, ""},
		{"garbage", MaskDateDayFirst, sp("yesterday"), false, ""},
		{"missing", MaskDateDayFirst, nil, false, ""},
		{"empty", MaskDateDayFirst, sp(""), false, ""},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			res := ApplyMask(tc.maskID, tc.in)
			assert.Equal(t, tc.valid, res.Valid)
			if tc.valid {
				assert.Equal(t, tc.want, res.Value)
				assert.Empty(t, res.Reason)
			} else {
				assert.NotEmpty(t, res.Reason)
			}
		})
	}
}

func TestPhoneMaskRwanda(t *testing.T) {
	cases := []struct {
		in    string
		valid bool
		want  string
	}{
		{"0788123456", true, "+250788123456"},
		{"0722123456", true, "+250722123456"},
		{"0798123456", true, "+250798123456"},
		{"250788123456", true, "+250788123456"},
		{"+250788123456", true, "+250788123456"},
		{"078 812 3456", true, "+250788123456"},
		{"078-812-3456", true, "+250788123456"},
		{"0748123456", false, ""}, // 074 is not a recognized prefix
		{"078812345", false, ""},  // too short
		{"07881234567", false, ""},
		{"not-a-phone", false, ""},
	}
	for _, tc := range cases {
		t.Run(tc.in, func(t *testing.T) {
			res := ApplyMask(MaskPhoneRwanda, &tc.in)
			assert.Equal(t, tc.valid, res.Valid)
			if tc.valid {
				assert.Equal(t, tc.want, res.Value)
			}
		})
	}
	assert.False(t, ApplyMask(MaskPhoneRwanda, nil).Valid)
}

func TestAmountMask(t *testing.T) {
	cases := []struct {
		in    string
		valid bool
		want  string
	}{
		{"5000", true, "5000"},
		{"5,000", true, "5000"},
		{"1,234,567.89", true, "1234567.89"},
		{"12 500", true, "12500"},
		{"0.01", true, "0.01"},
		{"-100", false, ""},
		{"0", false, ""},
		{"0.00", false, ""},
		{"12abc", false, ""},
		{"", false, ""},
	}
	for _, tc := range cases {
		t.Run(tc.in, func(t *testing.T) {
			res := ApplyMask(MaskAmountPositive, &tc.in)
			assert.Equal(t, tc.valid, res.Valid)
			if tc.valid {
				d, ok := res.Value.(decimal.Decimal)
				assert.True(t, ok)
				assert.Equal(t, tc.want, d.String())
			}
		})
	}
}

func TestReferenceMasks(t *testing.T) {
	// pass-through mask: absence normalizes to nil, never an error
	res := ApplyMask(MaskReferenceToken, nil)
	assert.True(t, res.Valid)
	assert.Nil(t, res.Value)
	res = ApplyMask(MaskReferenceToken, sp("  "))
	assert.True(t, res.Valid)
	assert.Nil(t, res.Value)
	res = ApplyMask(MaskReferenceToken, sp(" anything goes "))
	assert.True(t, res.Valid)
	assert.Equal(t, "anything goes", res.Value)

	// strict mask: absent is fine, present-but-malformed is not
	strict := []struct {
		in    *string
		valid bool
	}{
		{nil, true},
		{sp(""), true},
		{sp("KIGALI.SACCOX.IKIMINA1"), true},
		{sp("KIGALI.SACCOX.IKIMINA1.M001"), true},
		{sp("KIGALI.SACCOX"), false},
		{sp("A.B.C.D.E"), false},
		{sp("KIGALI..IKIMINA1"), false},
	}
	for _, tc := range strict {
		label := "<nil>"
		if tc.in != nil {
			label = *tc.in
		}
		t.Run(label, func(t *testing.T) {
			assert.Equal(t, tc.valid, ApplyMask(MaskReferenceStrict, tc.in).Valid)
		})
	}
}

func TestUnknownMask(t *testing.T) {
	res := ApplyMask("no.such.mask", sp("x"))
	assert.False(t, res.Valid)
	assert.Contains(t, res.Reason, "no.such.mask")
}

// Normalization is idempotent: re-applying a mask to the string form of
// its own output yields the same value and stays valid.
func TestMaskRoundTrip(t *testing.T) {
	cases := []struct {
		maskID string
		in     string
	}{
		{MaskDateDayFirst, "02/03/2024"},
		{MaskDateMonthFirst, "02/03/2024"},
		{MaskDateISO, "2024-09-01"},
		{MaskPhoneRwanda, "0788123456"},
		{MaskAmountPositive, "1,250.50"},
		{MaskReferenceToken, "KIGALI.SACCOX.IKIMINA1"},
		{MaskReferenceStrict, "KIGALI.SACCOX.IKIMINA1.M001"},
	}
	for _, tc := range cases {
		t.Run(tc.maskID+"/"+tc.in, func(t *testing.T) {
			first := ApplyMask(tc.maskID, &tc.in)
			assert.True(t, first.Valid)
			norm := fmt.Sprintf("%v", first.Value)
			second := ApplyMask(tc.maskID, &norm)
			assert.True(t, second.Valid)
			assert.Equal(t, norm, fmt.Sprintf("%v", second.Value))
		})
	}
}

func TestMaskOptions(t *testing.T) {
	for _, f := range AllFields {
		opts := MaskOptions(f)
		assert.NotEmpty(t, opts, f)
		for _, o := range opts {
			assert.NotEmpty(t, o.ID)
			assert.NotEmpty(t, o.Label)
			assert.NotNil(t, o.Apply)
		}
	}
	// date field offers both ambiguous orderings
	ids := make([]string, 0)
	for _, o := range MaskOptions(FieldOccurredAt) {
		ids = append(ids, o.ID)
	}
	assert.Contains(t, ids, MaskDateDayFirst)
	assert.Contains(t, ids, MaskDateMonthFirst)
}

package statement

import (
	"os"

	"gopkg.in/yaml.v3"
)

// Variant names a statement source and the default mask per field for it.
// Variants are configuration, not user input: a deployment tunes them in
// variants.yaml and the operator only picks one by name.
type Variant struct {
	Name  string            `yaml:"name"`
	Label string            `yaml:"label"`
	Masks map[string]string `yaml:"masks"`
}

const DefaultVariant = "momo-rw"

// builtinVariants ship compiled in; a variants.yaml can add to or replace
// them. Mobile-money exports in Rwanda write dates day-first, generic bank
// exports commonly month-first, and the SMS parser emits ISO timestamps.
var builtinVariants = map[string]Variant{
	"momo-rw": {
		Name:  "momo-rw",
		Label: "Mobile money (Rwanda)",
		Masks: map[string]string{
			FieldOccurredAt: MaskDateDayFirst,
			FieldTxnID:      MaskCodeFree,
			FieldMsisdn:     MaskPhoneRwanda,
			FieldAmount:     MaskAmountPositive,
			FieldReference:  MaskReferenceToken,
		},
	},
	"bank-generic": {
		Name:  "bank-generic",
		Label: "Bank statement (generic)",
		Masks: map[string]string{
			FieldOccurredAt: MaskDateMonthFirst,
			FieldTxnID:      MaskCodeFree,
			FieldMsisdn:     MaskPhoneRwanda,
			FieldAmount:     MaskAmountPositive,
			FieldReference:  MaskReferenceToken,
		},
	},
	"sms-momo": {
		Name:  "sms-momo",
		Label: "Parsed mobile-money SMS",
		Masks: map[string]string{
			FieldOccurredAt: MaskDateISO,
			FieldTxnID:      MaskCodeFree,
			FieldMsisdn:     MaskPhoneRwanda,
			FieldAmount:     MaskAmountPositive,
			FieldReference:  MaskReferenceToken,
		},
	},
}

// VariantRegistry resolves variant names to their mask defaults.
type VariantRegistry struct {
	variants map[string]Variant
}

func NewVariantRegistry() *VariantRegistry {
	vs := make(map[string]Variant, len(builtinVariants))
	for k, v := range builtinVariants {
		vs[k] = v
	}
	return &VariantRegistry{variants: vs}
}

// LoadVariantFile merges variant definitions from a YAML file over the
// built-ins. Missing file is not an error; the built-ins stand.
func (r *VariantRegistry) LoadVariantFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return err
	}
	var doc struct {
		Variants []Variant `yaml:"variants"`
	}
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return err
	}
	for _, v := range doc.Variants {
		if v.Name != "" {
			r.variants[v.Name] = v
		}
	}
	return nil
}

// Masks returns the default mask-per-field for a variant name; unknown
// names fall back to the default variant.
func (r *VariantRegistry) Masks(name string) map[string]string {
	v, ok := r.variants[name]
	if !ok {
		v = r.variants[DefaultVariant]
	}
	out := make(map[string]string, len(v.Masks))
	for f, m := range v.Masks {
		out[f] = m
	}
	return out
}

// Names lists the registered variant names.
func (r *VariantRegistry) Names() []string {
	names := make([]string, 0, len(r.variants))
	for n := range r.variants {
		names = append(names, n)
	}
	return names
}

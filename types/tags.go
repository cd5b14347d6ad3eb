package types

// UnknownTagValue stands in for any tag key an instance does not carry.
// It appears verbatim in report columns and is excluded from printed
// per-tag summaries.
const UnknownTagValue = "Unknown"

// Tags is the free-form tag map attached to an instance.
// Keys are not guaranteed present; use Get for absent-key handling.
type Tags map[string]string

// Get returns the tag value or UnknownTagValue when the key is absent.
func (t Tags) Get(key string) string {
	if v, ok := t[key]; ok {
		return v
	}
	return UnknownTagValue
}

// Has reports whether the key is present.
func (t Tags) Has(key string) bool {
	_, ok := t[key]
	return ok
}

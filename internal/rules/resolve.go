package rules

// Resolve maps an already content-resolved rule value to a ValueRule. ok is
// false when the content resolver produced nothing; that and an empty value mean
// "no rule", which is not the same as Unset.
func Resolve(value string, ok bool) ValueRule {
	if !ok || value == "" {
		return None
	}
	switch value {
	case KeywordPassthrough:
		return Passthrough
	case KeywordUnset:
		return Unset
	default:
		return Literal(value)
	}
}

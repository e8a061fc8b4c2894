package rules

// Keywords recognised in rule values (configVersion 2).
const (
	KeywordPassthrough = "{value}"
	KeywordUnset       = "{null}"
)

// Kind tags a ValueRule.
type Kind int

const (
	KindNone Kind = iota
	KindLiteral
	KindPassthrough
	KindUnset
)

func (k Kind) String() string {
	switch k {
	case KindLiteral:
		return "literal"
	case KindPassthrough:
		return "passthrough"
	case KindUnset:
		return "unset"
	default:
		return "none"
	}
}

// ValueRule is the resolved outcome of one configured cookie or header rule.
type ValueRule struct {
	kind    Kind
	literal string
}

var (
	None        = ValueRule{kind: KindNone}
	Passthrough = ValueRule{kind: KindPassthrough}
	Unset       = ValueRule{kind: KindUnset}
)

func Literal(v string) ValueRule {
	return ValueRule{kind: KindLiteral, literal: v}
}

func (r ValueRule) Kind() Kind {
	return r.kind
}

// Literal returns the literal value; ok is false for any other kind.
func (r ValueRule) Literal() (string, bool) {
	return r.literal, r.kind == KindLiteral
}

// Rule pairs a configured name (a literal name or, for passthrough cookies, a
// regular expression) with its resolved value rule.
type Rule struct {
	Name  string
	Value ValueRule
}

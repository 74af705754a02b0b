package valueobject

import "fmt"

// AccountPolicy tells the store how to treat an account row that already exists.
type AccountPolicy int

const (
	// PolicyInsertIgnore leaves existing rows untouched, timestamps included.
	PolicyInsertIgnore AccountPolicy = iota + 1
	// PolicyRefreshTimestamp updates only datahora_alteracao on conflict.
	PolicyRefreshTimestamp
)

func (p AccountPolicy) String() string {
	switch p {
	case PolicyInsertIgnore:
		return "insert-ignore"
	case PolicyRefreshTimestamp:
		return "refresh-timestamp"
	default:
		return "unknown"
	}
}

// SourceType is an immutable value object naming the system a conta was imported from.
type SourceType struct {
	value   string
	policy  AccountPolicy
	consent bool
}

// Known source types.
var (
	SourceTypeItau = SourceType{value: "ITAU", policy: PolicyInsertIgnore}
	SourceTypeOPF  = SourceType{value: "OPF", policy: PolicyRefreshTimestamp, consent: true}
)

var knownSourceTypes = map[string]SourceType{
	"ITAU": SourceTypeItau,
	"OPF":  SourceTypeOPF,
}

// NewSourceType validates and creates a SourceType from a string.
func NewSourceType(s string) (SourceType, error) {
	st, ok := knownSourceTypes[s]
	if !ok {
		return SourceType{}, fmt.Errorf("unknown source type %q: expected ITAU or OPF", s)
	}
	return st, nil
}

// String returns the persisted representation of the source type.
func (t SourceType) String() string {
	return t.value
}

// AccountPolicy returns the conflict policy used when upserting accounts of this source.
func (t SourceType) AccountPolicy() AccountPolicy {
	return t.policy
}

// CarriesConsent reports whether lots of this source persist consents.
func (t SourceType) CarriesConsent() bool {
	return t.consent
}

// Equal returns true if two source types are equal.
func (t SourceType) Equal(other SourceType) bool {
	return t.value == other.value
}

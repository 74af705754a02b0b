package valueobject

import (
	"fmt"
	"strings"
)

// MaxAccountIDLength matches the width of contas.cod_idt_conta.
const MaxAccountIDLength = 64

// AccountID is the externally supplied identifier of a conta (cod_idt_conta).
type AccountID struct {
	value string
}

// NewAccountID validates an account identifier. Surrounding whitespace is
// rejected rather than trimmed since the identifier is a primary key.
func NewAccountID(s string) (AccountID, error) {
	if strings.TrimSpace(s) == "" {
		return AccountID{}, fmt.Errorf("account id is required")
	}
	if strings.TrimSpace(s) != s {
		return AccountID{}, fmt.Errorf("account id %q has surrounding whitespace", s)
	}
	if len(s) > MaxAccountIDLength {
		return AccountID{}, fmt.Errorf("account id exceeds %d characters", MaxAccountIDLength)
	}
	return AccountID{value: s}, nil
}

// String returns the raw identifier.
func (id AccountID) String() string {
	return id.value
}

package model

import (
	"github.com/Saltoleto/consulta-produtos/internal/domain/valueobject"
)

// Detail carries the two free-text columns of conta_detalhes. Nil fields are
// stored as NULL.
type Detail struct {
	Field1 *string
	Field2 *string
}

// Consent carries the opaque consent payload of an OPF account.
type Consent struct {
	Payload string
}

// AccountRecord is one account as delivered by a source system. It is
// consumed once per import and never persisted as such.
type AccountRecord struct {
	Detail  *Detail
	Consent *Consent
	ID      string
	UserID  int64
}

// Validate checks the fields the store cannot accept.
func (r AccountRecord) Validate() error {
	_, err := valueobject.NewAccountID(r.ID)
	return err
}

// DetailFields returns the values to write to conta_detalhes. An absent
// detail clears both columns.
func (r AccountRecord) DetailFields() (field1, field2 *string) {
	if r.Detail == nil {
		return nil, nil
	}
	return r.Detail.Field1, r.Detail.Field2
}

// AccountUserView is the (account, source type, user) triple used to build
// outbound events. Only the first linked user of an account is returned.
type AccountUserView struct {
	AccountID  string
	SourceType string
	UserID     int64
}

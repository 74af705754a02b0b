package testutil

import (
	"github.com/Saltoleto/consulta-produtos/internal/application/dto"
)

// Ptr returns a pointer to v.
func Ptr[T any](v T) *T {
	return &v
}

// ItauAccount builds an ITAU request record without detail.
func ItauAccount(id string, userID int64) dto.AccountRecordDTO {
	return dto.AccountRecordDTO{CodIdtConta: id, UsuarioID: userID}
}

// OPFAccount builds an OPF request record. An empty consent leaves it absent.
func OPFAccount(id string, userID int64, consent string) dto.AccountRecordDTO {
	rec := dto.AccountRecordDTO{CodIdtConta: id, UsuarioID: userID}
	if consent != "" {
		rec.Consent = &dto.ConsentDTO{Payload: consent}
	}
	return rec
}

// WithDetail attaches a detail to rec.
func WithDetail(rec dto.AccountRecordDTO, campo1, campo2 *string) dto.AccountRecordDTO {
	rec.Detalhe = &dto.DetailDTO{Campo1: campo1, Campo2: campo2}
	return rec
}

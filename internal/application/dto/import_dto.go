package dto

import (
	"time"

	"github.com/Saltoleto/consulta-produtos/internal/domain/model"
)

// DetailDTO carries the optional free-text detail of an account.
type DetailDTO struct {
	Campo1 *string `json:"campo1,omitempty"`
	Campo2 *string `json:"campo2,omitempty"`
}

// ConsentDTO carries the optional consent payload of an OPF account.
type ConsentDTO struct {
	Payload string `json:"payload"`
}

// AccountRecordDTO is one account in an import request.
type AccountRecordDTO struct {
	Detalhe     *DetailDTO  `json:"detalhe,omitempty"`
	Consent     *ConsentDTO `json:"consent,omitempty"`
	CodIdtConta string      `json:"cod_idt_conta"`
	UsuarioID   int64       `json:"usuario_id"`
}

// ToModel converts the DTO into the domain record.
func (d AccountRecordDTO) ToModel() model.AccountRecord {
	r := model.AccountRecord{ID: d.CodIdtConta, UserID: d.UsuarioID}
	if d.Detalhe != nil {
		r.Detail = &model.Detail{Field1: d.Detalhe.Campo1, Field2: d.Detalhe.Campo2}
	}
	if d.Consent != nil {
		r.Consent = &model.Consent{Payload: d.Consent.Payload}
	}
	return r
}

// ToRecords converts a list of DTOs, preserving order.
func ToRecords(in []AccountRecordDTO) []model.AccountRecord {
	if len(in) == 0 {
		return nil
	}
	out := make([]model.AccountRecord, len(in))
	for i, d := range in {
		out[i] = d.ToModel()
	}
	return out
}

// ImportAccountsRequest is the DTO for one import run.
type ImportAccountsRequest struct {
	ItauAccounts []AccountRecordDTO `json:"itau_accounts"`
	OPFAccounts  []AccountRecordDTO `json:"opf_accounts"`
	RevokedIDs   []string           `json:"revoked_ids"`
}

// SourceSummary reports the committed work for one source type.
type SourceSummary struct {
	Lots    int `json:"lots"`
	Records int `json:"records"`
	// Created and Existing are only filled when existing-id diffing is enabled.
	Created  int `json:"created,omitempty"`
	Existing int `json:"existing,omitempty"`
	// Emissions counts conta-criada tasks accepted by the dispatcher.
	Emissions int `json:"emissions"`
}

// RevocationSummary reports the outcome of the revocation step.
type RevocationSummary struct {
	Requested    int   `json:"requested"`
	LinksDeleted int64 `json:"links_deleted"`
	// Emissions counts conta-revogada tasks accepted by the dispatcher.
	Emissions int `json:"emissions"`
}

// ImportAccountsResponse summarises an import run. On failure it describes
// the lots committed before the failing one.
type ImportAccountsResponse struct {
	StartedAt   time.Time         `json:"started_at"`
	FinishedAt  time.Time         `json:"finished_at"`
	ImportID    string            `json:"import_id"`
	Itau        SourceSummary     `json:"itau"`
	OPF         SourceSummary     `json:"opf"`
	Revocations RevocationSummary `json:"revocations"`
	DurationMs  int64             `json:"duration_ms"`
}

package event

import (
	"github.com/Saltoleto/consulta-produtos/internal/domain/model"
	"github.com/Saltoleto/consulta-produtos/pkg/events"
)

// Topics the importer publishes to.
const (
	TopicContaCriada   = "conta-criada"
	TopicContaRevogada = "conta-revogada"
)

const aggregateType = "Conta"

// ContaEvento describes the account half of an outbound message. ID repeats
// the account identifier.
type ContaEvento struct {
	ID          string `json:"id"`
	CodIdtConta string `json:"codIdtConta"`
	Tipo        string `json:"tipo"`
}

// UsuarioEvento describes the user half of an outbound message.
type UsuarioEvento struct {
	ID int64 `json:"id"`
}

// ContaMessage is the body published to both conta topics, keyed by the
// account identifier.
type ContaMessage struct {
	events.BaseEvent
	Usuario UsuarioEvento `json:"usuario"`
	Conta   ContaEvento   `json:"conta"`
}

// NewContaMessage builds the message published to topic for a linked account.
func NewContaMessage(topic string, v model.AccountUserView) ContaMessage {
	return ContaMessage{
		BaseEvent: events.NewBaseEvent(topic, v.AccountID, aggregateType),
		Usuario:   UsuarioEvento{ID: v.UserID},
		Conta: ContaEvento{
			ID:          v.AccountID,
			CodIdtConta: v.AccountID,
			Tipo:        v.SourceType,
		},
	}
}

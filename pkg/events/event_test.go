package events

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewBaseEvent(t *testing.T) {
	before := time.Now().UTC()
	event := NewBaseEvent("conta.criada", "A1", "Conta")
	after := time.Now().UTC()

	_, err := uuid.Parse(event.EventID())
	require.NoError(t, err, "event id should be a UUID")

	assert.Equal(t, "conta.criada", event.EventType())
	assert.Equal(t, "A1", event.AggregateID())
	assert.Equal(t, "Conta", event.AggregateType())
	assert.False(t, event.OccurredAt().Before(before))
	assert.False(t, event.OccurredAt().After(after))
}

func TestNewBaseEvent_UniqueIDs(t *testing.T) {
	a := NewBaseEvent("conta.criada", "A1", "Conta")
	b := NewBaseEvent("conta.criada", "A1", "Conta")
	assert.NotEqual(t, a.EventID(), b.EventID())
}

func TestBaseEventImplementsDomainEvent(t *testing.T) {
	var _ DomainEvent = BaseEvent{}
}

func TestBaseEvent_EmbeddingKeepsJSONBody(t *testing.T) {
	type body struct {
		BaseEvent
		Name string `json:"name"`
	}

	data, err := json.Marshal(body{BaseEvent: NewBaseEvent("x", "1", "T"), Name: "n"})
	require.NoError(t, err)
	assert.JSONEq(t, `{"name":"n"}`, string(data))
}

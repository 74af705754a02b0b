package valueobject_test

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Saltoleto/consulta-produtos/internal/domain/valueobject"
)

func TestNewSourceType(t *testing.T) {
	t.Run("accepts ITAU", func(t *testing.T) {
		st, err := valueobject.NewSourceType("ITAU")
		require.NoError(t, err)
		assert.Equal(t, "ITAU", st.String())
		assert.True(t, st.Equal(valueobject.SourceTypeItau))
	})

	t.Run("accepts OPF", func(t *testing.T) {
		st, err := valueobject.NewSourceType("OPF")
		require.NoError(t, err)
		assert.Equal(t, "OPF", st.String())
		assert.True(t, st.Equal(valueobject.SourceTypeOPF))
	})

	t.Run("rejects lowercase", func(t *testing.T) {
		_, err := valueobject.NewSourceType("itau")
		assert.Error(t, err)
	})

	t.Run("rejects unknown", func(t *testing.T) {
		_, err := valueobject.NewSourceType("BRADESCO")
		require.Error(t, err)
		assert.Contains(t, err.Error(), "unknown source type")
	})
}

func TestSourceType_Policies(t *testing.T) {
	assert.Equal(t, valueobject.PolicyInsertIgnore, valueobject.SourceTypeItau.AccountPolicy())
	assert.Equal(t, valueobject.PolicyRefreshTimestamp, valueobject.SourceTypeOPF.AccountPolicy())
	assert.False(t, valueobject.SourceTypeItau.CarriesConsent())
	assert.True(t, valueobject.SourceTypeOPF.CarriesConsent())
	assert.Equal(t, "insert-ignore", valueobject.PolicyInsertIgnore.String())
	assert.Equal(t, "refresh-timestamp", valueobject.PolicyRefreshTimestamp.String())
}

func TestNewAccountID(t *testing.T) {
	t.Run("accepts plain id", func(t *testing.T) {
		id, err := valueobject.NewAccountID("A1")
		require.NoError(t, err)
		assert.Equal(t, "A1", id.String())
	})

	t.Run("rejects empty", func(t *testing.T) {
		_, err := valueobject.NewAccountID("")
		assert.Error(t, err)
	})

	t.Run("rejects blank", func(t *testing.T) {
		_, err := valueobject.NewAccountID("   ")
		assert.Error(t, err)
	})

	t.Run("rejects surrounding whitespace", func(t *testing.T) {
		_, err := valueobject.NewAccountID(" A1")
		assert.Error(t, err)
	})

	t.Run("rejects overlong id", func(t *testing.T) {
		_, err := valueobject.NewAccountID(strings.Repeat("x", valueobject.MaxAccountIDLength+1))
		assert.Error(t, err)
	})
}

package models

import (
	"encoding/json"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRawRowGet(t *testing.T) {
	r := NewRawRow([]string{"Data", "Custo", "Cliques"}, []string{"2025-08-01", "R$ 10,00"})

	v, ok := r.Get("Custo")
	require.True(t, ok)
	assert.Equal(t, "R$ 10,00", v)

	// short row: header present, cell empty
	v, ok = r.Get("Cliques")
	require.True(t, ok)
	assert.Equal(t, "", v)

	_, ok = r.Get("Views")
	assert.False(t, ok)
}

func TestCountAdd(t *testing.T) {
	absent := Count{}
	assert.Equal(t, absent, absent.Add(absent))
	assert.Equal(t, CountOf(0), absent.Add(CountOf(0)))
	assert.Equal(t, CountOf(5), CountOf(2).Add(CountOf(3)))
	assert.Equal(t, CountOf(2), CountOf(2).Add(absent))
}

func TestErrorsMatchThroughWrapping(t *testing.T) {
	err := fmt.Errorf("channel yt: %w", &SchemaMismatchError{ChannelID: "yt", Column: "Views"})

	var sm *SchemaMismatchError
	require.True(t, errors.As(err, &sm))
	assert.Equal(t, "Views", sm.Column)
	assert.Contains(t, err.Error(), `column "Views"`)

	ue := &UnresolvedPlaceholderError{Keys: []string{"A", "B"}}
	assert.Equal(t, "unresolved placeholders: A, B", ue.Error())
}

func TestCampaignReconciled(t *testing.T) {
	m := CampaignMetrics{
		Channels: []ChannelMetrics{{ChannelID: "a"}, {ChannelID: "b"}, {ChannelID: "c"}},
		Failures: []ChannelFailure{{ChannelID: "b", Err: ErrNoDelivery}},
	}
	assert.Equal(t, 2, m.Reconciled())

	f, ok := m.Failed("b")
	require.True(t, ok)
	assert.Equal(t, ErrNoDelivery.Error(), f.Reason())

	_, ok = m.Failed("a")
	assert.False(t, ok)
}

func TestCountJSON(t *testing.T) {
	b, err := json.Marshal(struct {
		A Count `json:"a"`
		B Count `json:"b"`
	}{A: CountOf(0)})
	require.NoError(t, err)
	assert.JSONEq(t, `{"a":0,"b":null}`, string(b))
}

func TestCountUnmarshal(t *testing.T) {
	var v struct {
		A Count `json:"a"`
		B Count `json:"b"`
	}
	require.NoError(t, json.Unmarshal([]byte(`{"a":0,"b":null}`), &v))
	assert.Equal(t, CountOf(0), v.A)
	assert.False(t, v.B.Valid)
}

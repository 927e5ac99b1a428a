package main

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestReadDescriptors(t *testing.T) {
	input := `{"raw_text": "NETFLIX.COM", "amount": 15.99, "currency": "USD", "timestamp": "2024-03-01T00:00:00Z"}

{"user_id": "bob", "raw_text": "SINPE MOVIL REF 88271 JUAN PEREZ", "counterparty_id": "8888-1234", "amount": 5000, "currency": "CRC"}
{"id": "fixed", "raw_text": "ignored", "normalized_text": "uber trip"}`

	ds, err := readDescriptors(strings.NewReader(input), "alice")
	require.NoError(t, err)
	require.Len(t, ds, 3)

	assert.Equal(t, "alice", ds[0].UserID)
	assert.Equal(t, "NETFLIX COM", ds[0].NormalizedText)
	assert.NotEmpty(t, ds[0].ID)
	assert.Equal(t, ds[0].GenerateID(), ds[0].ID)

	assert.Equal(t, "bob", ds[1].UserID)
	assert.Equal(t, "SINPE MOVIL JUAN PEREZ", ds[1].NormalizedText)
	assert.True(t, ds[1].IsPeerToPeer())

	assert.Equal(t, "fixed", ds[2].ID)
	assert.Equal(t, "UBER TRIP", ds[2].NormalizedText)
}

func TestReadDescriptors_Errors(t *testing.T) {
	tests := []struct {
		name  string
		input string
		user  string
		want  string
	}{
		{"bad json", "{not json}", "alice", "line 1: invalid descriptor"},
		{"missing user", `{"raw_text": "UBER TRIP"}`, "", "line 1: user_id is required"},
		{"no usable text", "\n" + `{"raw_text": "*** ---"}`, "alice", "line 2: description has no usable text"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := readDescriptors(strings.NewReader(tt.input), tt.user)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestReadDescriptors_Empty(t *testing.T) {
	ds, err := readDescriptors(strings.NewReader(""), "alice")
	require.NoError(t, err)
	assert.Empty(t, ds)
}

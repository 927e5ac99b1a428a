package main

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"

	"github.com/Veraticus/the-spice-must-learn/internal/model"
	"github.com/Veraticus/the-spice-must-learn/internal/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func resultFor(category string, method model.Method, confidence float64) model.CategorizationResult {
	return model.CategorizationResult{CategoryID: &category, Method: method, Confidence: confidence}
}

func TestPrintResults_Text(t *testing.T) {
	ds := []model.TransactionDescriptor{
		testutil.Descriptor("alice", "UBER TRIP"),
		testutil.Descriptor("alice", "NETFLIX.COM"),
		testutil.Descriptor("alice", "FERRETERIA EL CLAVO"),
	}
	results := []model.CategorizationResult{
		resultFor("Transport", model.MethodRule, 0.92),
		resultFor("Entertainment", model.MethodGlobal, 0.95),
		model.Unresolved(nil),
	}

	var buf bytes.Buffer
	require.NoError(t, printResults(&buf, ds, results, false))

	out := buf.String()
	assert.Contains(t, out, "UBER TRIP")
	assert.Contains(t, out, "Transport")
	assert.Contains(t, out, "unresolved")
	assert.Contains(t, out, "1 need review")
}

func TestPrintResults_JSON(t *testing.T) {
	ds := []model.TransactionDescriptor{testutil.Descriptor("alice", "UBER TRIP")}
	results := []model.CategorizationResult{resultFor("Transport", model.MethodRule, 0.92)}

	var buf bytes.Buffer
	require.NoError(t, printResults(&buf, ds, results, true))

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 1)

	var got map[string]any
	require.NoError(t, json.Unmarshal([]byte(lines[0]), &got))
	assert.Equal(t, "Transport", got["category_id"])
	assert.Equal(t, "rule", got["method"])
	assert.Equal(t, ds[0].ID, got["transaction_id"])
	assert.Equal(t, "UBER TRIP", got["text"])
}

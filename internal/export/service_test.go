package export

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"github.com/Yureehh/Extractly/internal/runstore"
)

func TestRunXLSX(t *testing.T) {
	conf := 0.8
	run := &runstore.ExtractionRun{
		RunID: "run_20260829T100000Z_abc123",
		Documents: []runstore.RunDocument{
			{
				Filename:     "a.pdf",
				DocumentType: "Invoice",
				Confidence:   &conf,
				Corrected:    map[string]any{"total": "12.50", "currency": "EUR"},
			},
			{
				Filename:     "b.pdf",
				DocumentType: "Unknown",
				Corrected:    map[string]any{},
			},
		},
	}

	data, err := NewService(nil).RunXLSX(run)
	require.NoError(t, err)

	f, err := excelize.OpenReader(bytes.NewReader(data))
	require.NoError(t, err)
	defer f.Close()

	assert.Equal(t, []string{"Documents"}, f.GetSheetList())

	rows, err := f.GetRows("Documents")
	require.NoError(t, err)
	require.Len(t, rows, 3)

	assert.Equal(t, []string{"Filename", "Document Type", "Confidence", "currency", "total"}, rows[0])

	first := rows[1]
	assert.Equal(t, "a.pdf", first[0])
	assert.Equal(t, "Invoice", first[1])
	assert.Equal(t, "0.8", first[2])
	assert.Equal(t, "EUR", first[3])
	assert.Equal(t, "12.50", first[4])

	second := rows[2]
	assert.Equal(t, "b.pdf", second[0])
	assert.Equal(t, "Unknown", second[1])
}

func TestFieldUnion_FirstSeenAcrossDocuments(t *testing.T) {
	docs := []runstore.RunDocument{
		{Corrected: map[string]any{"b": 1, "a": 2}},
		{Corrected: map[string]any{"c": 3, "a": 4}},
	}
	assert.Equal(t, []string{"a", "b", "c"}, fieldUnion(docs))
}

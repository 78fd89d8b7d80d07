package export

import (
	"bytes"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func agenda(rows int) Dataset {
	data := Dataset{Title: "Agenda", Subtitle: "dr-1", Headers: []string{"start", "end", "priority"}}
	for i := 0; i < rows; i++ {
		data.Rows = append(data.Rows, []string{fmt.Sprintf("09:%02d", i%60), "10:00", "low"})
	}
	return data
}

func TestCSVExporterRender(t *testing.T) {
	out, err := NewCSVExporter().Render(agenda(2))
	require.NoError(t, err)
	assert.Equal(t, "start,end,priority\n09:00,10:00,low\n09:01,10:00,low\n", string(out))
}

func TestPDFExporterRendersMultiplePages(t *testing.T) {
	out, err := NewPDFExporter().Render(agenda(80))
	require.NoError(t, err)
	assert.True(t, bytes.HasPrefix(out, []byte("%PDF")))
}

func TestRenderRejectsRaggedRows(t *testing.T) {
	data := agenda(1)
	data.Rows = append(data.Rows, []string{"only-one"})
	_, err := For(FormatCSV).Render(data)
	assert.Error(t, err)
	_, err = For(FormatPDF).Render(Dataset{})
	assert.Error(t, err)
}

func TestParseFormat(t *testing.T) {
	f, err := ParseFormat("")
	require.NoError(t, err)
	assert.Equal(t, FormatCSV, f)
	f, err = ParseFormat(" PDF ")
	require.NoError(t, err)
	assert.Equal(t, "application/pdf", f.ContentType())
	_, err = ParseFormat("xlsx")
	assert.Error(t, err)
}

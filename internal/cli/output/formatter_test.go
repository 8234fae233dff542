package output

import (
	"bytes"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseFormat(t *testing.T) {
	tests := []struct {
		in      string
		want    Format
		wantErr bool
	}{
		{in: "table", want: FormatTable},
		{in: "", want: FormatTable},
		{in: "json", want: FormatJSON},
		{in: "JSON", want: FormatJSON},
		{in: "yaml", want: FormatYAML},
		{in: "yml", want: FormatYAML},
		{in: "csv", wantErr: true},
	}
	for _, tt := range tests {
		t.Run("in="+tt.in, func(t *testing.T) {
			got, err := ParseFormat(tt.in)
			if tt.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestFormatter_PrintTable(t *testing.T) {
	data := TableData{
		Headers: []string{"CHANNEL", "SUBSCRIBERS"},
		Rows:    [][]string{{"orders", "2"}, {"payments", "1"}},
	}

	t.Run("table with headers", func(t *testing.T) {
		var buf bytes.Buffer
		f := &Formatter{Format: FormatTable, Writer: &buf}
		f.PrintTable(data)

		out := buf.String()
		assert.Contains(t, out, "CHANNEL")
		assert.Contains(t, out, "orders")
		assert.Contains(t, out, "payments")
	})

	t.Run("no headers", func(t *testing.T) {
		var buf bytes.Buffer
		f := &Formatter{Format: FormatTable, NoHeaders: true, Writer: &buf}
		f.PrintTable(data)

		out := buf.String()
		assert.NotContains(t, out, "CHANNEL")
		assert.Contains(t, out, "orders")
	})

	t.Run("json", func(t *testing.T) {
		var buf bytes.Buffer
		f := &Formatter{Format: FormatJSON, Writer: &buf}
		f.PrintTable(data)

		var rows []map[string]string
		require.NoError(t, json.Unmarshal(buf.Bytes(), &rows))
		require.Len(t, rows, 2)
		assert.Equal(t, "orders", rows[0]["CHANNEL"])
		assert.Equal(t, "2", rows[0]["SUBSCRIBERS"])
	})

	t.Run("yaml", func(t *testing.T) {
		var buf bytes.Buffer
		f := &Formatter{Format: FormatYAML, Writer: &buf}
		f.PrintTable(data)

		out := buf.String()
		assert.Contains(t, out, "CHANNEL: orders")
		assert.Contains(t, out, "SUBSCRIBERS: \"2\"")
	})
}

func TestFormatter_Print(t *testing.T) {
	var buf bytes.Buffer
	f := &Formatter{Format: FormatJSON, Writer: &buf}
	require.NoError(t, f.Print(map[string]int{"receivers": 3}))
	assert.JSONEq(t, `{"receivers": 3}`, buf.String())
}

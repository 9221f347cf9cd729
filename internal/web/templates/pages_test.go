package templates

import (
	"bytes"
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIndex(t *testing.T) {
	var buf bytes.Buffer
	err := Index(IndexData{
		DefaultLanguage: "und",
		Fields:          []string{"245$a", "700$a"},
		HoldingsTag:     "952",
	}).Render(context.Background(), &buf)
	require.NoError(t, err)

	html := buf.String()
	assert.Contains(t, html, `name="file"`)
	assert.Contains(t, html, `name="lang" maxlength="3" value="und"`)
	assert.Contains(t, html, `<code>245$a</code> <code>700$a</code>`)
	assert.NotContains(t, html, `role="alert"`)
}

func TestIndex_WithErrorEscapes(t *testing.T) {
	var buf bytes.Buffer
	err := Index(IndexData{
		DefaultLanguage: `"><script>`,
		Error:           &Alert{Message: "Only .xlsx files are allowed.", Code: "FILE003"},
	}).Render(context.Background(), &buf)
	require.NoError(t, err)

	html := buf.String()
	assert.Contains(t, html, "Only .xlsx files are allowed.")
	assert.Contains(t, html, "Error code: FILE003")
	assert.NotContains(t, html, "<script>")
	assert.Contains(t, html, `value="&#34;&gt;&lt;script&gt;"`)
}

func TestErrorAlert_OptionalParts(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, ErrorAlert("Request timed out", "", "").Render(context.Background(), &buf))
	assert.Equal(t, `<div class="alert" role="alert"><strong>Request timed out</strong></div>`, buf.String())
}

func TestIndex_CancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	var buf bytes.Buffer
	err := Index(IndexData{}).Render(ctx, &buf)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Zero(t, buf.Len())
}

func TestErrorAlert(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, ErrorAlert("No data rows in Excel file.", "Add a row", "CONV001").Render(context.Background(), &buf))
	assert.Equal(t,
		`<div class="alert" role="alert"><strong>No data rows in Excel file.</strong><p>Add a row</p><small>Error code: CONV001</small></div>`,
		buf.String())
}

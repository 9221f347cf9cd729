package sheet

import (
	"archive/zip"
	"bytes"
	"io"
	"regexp"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"github.com/JonMunkholm/xlsx2marc/internal/marc"
)

// buildWorkbook writes rows starting at A1 of a fresh workbook and returns
// the encoded file.
func buildWorkbook(t *testing.T, rows [][]any) []byte {
	t.Helper()
	f := excelize.NewFile()
	defer f.Close()

	for i, row := range rows {
		cell, err := excelize.CoordinatesToCellName(1, i+1)
		require.NoError(t, err)
		r := row
		require.NoError(t, f.SetSheetRow("Sheet1", cell, &r))
	}
	buf, err := f.WriteToBuffer()
	require.NoError(t, err)
	return buf.Bytes()
}

func TestOpen_DecodesCells(t *testing.T) {
	published := time.Date(2024, 3, 9, 0, 0, 0, 0, time.UTC)
	data := buildWorkbook(t, [][]any{
		{"245$a", "260$c", "365$b", "020$a"},
		{"Dune", published, 12.5, "9780441013593"},
		{},
		{"Emma"},
	})

	wb, err := Open(bytes.NewReader(data))
	require.NoError(t, err)
	defer wb.Close()

	assert.Equal(t, "Sheet1", wb.SheetName())
	assert.Equal(t, []any{"245$a", "260$c", "365$b", "020$a"}, wb.Header())

	rows := wb.Rows()
	require.Len(t, rows, 3)
	assert.Equal(t, "Dune", rows[0][0])
	require.IsType(t, time.Time{}, rows[0][1])
	got, err := marc.FormatValue(rows[0][1])
	require.NoError(t, err)
	assert.Equal(t, "2024-03-09", got)
	assert.Equal(t, "12.5", rows[0][2])
	assert.Equal(t, "9780441013593", rows[0][3])
	assert.True(t, marc.IsRowEmpty(rows[1]))
	assert.Equal(t, "Emma", rows[2][0])
}

// retypeAsDate rewrites cell ref of Sheet1 in data as an ISO 8601 typed
// cell holding iso. excelize only writes dates as serial numbers.
func retypeAsDate(t *testing.T, data []byte, ref, iso string) []byte {
	t.Helper()
	zr, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	require.NoError(t, err)

	cell := regexp.MustCompile(`<c r="` + ref + `"[^>]*>.*?</c>`)
	var out bytes.Buffer
	zw := zip.NewWriter(&out)
	for _, f := range zr.File {
		rc, err := f.Open()
		require.NoError(t, err)
		body, err := io.ReadAll(rc)
		require.NoError(t, err)
		require.NoError(t, rc.Close())

		if f.Name == "xl/worksheets/sheet1.xml" {
			require.True(t, cell.Match(body), "cell %s not found", ref)
			body = cell.ReplaceAll(body, []byte(`<c r="`+ref+`" t="d"><v>`+iso+`</v></c>`))
		}
		w, err := zw.Create(f.Name)
		require.NoError(t, err)
		_, err = w.Write(body)
		require.NoError(t, err)
	}
	require.NoError(t, zw.Close())
	return out.Bytes()
}

func TestOpen_ISODateCells(t *testing.T) {
	data := buildWorkbook(t, [][]any{
		{"245$a", "260$c", "500$a"},
		{"Dune", 1, "2024-03-09T00:00:00Z"},
	})
	data = retypeAsDate(t, data, "B2", "2024-03-09T00:00:00Z")

	wb, err := Open(bytes.NewReader(data))
	require.NoError(t, err)
	defer wb.Close()

	rows := wb.Rows()
	require.Len(t, rows, 1)
	require.IsType(t, time.Time{}, rows[0][1])
	got, err := marc.FormatValue(rows[0][1])
	require.NoError(t, err)
	assert.Equal(t, "2024-03-09", got)

	// The same text in a string cell is left alone.
	assert.Equal(t, "2024-03-09T00:00:00Z", rows[0][2])

	v, err := wb.CellAt(2, 2)
	require.NoError(t, err)
	assert.IsType(t, time.Time{}, v)
}

func TestParseISODate(t *testing.T) {
	for _, s := range []string{"2024-03-09T00:00:00Z", "2024-03-09T10:15:00.5+02:00", "2024-03-09T10:15:00", "2024-03-09"} {
		got, ok := parseISODate(s)
		require.True(t, ok, s)
		assert.Equal(t, 2024, got.Year(), s)
	}
	_, ok := parseISODate("9 March 2024")
	assert.False(t, ok)
}

func TestOpen_CellAt(t *testing.T) {
	data := buildWorkbook(t, [][]any{
		{"245$a", "952$p"},
		{"Dune", "B001"},
	})

	wb, err := Open(bytes.NewReader(data))
	require.NoError(t, err)
	defer wb.Close()

	v, err := wb.CellAt(2, 2)
	require.NoError(t, err)
	assert.Equal(t, "B001", v)

	v, err = wb.CellAt(9, 9)
	require.NoError(t, err)
	assert.Nil(t, v)

	_, err = wb.CellAt(0, 1)
	assert.Error(t, err)
}

func TestOpen_RejectsGarbage(t *testing.T) {
	_, err := Open(bytes.NewReader([]byte("this is not a zip archive")))
	assert.Error(t, err)
}

func TestOpen_FeedsConverter(t *testing.T) {
	data := buildWorkbook(t, [][]any{
		{"245$a", "100$a", "952$p"},
		{"Dune", "Herbert, Frank", "D1"},
		{"dune", "HERBERT, FRANK", "D2"},
	})

	wb, err := Open(bytes.NewReader(data))
	require.NoError(t, err)
	defer wb.Close()

	res, err := marc.Convert(wb, marc.Options{})
	require.NoError(t, err)
	require.Len(t, res.Groups, 1)
	assert.Len(t, res.Groups[0].Holdings, 2)
}

func TestTemplate(t *testing.T) {
	headers := marc.SupportedFields()
	data, err := Template("Catalog", headers)
	require.NoError(t, err)

	wb, err := Open(bytes.NewReader(data))
	require.NoError(t, err)
	defer wb.Close()

	assert.Equal(t, "Catalog", wb.SheetName())
	require.Len(t, wb.Header(), len(headers))
	for i, h := range headers {
		assert.Equal(t, h, wb.Header()[i])
	}
	assert.Empty(t, wb.Rows())
}

func TestBuiltinKind(t *testing.T) {
	tests := []struct {
		id   int
		want cellKind
	}{
		{0, plainCell},
		{2, plainCell},
		{14, dateCell},
		{22, dateCell},
		{31, dateCell},
		{57, dateCell},
		{20, timeCell},
		{46, timeCell},
		{49, plainCell},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, builtinKind(tt.id), "numFmt %d", tt.id)
	}
}

func TestClassifyFormat(t *testing.T) {
	tests := []struct {
		code string
		want cellKind
	}{
		{"yyyy-mm-dd", dateCell},
		{"[$-409]mmmm d, yyyy", dateCell},
		{"mmm", dateCell},
		{"hh:mm:ss", timeCell},
		{"h:mm AM/PM", timeCell},
		{"#,##0.00", plainCell},
		{`0 "days"`, plainCell},
		{`0\d`, plainCell},
		{"@", plainCell},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, classifyFormat(tt.code), tt.code)
	}
}

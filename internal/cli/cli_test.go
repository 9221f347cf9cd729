package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"github.com/JonMunkholm/xlsx2marc/internal/marc"
	"github.com/JonMunkholm/xlsx2marc/internal/sheet"
)

func writeWorkbook(t *testing.T, dir, name string, rows ...[]any) string {
	t.Helper()
	f := excelize.NewFile()
	defer f.Close()
	for i, row := range rows {
		cell, err := excelize.CoordinatesToCellName(1, i+1)
		require.NoError(t, err)
		r := row
		require.NoError(t, f.SetSheetRow("Sheet1", cell, &r))
	}
	path := filepath.Join(dir, name)
	require.NoError(t, f.SaveAs(path))
	return path
}

func run(t *testing.T, args ...string) (string, string, error) {
	t.Helper()
	var out, errOut bytes.Buffer
	err := New("test", &out, &errOut).Execute(context.Background(), args)
	return out.String(), errOut.String(), err
}

var catalogRows = [][]any{
	{"245$a", "020$a", "952$p", "952$o"},
	{"Dune", "9780441013593", "B1", "813 HER"},
	{"Dune", "9780441013593", "B2", "813 HER"},
}

func TestConvert_Stdout(t *testing.T) {
	path := writeWorkbook(t, t.TempDir(), "catalog.xlsx", catalogRows...)

	out, _, err := run(t, "convert", path, "-o", "-", "--lang", "eng")
	require.NoError(t, err)

	lines := strings.Split(out, "\n")
	assert.Equal(t, "=LDR  "+marc.Leader, lines[0])
	assert.Equal(t, "=001  000000001", lines[1])
	assert.True(t, strings.HasSuffix(lines[2], `\||eng||`), lines[2])
	assert.Contains(t, out, `=020  \\$a9780441013593`)
	assert.Contains(t, out, `=245  \\$aDune`)
	assert.Equal(t, 2, strings.Count(out, "=952  "))
	assert.Equal(t, 1, strings.Count(out, "=LDR"))
	assert.True(t, strings.HasSuffix(out, "\n\n"))
}

func TestConvert_DefaultOutputFile(t *testing.T) {
	dir := t.TempDir()
	path := writeWorkbook(t, dir, "catalog.xlsx", catalogRows...)
	outDir := t.TempDir()

	out, _, err := run(t, "convert", path, "--dir", outDir)
	require.NoError(t, err)
	assert.Contains(t, out, "wrote 1 records (2 holdings)")

	matches, err := filepath.Glob(filepath.Join(outDir, "export_*.mrk"))
	require.NoError(t, err)
	require.Len(t, matches, 1)

	data, err := os.ReadFile(matches[0])
	require.NoError(t, err)
	assert.Contains(t, string(data), `\||und||`)
}

func TestConvert_LanguageFromEnv(t *testing.T) {
	t.Setenv("XLSX2MARC_LANG", "fre")
	path := writeWorkbook(t, t.TempDir(), "catalog.xlsx", catalogRows...)

	out, _, err := run(t, "convert", path, "-o", "-")
	require.NoError(t, err)
	assert.Contains(t, out, `\||fre||`)
}

func TestConvert_Errors(t *testing.T) {
	dir := t.TempDir()

	csv := filepath.Join(dir, "catalog.csv")
	require.NoError(t, os.WriteFile(csv, []byte("245$a\nDune\n"), 0o644))
	_, _, err := run(t, "convert", csv)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "Only .xlsx files are allowed.")

	empty := writeWorkbook(t, dir, "empty.xlsx", catalogRows[0])
	_, _, err = run(t, "convert", empty, "-o", "-")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "CONV001")

	_, _, err = run(t, "convert", filepath.Join(dir, "missing.xlsx"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "open workbook")

	_, _, err = run(t, "convert")
	require.Error(t, err)
}

func TestSchemaJSON(t *testing.T) {
	out, _, err := run(t, "schema", "--json")
	require.NoError(t, err)

	var info schemaInfo
	require.NoError(t, json.Unmarshal([]byte(out), &info))
	assert.Equal(t, marc.KeySchemaVersion, info.Version)
	assert.Equal(t, marc.SupportedFields(), info.Fields)
	assert.Equal(t, "|", info.Delimiter)
}

func TestSchemaTable(t *testing.T) {
	out, _, err := run(t, "schema")
	require.NoError(t, err)
	assert.Contains(t, out, "COLUMN")
	assert.Contains(t, out, "650$a")
	assert.Contains(t, out, "holdings subfield order: pdoeg")
}

func TestTemplate(t *testing.T) {
	path := filepath.Join(t.TempDir(), "blank.xlsx")
	out, _, err := run(t, "template", "-o", path)
	require.NoError(t, err)
	assert.Contains(t, out, path)

	f, err := os.Open(path)
	require.NoError(t, err)
	defer f.Close()
	wb, err := sheet.Open(f)
	require.NoError(t, err)
	defer wb.Close()
	assert.Len(t, wb.Header(), len(marc.TemplateHeaders()))
}

func TestVersion(t *testing.T) {
	out, _, err := run(t, "--version")
	require.NoError(t, err)
	assert.Equal(t, "xlsx2marc test\n", out)
}

func TestConfigFile_Default(t *testing.T) {
	dir := t.TempDir()
	path := writeWorkbook(t, dir, "catalog.xlsx", catalogRows...)
	require.NoError(t, os.WriteFile(filepath.Join(dir, ".xlsx2marc.yaml"), []byte("lang: ger\n"), 0o644))
	t.Chdir(dir)

	out, _, err := run(t, "convert", path, "-o", "-")
	require.NoError(t, err)
	assert.Contains(t, out, `\||ger||`)
}

func TestConfigFile_Malformed(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, ".xlsx2marc.yaml"), []byte("lang: [unclosed\n"), 0o644))
	t.Chdir(dir)

	_, _, err := run(t, "schema")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "read config")
}

func TestConvert_UserFacingErrorKeepsCause(t *testing.T) {
	empty := writeWorkbook(t, t.TempDir(), "empty.xlsx", catalogRows[0])

	_, _, err := run(t, "convert", empty, "-o", "-")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "CONV001")
	assert.ErrorIs(t, err, marc.ErrNoDataRows)
}

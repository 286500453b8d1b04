package ingest

import (
	"testing"

	"github.com/tj/assert"
	"github.com/xuri/excelize/v2"
)

func TestParseCsv(t *testing.T) {
	content := []byte("serial,email,name\nS-001,jane@example.com,Jane Doe\nS-002,john@example.com,John Doe\n")
	rows, failed, err := ParseRecipientTable("recipients.csv", content)
	if err != nil {
		t.Fatal(err)
	}
	assert.Len(t, failed, 0)
	assert.Len(t, rows, 2)
	assert.Equal(t, "S-001", rows[0].Serial)
	assert.Equal(t, "jane@example.com", rows[0].Email)
	assert.Equal(t, "Jane Doe", rows[0].Name)
	assert.Equal(t, "John Doe", rows[1].Name)
}

func TestParseCsvBadRowDoesNotAbort(t *testing.T) {
	content := []byte("serial,email,name\nS-001,jane@example.com,Jane\nS-002\n,missing@serial.com\nS-004,ok@example.com,Ok\n")
	rows, failed, err := ParseRecipientTable("recipients.csv", content)
	if err != nil {
		t.Fatal(err)
	}
	assert.Len(t, rows, 2)
	assert.Equal(t, "S-001", rows[0].Serial)
	assert.Equal(t, "S-004", rows[1].Serial)

	assert.Len(t, failed, 2)
	assert.Equal(t, 2, failed[0].Index)
	assert.Equal(t, 3, failed[1].Index)
}

func TestParseCsvSkipsEmptyRows(t *testing.T) {
	content := []byte("serial,email\nS-001,jane@example.com\n,,\n")
	rows, failed, err := ParseRecipientTable("recipients.csv", content)
	if err != nil {
		t.Fatal(err)
	}
	assert.Len(t, rows, 1)
	assert.Len(t, failed, 0)
}

func TestParseCsvHeaderOnly(t *testing.T) {
	rows, failed, err := ParseRecipientTable("recipients.csv", []byte("serial,email,name\n"))
	if err != nil {
		t.Fatal(err)
	}
	assert.Len(t, rows, 0)
	assert.Len(t, failed, 0)
}

func TestParseWorkbook(t *testing.T) {
	f := excelize.NewFile()
	sheet := f.GetSheetName(0)
	f.SetCellValue(sheet, "A1", "serial")
	f.SetCellValue(sheet, "B1", "email")
	f.SetCellValue(sheet, "C1", "name")
	f.SetCellValue(sheet, "A2", "S-001")
	f.SetCellValue(sheet, "B2", "jane@example.com")
	f.SetCellValue(sheet, "C2", "Jane Doe")
	f.SetCellValue(sheet, "A3", "S-002")
	f.SetCellValue(sheet, "B3", "john@example.com")
	buf, err := f.WriteToBuffer()
	if err != nil {
		t.Fatal(err)
	}

	rows, failed, pErr := ParseRecipientTable("recipients.xlsx", buf.Bytes())
	if pErr != nil {
		t.Fatal(pErr)
	}
	assert.Len(t, failed, 0)
	assert.Len(t, rows, 2)
	assert.Equal(t, "Jane Doe", rows[0].Name)
	assert.Equal(t, "S-002", rows[1].Serial)
	assert.Equal(t, "", rows[1].Name)
}

func TestParseSniffsContent(t *testing.T) {
	content := []byte("serial,email\nS-001,jane@example.com\n")
	rows, _, err := ParseRecipientTable("recipients", content)
	if err != nil {
		t.Fatal(err)
	}
	assert.Len(t, rows, 1)
}

func TestParseUnreadableWorkbook(t *testing.T) {
	_, _, err := ParseRecipientTable("recipients.xlsx", []byte("this is not a workbook"))
	assert.Error(t, err)
}

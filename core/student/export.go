package student

import (
	"io"

	"github.com/pkg/errors"
	"github.com/xuri/excelize/v2"
)

const (
	ExportSheet       = "Students"
	ExportContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
)

var exportHeaders = []string{
	"Admission No", "First Name", "Last Name", "Gender", "Date of Birth", "Class",
	"Guardian", "Guardian Phone", "Guardian Email", "Active",
}

// WriteXLSX writes students as a single-sheet workbook, one row per student below a header row.
func WriteXLSX(w io.Writer, students []Student) error {
	f := excelize.NewFile()
	//goland:noinspection GoUnhandledErrorResult
	defer f.Close()

	if _, err := f.NewSheet(ExportSheet); err != nil {
		return errors.Wrap(err, "creating sheet")
	}
	_ = f.DeleteSheet("Sheet1")
	if index, err := f.GetSheetIndex(ExportSheet); err == nil {
		f.SetActiveSheet(index)
	}

	for i, header := range exportHeaders {
		cell, _ := excelize.CoordinatesToCellName(i+1, 1)
		if err := f.SetCellValue(ExportSheet, cell, header); err != nil {
			return errors.Wrap(err, "writing header")
		}
	}

	for i, s := range students {
		row := []interface{}{
			s.AdmissionNo, s.FirstName, s.LastName, s.Gender, s.DateOfBirth.String(), s.ClassName,
			s.GuardianName, s.GuardianPhone, s.GuardianEmail, s.IsActive,
		}
		cell, _ := excelize.CoordinatesToCellName(1, i+2)
		if err := f.SetSheetRow(ExportSheet, cell, &row); err != nil {
			return errors.Wrap(err, "writing student row")
		}
	}

	if err := f.Write(w); err != nil {
		return errors.Wrap(err, "writing workbook")
	}
	return nil
}

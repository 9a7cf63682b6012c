package repository

import (
	"encoding/json"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/aktraiser/X-me/internal/domain"
	"github.com/xuri/excelize/v2"
)

// expertHeaders maps accepted spreadsheet headers to expert fields
var expertHeaders = map[string]string{
	"prenom":      "prenom",
	"prénom":      "prenom",
	"first_name":  "prenom",
	"nom":         "nom",
	"last_name":   "nom",
	"specialite":  "specialite",
	"spécialité":  "specialite",
	"specialty":   "specialite",
	"ville":       "ville",
	"city":        "ville",
	"tarif":       "tarif",
	"rate":        "tarif",
	"expertises":  "expertises",
	"services":    "services",
	"biographie":  "biographie",
	"biography":   "biographie",
	"url":         "url",
	"image_url":   "image_url",
	"photo":       "image_url",
}

// ImportXLSX reads the first sheet of a workbook and inserts one expert per
// row. The first row holds the headers; unknown columns are ignored.
func (r *ExpertRepository) ImportXLSX(reader io.Reader) (*domain.ImportResult, error) {
	f, err := excelize.OpenReader(reader)
	if err != nil {
		return nil, fmt.Errorf("open workbook: %w", err)
	}
	defer f.Close()

	sheet := f.GetSheetName(0)
	rows, err := f.GetRows(sheet)
	if err != nil {
		return nil, fmt.Errorf("read sheet %q: %w", sheet, err)
	}
	if len(rows) == 0 {
		return nil, fmt.Errorf("sheet %q is empty: %w", sheet, domain.ErrInvalidRequest)
	}

	columns := make(map[string]int)
	for i, h := range rows[0] {
		if field, ok := expertHeaders[strings.ToLower(strings.TrimSpace(h))]; ok {
			columns[field] = i
		}
	}
	for _, required := range []string{"prenom", "nom", "specialite"} {
		if _, ok := columns[required]; !ok {
			return nil, fmt.Errorf("missing column %q: %w", required, domain.ErrInvalidRequest)
		}
	}

	result := &domain.ImportResult{}
	for n, row := range rows[1:] {
		line := n + 2
		cell := func(field string) string {
			i, ok := columns[field]
			if !ok || i >= len(row) {
				return ""
			}
			return strings.TrimSpace(row[i])
		}

		expert := &domain.Expert{
			FirstName:  cell("prenom"),
			LastName:   cell("nom"),
			Specialty:  cell("specialite"),
			City:       cell("ville"),
			Expertises: cell("expertises"),
			Biography:  cell("biographie"),
			URL:        cell("url"),
			ImageURL:   cell("image_url"),
		}
		if expert.FirstName == "" && expert.LastName == "" {
			result.Skipped++
			continue
		}
		if expert.Specialty == "" {
			result.Skipped++
			result.Errors = append(result.Errors, fmt.Sprintf("line %d: missing specialite", line))
			continue
		}
		if raw := cell("tarif"); raw != "" {
			rate, err := strconv.ParseFloat(strings.ReplaceAll(strings.TrimSuffix(raw, "€"), ",", "."), 64)
			if err != nil {
				result.Errors = append(result.Errors, fmt.Sprintf("line %d: invalid tarif %q", line, raw))
			}
			expert.Rate = rate
		}
		if raw := cell("services"); raw != "" {
			if json.Valid([]byte(raw)) {
				expert.Services = json.RawMessage(raw)
			} else {
				quoted, _ := json.Marshal(strings.Split(raw, ";"))
				expert.Services = quoted
			}
		}

		if err := r.Create(expert); err != nil {
			result.Skipped++
			result.Errors = append(result.Errors, fmt.Sprintf("line %d: %v", line, err))
			continue
		}
		result.Imported++
	}

	return result, nil
}

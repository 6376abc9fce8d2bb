package questionbank

import (
	"bytes"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"

	"livequiz-service/internal/domain"
)

var csvHeader = []string{"Category", "Question", "Option 1", "Option 2", "Option 3", "Option 4", "Correct Answer"}

// ParseCSV reads a question file with a header row. Rows that fail
// validation are skipped, matching the import behavior of the question
// manager UI this feeds.
func ParseCSV(r io.Reader) ([]domain.Question, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1

	rows, err := reader.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("parse csv: %w", err)
	}
	var questions []domain.Question
	for i, row := range rows {
		if i == 0 {
			// header
			continue
		}
		if len(row) < 7 {
			continue
		}
		q := domain.Question{
			Category:      row[0],
			Prompt:        row[1],
			Options:       []string{row[2], row[3], row[4], row[5]},
			CorrectAnswer: row[6],
		}
		if q.Validate() == nil {
			questions = append(questions, q)
		}
	}
	return questions, nil
}

// ParseJSON reads a JSON array of questions, skipping invalid entries.
func ParseJSON(r io.Reader) ([]domain.Question, error) {
	var raw []domain.Question
	if err := json.NewDecoder(r).Decode(&raw); err != nil {
		return nil, fmt.Errorf("parse json: %w", err)
	}
	questions := make([]domain.Question, 0, len(raw))
	for _, q := range raw {
		if q.Validate() == nil {
			questions = append(questions, q)
		}
	}
	return questions, nil
}

// ExportCSV renders questions in the import format, header included.
func ExportCSV(questions []domain.Question) ([]byte, error) {
	var buf bytes.Buffer
	w := csv.NewWriter(&buf)
	if err := w.Write(csvHeader); err != nil {
		return nil, err
	}
	for _, q := range questions {
		row := append([]string{q.Category, q.Prompt}, q.Options...)
		row = append(row, q.CorrectAnswer)
		if err := w.Write(row); err != nil {
			return nil, err
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// ExportJSON renders questions as an indented JSON array.
func ExportJSON(questions []domain.Question) ([]byte, error) {
	return json.MarshalIndent(questions, "", "  ")
}

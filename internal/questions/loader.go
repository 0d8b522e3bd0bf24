// Package questions loads the trivia question bank.
package questions

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/kamlaman/trivia/internal/answer"
	"github.com/kamlaman/trivia/internal/domain"
)

// Load reads questions from CSV data with a `question,answers` header. The
// answers field is pipe-delimited; each alternative is normalized so the
// round engine can match by exact membership. A row whose answer field
// normalizes to nothing is a load-time error: shipping an unanswerable
// question is almost always a typo in the bank.
func Load(r io.Reader) ([]domain.Question, error) {
	cr := csv.NewReader(r)

	header, err := cr.Read()
	if err != nil {
		return nil, fmt.Errorf("read header: %w", err)
	}

	qi, ai := -1, -1
	for i, col := range header {
		switch strings.ToLower(strings.TrimSpace(col)) {
		case "question":
			qi = i
		case "answers":
			ai = i
		}
	}
	if qi < 0 || ai < 0 {
		return nil, fmt.Errorf("header must contain question and answers columns, got %v", header)
	}

	var qs []domain.Question
	for row := 2; ; row++ {
		rec, err := cr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("row %d: %w", row, err)
		}

		text := strings.TrimSpace(rec[qi])
		if text == "" {
			return nil, fmt.Errorf("row %d: empty question", row)
		}

		accepted := make(map[string]struct{})
		for _, alt := range strings.Split(rec[ai], "|") {
			if n := answer.Normalize(alt); n != "" {
				accepted[n] = struct{}{}
			}
		}
		if len(accepted) == 0 {
			return nil, fmt.Errorf("row %d: question %q has no usable answers", row, text)
		}

		qs = append(qs, domain.Question{Text: text, Accepted: accepted})
	}

	if len(qs) == 0 {
		return nil, fmt.Errorf("no questions loaded")
	}
	return qs, nil
}

// LoadFile loads the question bank from a CSV file on disk.
func LoadFile(path string) ([]domain.Question, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open questions: %w", err)
	}
	defer f.Close()

	qs, err := Load(f)
	if err != nil {
		return nil, fmt.Errorf("load %s: %w", path, err)
	}
	return qs, nil
}

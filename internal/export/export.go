// Package export writes round results out of the engine: a fixed-width
// leaderboard CSV for record keeping and a console rendering for operators.
package export

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"

	"github.com/kamlaman/trivia/internal/domain"
)

// winnerColumns fixes the CSV shape regardless of how many winners a round
// actually produced. Rounds with fewer winners get empty cells.
const winnerColumns = 5

// WriteLeaderboardCSV writes one row per question with up to five
// winner/time/response-time column triples.
func WriteLeaderboardCSV(w io.Writer, lb domain.Leaderboard) error {
	cw := csv.NewWriter(w)

	header := make([]string, 0, 1+winnerColumns*3)
	header = append(header, "Question")
	for i := 1; i <= winnerColumns; i++ {
		header = append(header,
			fmt.Sprintf("Winner%d", i),
			fmt.Sprintf("Time%d", i),
			fmt.Sprintf("ResponseTime%d", i),
		)
	}
	if err := cw.Write(header); err != nil {
		return fmt.Errorf("write header: %w", err)
	}

	for _, e := range lb.Entries {
		row := make([]string, 1+winnerColumns*3)
		row[0] = e.Question
		for i := 0; i < winnerColumns; i++ {
			if i >= len(e.Winners) {
				continue
			}
			w := e.Winners[i]
			row[1+i*3] = w.SenderName
			row[2+i*3] = w.Timestamp.Format("15:04:05")
			row[3+i*3] = w.ResponseSeconds()
		}
		if err := cw.Write(row); err != nil {
			return fmt.Errorf("write row: %w", err)
		}
	}

	cw.Flush()
	return cw.Error()
}

// SaveLeaderboardCSV writes the leaderboard to a file, creating or
// truncating it.
func SaveLeaderboardCSV(path string, lb domain.Leaderboard) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create %s: %w", path, err)
	}
	defer f.Close()

	if err := WriteLeaderboardCSV(f, lb); err != nil {
		return err
	}
	return f.Close()
}

// RenderLeaderboard prints a human-readable summary, one block per question.
func RenderLeaderboard(w io.Writer, lb domain.Leaderboard) {
	for i, e := range lb.Entries {
		fmt.Fprintf(w, "Q%d: %s\n", i+1, e.Question)
		if len(e.Winners) == 0 {
			fmt.Fprintln(w, "  no correct answers")
			continue
		}
		for rank, win := range e.Winners {
			fmt.Fprintf(w, "  %d. %s - %s\n", rank+1, win.SenderName, win.ResponseSeconds())
		}
	}
}

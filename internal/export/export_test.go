package export_test

import (
	"bytes"
	"encoding/csv"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kamlaman/trivia/internal/domain"
	"github.com/kamlaman/trivia/internal/export"
)

var exportT0 = time.Date(2026, 8, 31, 20, 15, 0, 0, time.UTC)

func TestWriteLeaderboardCSV(t *testing.T) {
	lb := domain.Leaderboard{
		Entries: []domain.LeaderboardEntry{
			{
				Question: "Capital of France?",
				Winners: []domain.Winner{
					winner("bob", 2*time.Second),
					winner("alice", 3500*time.Millisecond),
				},
			},
			{Question: "Largest mammal?"},
		},
	}

	var buf bytes.Buffer
	require.NoError(t, export.WriteLeaderboardCSV(&buf, lb))

	records, err := csv.NewReader(&buf).ReadAll()
	require.NoError(t, err)
	require.Len(t, records, 3)

	header := records[0]
	require.Len(t, header, 16)
	assert.Equal(t, "Question", header[0])
	assert.Equal(t, "Winner1", header[1])
	assert.Equal(t, "ResponseTime5", header[15])

	first := records[1]
	assert.Equal(t, "Capital of France?", first[0])
	assert.Equal(t, []string{"bob", "20:15:02", "2.0s"}, first[1:4])
	assert.Equal(t, []string{"alice", "20:15:03", "3.5s"}, first[4:7])
	assert.Equal(t, emptyCells(9), first[7:])

	second := records[2]
	assert.Equal(t, "Largest mammal?", second[0])
	assert.Equal(t, emptyCells(15), second[1:])
}

func TestSaveLeaderboardCSV(t *testing.T) {
	path := t.TempDir() + "/leaderboard.csv"
	lb := domain.Leaderboard{
		Entries: []domain.LeaderboardEntry{
			{Question: "Capital of France?", Winners: []domain.Winner{winner("alice", time.Second)}},
		},
	}

	require.NoError(t, export.SaveLeaderboardCSV(path, lb))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "alice")
}

func TestRenderLeaderboard(t *testing.T) {
	lb := domain.Leaderboard{
		Entries: []domain.LeaderboardEntry{
			{
				Question: "Capital of France?",
				Winners: []domain.Winner{
					winner("bob", 2*time.Second),
					winner("alice", 3500*time.Millisecond),
				},
			},
			{Question: "Largest mammal?"},
		},
	}

	var buf bytes.Buffer
	export.RenderLeaderboard(&buf, lb)

	want := "Q1: Capital of France?\n" +
		"  1. bob - 2.0s\n" +
		"  2. alice - 3.5s\n" +
		"Q2: Largest mammal?\n" +
		"  no correct answers\n"
	assert.Equal(t, want, buf.String())
}

func winner(name string, rt time.Duration) domain.Winner {
	return domain.Winner{
		SenderID:     name,
		SenderName:   name,
		MessageID:    "msg-" + name,
		Timestamp:    exportT0.Add(rt),
		ResponseTime: rt,
	}
}

func emptyCells(n int) []string {
	return make([]string, n)
}

package answer_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/kamlaman/trivia/internal/answer"
)

func TestNormalize(t *testing.T) {
	tests := map[string]struct {
		in   string
		want string
	}{
		"already canonical":           {in: "paris", want: "paris"},
		"upper case":                  {in: "PARIS", want: "paris"},
		"surrounding whitespace":      {in: "  Paris  ", want: "paris"},
		"punctuation stripped":        {in: " Paris! ", want: "paris"},
		"internal whitespace":         {in: "new \t york", want: "new york"},
		"mixed punctuation":           {in: "it's-a_me!", want: "itsa_me"},
		"digits kept":                 {in: "Route 66.", want: "route 66"},
		"unicode letters kept":        {in: "ÉLÉPHANT", want: "éléphant"},
		"only punctuation":            {in: "?!...", want: ""},
		"empty":                       {in: "", want: ""},
		"punctuation between words":   {in: "rock-and-roll", want: "rockandroll"},
		"whitespace around separator": {in: "rock - and - roll", want: "rock and roll"},
	}

	for name, tt := range tests {
		t.Run(name, func(t *testing.T) {
			assert.Equal(t, tt.want, answer.Normalize(tt.in))
		})
	}
}

func TestMatch(t *testing.T) {
	accepted := map[string]struct{}{
		"paris": {},
		"4":     {},
	}

	tests := map[string]struct {
		normalized string
		accepted   map[string]struct{}
		want       bool
	}{
		"member":                   {normalized: "paris", accepted: accepted, want: true},
		"not member":               {normalized: "london", accepted: accepted, want: false},
		"no substring match":       {normalized: "paris france", accepted: accepted, want: false},
		"empty submission":         {normalized: "", accepted: accepted, want: false},
		"empty set never matches":  {normalized: "paris", accepted: map[string]struct{}{}, want: false},
		"nil set never matches":    {normalized: "paris", accepted: nil, want: false},
		"digit answer":             {normalized: "4", accepted: accepted, want: true},
		"raw text is not accepted": {normalized: "Paris", accepted: accepted, want: false},
	}

	for name, tt := range tests {
		t.Run(name, func(t *testing.T) {
			assert.Equal(t, tt.want, answer.Match(tt.normalized, tt.accepted))
		})
	}
}

/*
Copyright © 2026 Seednode <seednode@seedno.de>
*/

package quiz

import (
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"testing"
)

func TestValueDecoding(t *testing.T) {
	tests := []struct {
		in   string
		want Value
	}{
		{`5`, "5"},
		{`5.0`, "5"},
		{`"5"`, "5"},
		{`" Piggy bank "`, "Piggy bank"},
		{`null`, ""},
		{`-2.5`, "-2.5"},
	}

	for _, tt := range tests {
		var v Value
		if err := json.Unmarshal([]byte(tt.in), &v); err != nil {
			t.Fatalf("%s: %v", tt.in, err)
		}
		if v != tt.want {
			t.Errorf("%s decoded to %q, want %q", tt.in, v, tt.want)
		}
	}

	var v Value
	if err := json.Unmarshal([]byte(`true`), &v); err == nil {
		t.Fatal("boolean answer accepted")
	}

	if !Value("piggy bank").Equal("Piggy Bank") {
		t.Fatal("text answers should match regardless of case")
	}

	out, _ := json.Marshal([]Value{"5", "Food"})
	if string(out) != `[5,"Food"]` {
		t.Fatalf("encoded as %s", out)
	}
}

func TestBankSkipsSeenQuestions(t *testing.T) {
	b, err := NewBank(map[int][]Question{
		1: {
			{Prompt: "one", Options: opts("1", "2"), Correct: "1", Points: 10},
			{Prompt: "two", Options: opts("1", "2"), Correct: "2", Points: 10},
		},
	})
	if err != nil {
		t.Fatal(err)
	}
	b.pick = func(int) int { return 0 }

	ctx := context.Background()

	q, err := b.NextQuestion(ctx, QuestionRequest{Grade: 1})
	if err != nil || q.ID != "g1-1" {
		t.Fatalf("first = %+v, %v", q, err)
	}

	q, _ = b.NextQuestion(ctx, QuestionRequest{Grade: 1, Seen: []string{"g1-1"}})
	if q.ID != "g1-2" {
		t.Fatalf("second = %+v", q)
	}

	// Once everything was asked, questions repeat rather than run out.
	q, err = b.NextQuestion(ctx, QuestionRequest{Grade: 1, Seen: []string{"g1-1", "g1-2"}})
	if err != nil || q.ID != "g1-1" {
		t.Fatalf("repeat = %+v, %v", q, err)
	}

	// Higher grades fall back to the closest lower one.
	if q, err := b.NextQuestion(ctx, QuestionRequest{Grade: 4}); err != nil || q.ID != "g1-1" {
		t.Fatalf("fallback = %+v, %v", q, err)
	}
}

func TestBankDifficulty(t *testing.T) {
	b := DefaultBank()
	b.pick = func(n int) int { return n - 1 }

	for _, d := range []Difficulty{DifficultyEasy, DifficultyHard} {
		q, err := b.NextQuestion(context.Background(), QuestionRequest{Grade: 2, Difficulty: d})
		if err != nil {
			t.Fatal(err)
		}
		if q.Difficulty != d {
			t.Errorf("asked for %s, got %s question %q", d, q.Difficulty, q.Prompt)
		}
	}
}

func TestNewBankRejectsBadQuestions(t *testing.T) {
	tests := map[string]map[int][]Question{
		"empty":          {},
		"bad grade":      {0: {{Prompt: "x", Options: opts("1", "2"), Correct: "1"}}},
		"no prompt":      {1: {{Options: opts("1", "2"), Correct: "1"}}},
		"one option":     {1: {{Prompt: "x", Options: opts("1"), Correct: "1"}}},
		"wrong correct":  {1: {{Prompt: "x", Options: opts("1", "2"), Correct: "3"}}},
		"negative score": {1: {{Prompt: "x", Options: opts("1", "2"), Correct: "1", Points: -1}}},
	}

	for name, grades := range tests {
		if _, err := NewBank(grades); err == nil {
			t.Errorf("%s: accepted", name)
		}
	}

	if _, err := NewBank(nil); !errors.Is(err, ErrNoQuestions) {
		t.Fatalf("nil bank: %v", err)
	}
}

func TestLoadBank(t *testing.T) {
	path := filepath.Join(t.TempDir(), "questions.json")
	data := `{
  "2": [
    {"id": "coins", "q": "How many 5 coin pieces make 20?", "options": [4, 5, 3], "correct": 4, "points": 12, "category": "Money"}
  ]
}`
	if err := os.WriteFile(path, []byte(data), 0o600); err != nil {
		t.Fatal(err)
	}

	b, err := LoadBank(path)
	if err != nil {
		t.Fatal(err)
	}

	q, err := b.NextQuestion(context.Background(), QuestionRequest{Grade: 2})
	if err != nil {
		t.Fatal(err)
	}
	if q.ID != "coins" || q.Correct != "4" || len(q.Options) != 3 || q.Points != 12 {
		t.Fatalf("loaded %+v", q)
	}

	if _, err := LoadBank(filepath.Join(t.TempDir(), "missing.json")); err == nil {
		t.Fatal("missing file accepted")
	}
}

func TestBankCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if _, err := DefaultBank().NextQuestion(ctx, QuestionRequest{Grade: 1}); !errors.Is(err, context.Canceled) {
		t.Fatalf("got %v", err)
	}
}

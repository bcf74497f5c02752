/*
Copyright © 2026 Seednode <seednode@seedno.de>
*/

package quiz

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math/rand/v2"
	"os"
	"slices"
	"strconv"
	"strings"
)

// Value is an answer or option. Clients send numbers and strings
// interchangeably, so both decode to the same canonical text.
type Value string

func (v *Value) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)

	switch {
	case bytes.Equal(b, []byte("null")):
		*v = ""
	case len(b) > 0 && b[0] == '"':
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		*v = Value(strings.TrimSpace(s))
	default:
		f, err := strconv.ParseFloat(string(b), 64)
		if err != nil {
			return fmt.Errorf("answer must be a string or number: %s", b)
		}
		*v = Value(strconv.FormatFloat(f, 'f', -1, 64))
	}

	return nil
}

func (v Value) MarshalJSON() ([]byte, error) {
	if _, err := strconv.ParseFloat(string(v), 64); err == nil {
		return []byte(v), nil
	}

	return json.Marshal(string(v))
}

func (v Value) Equal(o Value) bool {
	return strings.EqualFold(string(v), string(o))
}

type Question struct {
	ID         string     `json:"id"`
	Prompt     string     `json:"q"`
	Options    []Value    `json:"options"`
	Correct    Value      `json:"correct"`
	Points     int        `json:"points"`
	Category   string     `json:"category,omitempty"`
	Difficulty Difficulty `json:"difficulty,omitempty"`
}

func (q Question) validate() error {
	switch {
	case q.Prompt == "":
		return errors.New("question has no prompt")
	case len(q.Options) < 2:
		return fmt.Errorf("question %q needs at least 2 options", q.Prompt)
	case q.Points < 0:
		return fmt.Errorf("question %q has negative points", q.Prompt)
	case !slices.ContainsFunc(q.Options, q.Correct.Equal):
		return fmt.Errorf("question %q: correct answer %q is not an option", q.Prompt, q.Correct)
	}

	return nil
}

type QuestionRequest struct {
	Grade      int
	Difficulty Difficulty
	Round      int
	Seen       []string
}

// QuestionProvider supplies the next question for a room.
type QuestionProvider interface {
	NextQuestion(ctx context.Context, req QuestionRequest) (Question, error)
}

var ErrNoQuestions = errors.New("question bank is empty")

// Bank is an in-memory question table keyed by grade.
type Bank struct {
	grades map[int][]Question
	pick   func(n int) int
}

func NewBank(grades map[int][]Question) (*Bank, error) {
	b := &Bank{
		grades: make(map[int][]Question, len(grades)),
		pick:   rand.IntN,
	}

	for grade, questions := range grades {
		if grade < 1 {
			return nil, fmt.Errorf("invalid grade %d in question bank", grade)
		}

		for i, q := range questions {
			if err := q.validate(); err != nil {
				return nil, fmt.Errorf("grade %d: %w", grade, err)
			}
			if q.ID == "" {
				q.ID = fmt.Sprintf("g%d-%d", grade, i+1)
			}
			b.grades[grade] = append(b.grades[grade], q)
		}
	}

	if len(b.grades) == 0 {
		return nil, ErrNoQuestions
	}

	return b, nil
}

// LoadBank reads a JSON object mapping grade to a list of questions.
func LoadBank(path string) (*Bank, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var grades map[int][]Question
	if err := json.Unmarshal(data, &grades); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}

	return NewBank(grades)
}

func (b *Bank) NextQuestion(ctx context.Context, req QuestionRequest) (Question, error) {
	if err := ctx.Err(); err != nil {
		return Question{}, err
	}

	pool := b.forGrade(req.Grade)
	if len(pool) == 0 {
		return Question{}, ErrNoQuestions
	}

	if req.Difficulty != "" && req.Difficulty != DifficultyAuto {
		matching := slices.DeleteFunc(slices.Clone(pool), func(q Question) bool {
			return q.Difficulty != "" && q.Difficulty != req.Difficulty
		})
		if len(matching) > 0 {
			pool = matching
		}
	}

	fresh := slices.DeleteFunc(slices.Clone(pool), func(q Question) bool {
		return slices.Contains(req.Seen, q.ID)
	})
	if len(fresh) > 0 {
		pool = fresh
	}

	return pool[b.pick(len(pool))], nil
}

// forGrade falls back to the closest lower grade, then to the lowest one.
func (b *Bank) forGrade(grade int) []Question {
	for g := grade; g >= 1; g-- {
		if q := b.grades[g]; len(q) > 0 {
			return q
		}
	}

	lowest := 0
	for g := range b.grades {
		if lowest == 0 || g < lowest {
			lowest = g
		}
	}

	return b.grades[lowest]
}

// DefaultBank is the built-in grade 1 to 3 question set.
func DefaultBank() *Bank {
	b, err := NewBank(defaultQuestions)
	if err != nil {
		panic(err)
	}

	return b
}

func opts(values ...string) []Value {
	out := make([]Value, len(values))
	for i, v := range values {
		out[i] = Value(v)
	}

	return out
}

var defaultQuestions = map[int][]Question{
	1: {
		{Prompt: "How much is 2 + 3?", Options: opts("5", "4", "6", "3"), Correct: "5", Points: 10, Category: "Math", Difficulty: DifficultyEasy},
		{Prompt: "Which number comes after 7?", Options: opts("8", "6", "9", "5"), Correct: "8", Points: 10, Category: "Math", Difficulty: DifficultyEasy},
		{Prompt: "You have 3 coins and find 2 more. How many coins do you have?", Options: opts("5", "4", "6", "1"), Correct: "5", Points: 10, Category: "Money", Difficulty: DifficultyEasy},
		{Prompt: "Where is the safest place to keep your savings?", Options: opts("Piggy bank", "Under the bed", "In your pocket", "On the table"), Correct: "Piggy bank", Points: 10, Category: "Saving", Difficulty: DifficultyEasy},
		{Prompt: "A lollipop costs 2 coins. You have 5. How many are left after buying one?", Options: opts("3", "2", "4", "7"), Correct: "3", Points: 10, Category: "Money", Difficulty: DifficultyMedium},
	},
	2: {
		{Prompt: "How much is 15 + 7?", Options: opts("22", "21", "23", "20"), Correct: "22", Points: 12, Category: "Math", Difficulty: DifficultyEasy},
		{Prompt: "How much is 20 - 8?", Options: opts("12", "13", "11", "14"), Correct: "12", Points: 12, Category: "Math", Difficulty: DifficultyEasy},
		{Prompt: "You save 5 coins every week. How many do you have after 4 weeks?", Options: opts("20", "9", "15", "25"), Correct: "20", Points: 12, Category: "Saving", Difficulty: DifficultyMedium},
		{Prompt: "Which one is a need, not a want?", Options: opts("Food", "Toy car", "Video game", "Candy"), Correct: "Food", Points: 12, Category: "Spending", Difficulty: DifficultyEasy},
		{Prompt: "A book costs 18 coins and you have 11. How many more do you need?", Options: opts("7", "8", "6", "29"), Correct: "7", Points: 12, Category: "Money", Difficulty: DifficultyHard},
	},
	3: {
		{Prompt: "How much is 8 × 6?", Options: opts("48", "46", "50", "44"), Correct: "48", Points: 15, Category: "Math", Difficulty: DifficultyMedium},
		{Prompt: "How much is 72 ÷ 8?", Options: opts("9", "8", "10", "7"), Correct: "9", Points: 15, Category: "Math", Difficulty: DifficultyMedium},
		{Prompt: "Three friends share 36 coins equally. How many does each get?", Options: opts("12", "11", "13", "9"), Correct: "12", Points: 15, Category: "Money", Difficulty: DifficultyMedium},
		{Prompt: "What do we call money the bank pays you for saving?", Options: opts("Interest", "Change", "Tax", "Price"), Correct: "Interest", Points: 15, Category: "Saving", Difficulty: DifficultyHard},
		{Prompt: "You earn 6 coins a day for 7 days and spend 10. How many are left?", Options: opts("32", "42", "36", "30"), Correct: "32", Points: 15, Category: "Budget", Difficulty: DifficultyHard},
	},
}

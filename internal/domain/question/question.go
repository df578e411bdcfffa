// Package question holds the records exchanged with the question provider.
package question

import (
	"fmt"

	"github.com/go-playground/validator/v10"
)

var validate = validator.New()

// Difficulty is the requested level of a generated question.
type Difficulty string

const (
	Easy   Difficulty = "Easy"
	Medium Difficulty = "Medium"
	Hard   Difficulty = "Hard"
)

// Difficulties lists the supported levels in display order.
var Difficulties = []Difficulty{Easy, Medium, Hard}

// Topics lists the supported data-structure and algorithm topics.
var Topics = []string{
	"Arrays", "Linked Lists", "Trees", "Graphs",
	"Dynamic Programming", "Strings", "Recursion",
	"Sorting", "Searching", "Stack", "Queue",
}

// ValidTopic reports whether topic is part of the catalog.
func ValidTopic(topic string) bool {
	for _, t := range Topics {
		if t == topic {
			return true
		}
	}
	return false
}

// ValidDifficulty reports whether d is a supported level.
func ValidDifficulty(d Difficulty) bool {
	for _, known := range Difficulties {
		if known == d {
			return true
		}
	}
	return false
}

// TestCase is an illustrative example attached to a question.
type TestCase struct {
	Input          string `json:"input"`
	ExpectedOutput string `json:"expected_output"`
	Explanation    string `json:"explanation"`
}

// Question is a generated interview problem. It is immutable once produced.
type Question struct {
	ID           string     `json:"id"`
	Topic        string     `json:"topic,omitempty"`
	Difficulty   Difficulty `json:"difficulty,omitempty"`
	Title        string     `json:"title" validate:"required"`
	Description  string     `json:"description" validate:"required"`
	InputFormat  string     `json:"input_format"`
	OutputFormat string     `json:"output_format"`
	Example      string     `json:"example"`
	Constraints  []string   `json:"constraints"`
	TestCases    []TestCase `json:"test_cases" validate:"max=50"`
}

// Validate checks that the provider returned a usable question.
func (q Question) Validate() error {
	if err := validate.Struct(q); err != nil {
		return fmt.Errorf("invalid question: %w", err)
	}
	return nil
}

package tutor

import (
	"fmt"
	"strings"

	"dsacoach/internal/domain/question"
)

const (
	systemQuestion   = "You are an expert coding interview question generator."
	systemReview     = "You are an expert code reviewer and algorithm specialist."
	systemTests      = "You are an expert test case generator."
	systemComplexity = "You are an expert algorithm complexity analyzer."
)

func questionPrompt(topic string, difficulty question.Difficulty) string {
	return fmt.Sprintf(`Create a %s level coding problem about %s that can be solved in a programming interview.

Respond with a single JSON object and nothing else, using exactly these keys:
{
  "title": "Concise problem title",
  "description": "Detailed problem description",
  "input_format": "Explanation of the input parameters",
  "output_format": "Explanation of the expected output",
  "example": "Worked example",
  "constraints": ["constraint"],
  "test_cases": [{"input": "...", "expected_output": "...", "explanation": "..."}]
}

The problem must be solvable in Python and exercise the core ideas of the topic.`,
		strings.ToLower(string(difficulty)), topic)
}

func reviewPrompt(q question.Question, code string) string {
	return fmt.Sprintf(`Evaluate the following solution.

Problem: %s
Description: %s

Solution:
%s

Respond with a single JSON object and nothing else:
{
  "is_correct": true,
  "feedback": "Detailed analysis",
  "correct_solution": "Correct Python implementation",
  "time_complexity": "Big O",
  "space_complexity": "Big O",
  "improvements": ["suggestion"]
}`, q.Title, q.Description, fence(code))
}

func testsPrompt(q question.Question, code string) string {
	return fmt.Sprintf(`Write Python test code for the following solution.

Problem: %s
Description: %s

Solution:
%s

Cover typical cases and edge cases using plain assert statements with meaningful messages.
Call the solution's functions directly; do not redefine them and do not use a test framework.
Return only the Python test code in a single python code block.`, q.Title, q.Description, fence(code))
}

func complexityPrompt(code string) string {
	return fmt.Sprintf(`Analyze the time and space complexity of this Python code:

%s

Respond with a single JSON object and nothing else:
{
  "time_complexity": "O(n)",
  "space_complexity": "O(1)",
  "explanation": "Complexity breakdown",
  "optimization_suggestions": ["suggestion"]
}`, fence(code))
}

func fence(code string) string {
	return "```python\n" + code + "\n```"
}

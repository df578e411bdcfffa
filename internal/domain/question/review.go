package question

// Review is the provider's judgement of a submitted solution.
type Review struct {
	IsCorrect       bool     `json:"is_correct"`
	Feedback        string   `json:"feedback"`
	CorrectSolution string   `json:"correct_solution"`
	TimeComplexity  string   `json:"time_complexity"`
	SpaceComplexity string   `json:"space_complexity"`
	Improvements    []string `json:"improvements"`
}

// Complexity is the provider's time and space analysis of a piece of code.
type Complexity struct {
	TimeComplexity          string   `json:"time_complexity"`
	SpaceComplexity         string   `json:"space_complexity"`
	Explanation             string   `json:"explanation"`
	OptimizationSuggestions []string `json:"optimization_suggestions"`
}

// UnknownComplexity is reported when the analysis cannot be obtained.
func UnknownComplexity() Complexity {
	return Complexity{
		TimeComplexity:          "N/A",
		SpaceComplexity:         "N/A",
		Explanation:             "Unable to analyze",
		OptimizationSuggestions: []string{},
	}
}

package model

// FixOutcome is one observation fed back into the learned state.
type FixOutcome struct {
	Fingerprint string  `yaml:"fingerprint"`
	FixType     FixType `yaml:"fix_type"`
	Success     bool    `yaml:"success"`
	Framework   string  `yaml:"framework,omitempty"`
	TestType    string  `yaml:"test_type,omitempty"`
	Example     string  `yaml:"-"`
}

// PatternStats aggregates outcomes for one code fingerprint.
type PatternStats struct {
	Attempts  int             `yaml:"attempts"`
	Successes int             `yaml:"successes"`
	FixTypes  map[FixType]int `yaml:"fix_types"`
	Examples  []string        `yaml:"examples,omitempty"`
}

// FixTypeStats aggregates outcomes for one fix type.
type FixTypeStats struct {
	Attempts  int      `yaml:"attempts"`
	Successes int      `yaml:"successes"`
	Contexts  []string `yaml:"contexts,omitempty"`
}

// SuccessRate returns successes/attempts, or 0 when nothing was attempted.
func (s FixTypeStats) SuccessRate() float64 {
	if s.Attempts == 0 {
		return 0
	}

	return float64(s.Successes) / float64(s.Attempts)
}

// SuccessRate returns successes/attempts, or 0 when nothing was attempted.
func (s PatternStats) SuccessRate() float64 {
	if s.Attempts == 0 {
		return 0
	}

	return float64(s.Successes) / float64(s.Attempts)
}

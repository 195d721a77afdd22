package model

import (
	"fmt"
	"strings"
)

type Algorithm string

const (
	AlgorithmGenetic Algorithm = "genetic"
	AlgorithmLinear  Algorithm = "linear"
	// AlgorithmSimplex is the name the front-end uses for the linear solver
	AlgorithmSimplex Algorithm = "simplex"
)

// Normalize maps aliases to the canonical algorithm name.
func (a Algorithm) Normalize() (Algorithm, error) {
	switch Algorithm(strings.ToLower(strings.TrimSpace(string(a)))) {
	case AlgorithmGenetic:
		return AlgorithmGenetic, nil
	case AlgorithmLinear, AlgorithmSimplex:
		return AlgorithmLinear, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrInvalidAlgorithm, string(a))
	}
}

// Request describes a single invocation of a worker.
type Request struct {
	Algorithm      Algorithm `json:"algorithm" yaml:"algorithm"`
	TutorsPath     string    `json:"tutors_path" yaml:"tutors_path"`
	CoursesPath    string    `json:"courses_path" yaml:"courses_path"`
	MinGrade       float64   `json:"min_grade" yaml:"min_grade"`
	PreferenceFlag int       `json:"preference_flag" yaml:"preference_flag"`
	// genetic only, both must be set together
	Generations *int `json:"generations,omitempty" yaml:"generations,omitempty"`
	Population  *int `json:"population,omitempty" yaml:"population,omitempty"`
}

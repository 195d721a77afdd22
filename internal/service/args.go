package service

import (
	"fmt"
	"path/filepath"
	"strconv"

	"github.com/tutoralloc/allocator/internal/model"
)

// Workers resolves requests to worker executables.
type Workers struct {
	Dir     string
	Genetic string
	Linear  string
}

func WorkersFromConfig(cfg model.Workers) Workers {
	return Workers{
		Dir:     cfg.Dir,
		Genetic: cfg.Genetic,
		Linear:  cfg.Linear,
	}
}

// Command builds the command for req. Workers parse arguments by position,
// so the argument list has always six entries:
//
//	tutors courses minGrade preferenceFlag generations population
//
// Algorithms without generations/population get "0" placeholders.
func (w Workers) Command(req model.Request) (Command, error) {
	algorithm, err := req.Algorithm.Normalize()
	if err != nil {
		return Command{}, err
	}

	var generations, population string
	switch algorithm {
	case model.AlgorithmGenetic:
		if req.Generations == nil || req.Population == nil {
			return Command{}, fmt.Errorf("%w: genetic algorithm requires generations and population", model.ErrMissingParameters)
		}
		generations = strconv.Itoa(*req.Generations)
		population = strconv.Itoa(*req.Population)
	default:
		generations, population = "0", "0"
	}

	return Command{
		Path: w.executable(algorithm),
		Args: []string{
			req.TutorsPath,
			req.CoursesPath,
			strconv.FormatFloat(req.MinGrade, 'f', -1, 64),
			strconv.Itoa(req.PreferenceFlag),
			generations,
			population,
		},
	}, nil
}

func (w Workers) executable(algorithm model.Algorithm) string {
	name := w.Linear
	if algorithm == model.AlgorithmGenetic {
		name = w.Genetic
	}
	if w.Dir == "" || filepath.IsAbs(name) {
		return name
	}
	return filepath.Join(w.Dir, name)
}

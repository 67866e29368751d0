package board

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrNotFound reports an unknown task or checklist item id.
	ErrNotFound = errors.New("board: not found")
	// ErrNextUnavailable reports an advance attempted while Requirements are
	// open or before every KPI is done.
	ErrNextUnavailable = errors.New("board: next task is not available")
	// ErrNoSuccessor reports an advance from a task without successors.
	ErrNoSuccessor = errors.New("board: task has no successor")
	// ErrDuplicateTask reports an attempt to add a task id that already exists.
	ErrDuplicateTask = errors.New("board: duplicate task id")
)

func notFound(kind, id string) error {
	return fmt.Errorf("%w: %s %s", ErrNotFound, kind, id)
}

// IntegrityProblem is a single reason a board definition was rejected.
type IntegrityProblem struct {
	Path    string
	Message string
}

func (p IntegrityProblem) Error() string {
	return fmt.Sprintf("%s: %s", p.Path, p.Message)
}

// GraphIntegrityError aggregates every problem found while building a board.
type GraphIntegrityError struct {
	Problems []IntegrityProblem
}

func (e *GraphIntegrityError) add(path, format string, args ...any) {
	e.Problems = append(e.Problems, IntegrityProblem{Path: path, Message: fmt.Sprintf(format, args...)})
}

func (e *GraphIntegrityError) hasProblems() bool {
	return len(e.Problems) > 0
}

func (e *GraphIntegrityError) Error() string {
	msgs := make([]string, 0, len(e.Problems))
	for _, p := range e.Problems {
		msgs = append(msgs, p.Error())
	}
	return "board: graph integrity: " + strings.Join(msgs, "; ")
}

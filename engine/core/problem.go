package core

import (
	"maps"
	"net/http"
)

// Problem captures the information returned in an error response.
type Problem struct {
	Title  string
	Status int
	Detail string
	Code   string
	Extras map[string]any
}

// NormalizeProblem fills the status and title defaults.
func NormalizeProblem(problem *Problem) *Problem {
	if problem == nil {
		problem = &Problem{}
	}
	if problem.Status == 0 {
		problem.Status = http.StatusInternalServerError
	}
	if problem.Title == "" {
		problem.Title = http.StatusText(problem.Status)
	}
	return problem
}

// BuildProblemBody assembles the serialized representation of the problem.
// Extras never override the canonical keys.
func BuildProblemBody(problem *Problem) map[string]any {
	body := map[string]any{
		"status": problem.Status,
		"error":  problem.Title,
	}
	if problem.Detail != "" {
		body["details"] = problem.Detail
	}
	if problem.Code != "" {
		body["code"] = problem.Code
	}
	extras := maps.Clone(problem.Extras)
	for _, key := range []string{"status", "error", "details", "code"} {
		delete(extras, key)
	}
	maps.Copy(body, extras)
	return body
}

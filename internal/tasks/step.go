// Package tasks splits a request into steps with the model and executes the
// steps one by one under a retry policy.
package tasks

import (
	"errors"
	"fmt"
	"regexp"
	"sort"
	"strings"

	"github.com/tidwall/gjson"
)

var (
	// ErrNoJSON means the model reply contained no JSON block.
	ErrNoJSON = errors.New("no JSON found in reply")
	// ErrInvalidPlan means the JSON did not describe a list of steps.
	ErrInvalidPlan = errors.New("invalid plan")
)

// Step is one unit of work in a plan.
type Step struct {
	Index       int    `json:"index" yaml:"index"`
	Description string `json:"description" yaml:"description"`
}

var (
	jsonBlock      = regexp.MustCompile(`\{[\s\S]*\}|\[[\s\S]*\]`)
	reasoningBlock = regexp.MustCompile(`(?s)<think>.*?</think>`)
)

// StripReasoning removes <think>...</think> sections emitted by reasoning models.
func StripReasoning(s string) string {
	return strings.TrimSpace(reasoningBlock.ReplaceAllString(s, ""))
}

// wrapperKeys are object fields that may hold the step array.
var wrapperKeys = []string{"steps", "tasks", "plan"}

// ExtractSteps parses the first JSON block in text as a plan: either a list of
// {index, description} objects or an object holding that list under steps,
// tasks or plan. Missing indexes are filled positionally; the result is sorted
// by index.
func ExtractSteps(text string) ([]Step, error) {
	block := jsonBlock.FindString(StripReasoning(text))
	if block == "" {
		return nil, ErrNoJSON
	}
	if !gjson.Valid(block) {
		return nil, fmt.Errorf("%w: malformed JSON", ErrInvalidPlan)
	}

	root := gjson.Parse(block)
	list := root
	if root.IsObject() {
		list = gjson.Result{}
		for _, key := range wrapperKeys {
			if r := root.Get(key); r.IsArray() {
				list = r
				break
			}
		}
		if !list.IsArray() {
			return nil, fmt.Errorf("%w: object has no steps, tasks or plan list", ErrInvalidPlan)
		}
	}
	return stepsFromJSON(list)
}

func stepsFromJSON(list gjson.Result) ([]Step, error) {
	items := list.Array()
	if len(items) == 0 {
		return nil, fmt.Errorf("%w: no steps", ErrInvalidPlan)
	}
	steps := make([]Step, 0, len(items))
	for i, item := range items {
		var s Step
		switch {
		case item.Type == gjson.String:
			s.Description = item.String()
		case item.IsObject():
			s.Description = item.Get("description").String()
			if idx := item.Get("index"); idx.Exists() {
				s.Index = int(idx.Int())
				if s.Index <= 0 {
					return nil, fmt.Errorf("%w: step %d has index %s", ErrInvalidPlan, i+1, idx.Raw)
				}
			}
		default:
			return nil, fmt.Errorf("%w: step %d is %s", ErrInvalidPlan, i+1, item.Type)
		}
		steps = append(steps, s)
	}
	return normalizeSteps(steps)
}

// normalizeSteps fills zero indexes positionally, sorts by index and rejects
// blank descriptions and duplicate indexes.
func normalizeSteps(steps []Step) ([]Step, error) {
	out := make([]Step, len(steps))
	for i, s := range steps {
		s.Description = strings.TrimSpace(s.Description)
		if s.Description == "" {
			return nil, fmt.Errorf("%w: step %d has no description", ErrInvalidPlan, i+1)
		}
		if s.Index == 0 {
			s.Index = i + 1
		}
		out[i] = s
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Index < out[j].Index })
	for i := 1; i < len(out); i++ {
		if out[i].Index == out[i-1].Index {
			return nil, fmt.Errorf("%w: duplicate index %d", ErrInvalidPlan, out[i].Index)
		}
	}
	return out, nil
}

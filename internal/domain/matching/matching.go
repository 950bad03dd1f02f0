// Package matching evaluates how well a candidate's skills cover a project's
// requirements and classifies the result into a match tier.
package matching

import (
	"fmt"

	"github.com/okian/allot/internal/domain/model"
)

// CompetencyRule selects how per-skill competency checks are combined.
type CompetencyRule int

const (
	// RuleAll requires every matching skill to meet its required level.
	RuleAll CompetencyRule = iota
	// RuleLastMatch keeps only the verdict of the last matching skill in
	// requirement order. It reproduces the legacy allocator.
	RuleLastMatch
)

// ParseRule maps a config value to a CompetencyRule.
func ParseRule(s string) (CompetencyRule, error) {
	switch s {
	case "", "all":
		return RuleAll, nil
	case "last":
		return RuleLastMatch, nil
	}
	return RuleAll, fmt.Errorf("unknown competency rule %q", s)
}

// Result is the evaluation of one candidate against one project.
type Result struct {
	// Required is the number of skills the project requires.
	Required int
	// Matching holds the required skills the candidate also has, in requirement
	// order, tagged with the candidate's own level.
	Matching []model.Skill
	// Adequate holds, per matching skill, whether the candidate's level meets the requirement.
	Adequate []bool
	// CompetencyMet combines Adequate under the evaluator's rule.
	CompetencyMet bool
}

// Coverage returns the matched fraction of required skills; 0 for a project
// without requirements.
func (r Result) Coverage() float64 {
	if r.Required == 0 {
		return 0
	}
	return float64(len(r.Matching)) / float64(r.Required)
}

// Tier classifies the result.
func (r Result) Tier() Tier {
	return Classify(r.Required, len(r.Matching), r.CompetencyMet)
}

// Evaluator compares skill sets. The zero value uses RuleAll.
type Evaluator struct {
	rule CompetencyRule
}

// NewEvaluator returns an evaluator using rule.
func NewEvaluator(rule CompetencyRule) Evaluator {
	return Evaluator{rule: rule}
}

// Evaluate matches required against held by exact skill name.
func (e Evaluator) Evaluate(required, held []model.Skill) Result {
	levels := make(map[string]model.Competency, len(held))
	for _, s := range held {
		if _, dup := levels[s.Name]; !dup {
			levels[s.Name] = s.Competency
		}
	}

	res := Result{Required: len(required)}
	met := true
	for _, req := range required {
		lvl, ok := levels[req.Name]
		if !ok {
			continue
		}
		adequate := lvl.Satisfies(req.Competency)
		res.Matching = append(res.Matching, model.Skill{Name: req.Name, Competency: lvl})
		res.Adequate = append(res.Adequate, adequate)
		if e.rule == RuleLastMatch {
			met = adequate
		} else {
			met = met && adequate
		}
	}
	if e.rule == RuleLastMatch && len(res.Matching) == 0 {
		met = false
	}
	res.CompetencyMet = met
	return res
}

// Package seo evaluates on-page SEO rules against a work item.
//
// Rules are expr-lang boolean expressions such as
//
//	word_count >= 800 && keyword_in_title
//
// evaluated against the variables produced by [BuildEnv].
package seo

import (
	"errors"
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/expr-lang/expr"

	"github.com/AmazingeventParis/SEOproject-sub001/internal/workitem"
)

// ErrInvalidRule indicates a rule that does not compile to a boolean
// expression or fails at evaluation.
var ErrInvalidRule = errors.New("invalid seo rule")

// Report lists the rules that passed and failed, in rule order.
type Report struct {
	Passed []string
	Failed []string
}

// OK reports whether every rule passed.
func (r Report) OK() bool {
	return len(r.Failed) == 0
}

// BuildEnv returns the rule variables for item. metaDescription is the
// candidate meta description, which is not yet stored on the item when the
// rules run.
func BuildEnv(item *workitem.WorkItem, metaDescription string) map[string]any {
	var h2, images, withAlt, faqs int
	for _, b := range item.Blocks {
		switch b.Type {
		case workitem.BlockH2:
			h2++
		case workitem.BlockFAQ:
			faqs++
		case workitem.BlockImage:
			images++
			if strings.TrimSpace(b.ImageAlt) != "" {
				withAlt++
			}
		}
	}
	keyword := strings.ToLower(strings.TrimSpace(item.Keyword))
	return map[string]any{
		"word_count":              item.WordCount(),
		"title":                   item.Title,
		"title_length":            utf8.RuneCountInString(item.Title),
		"keyword":                 item.Keyword,
		"keyword_in_title":        keyword != "" && strings.Contains(strings.ToLower(item.Title), keyword),
		"h2_count":                h2,
		"block_count":             len(item.Blocks),
		"image_count":             images,
		"images_with_alt":         withAlt,
		"faq_count":               faqs,
		"meta_description_length": utf8.RuneCountInString(metaDescription),
	}
}

// Evaluate runs every rule against env. Blank rules are ignored. A rule
// that does not compile or does not yield a boolean aborts with
// [ErrInvalidRule].
func Evaluate(rules []string, env map[string]any) (Report, error) {
	var report Report
	for _, rule := range rules {
		rule = strings.TrimSpace(rule)
		if rule == "" {
			continue
		}
		ok, err := eval(rule, env)
		if err != nil {
			return Report{}, err
		}
		if ok {
			report.Passed = append(report.Passed, rule)
		} else {
			report.Failed = append(report.Failed, rule)
		}
	}
	return report, nil
}

// Validate compiles every rule against an empty work item's environment.
func Validate(rules []string) error {
	env := BuildEnv(&workitem.WorkItem{}, "")
	for _, rule := range rules {
		if strings.TrimSpace(rule) == "" {
			continue
		}
		if _, err := expr.Compile(rule, expr.Env(env), expr.AsBool()); err != nil {
			return fmt.Errorf("%w %q: %v", ErrInvalidRule, rule, err)
		}
	}
	return nil
}

func eval(rule string, env map[string]any) (bool, error) {
	program, err := expr.Compile(rule, expr.Env(env), expr.AsBool())
	if err != nil {
		return false, fmt.Errorf("%w %q: %v", ErrInvalidRule, rule, err)
	}
	output, err := expr.Run(program, env)
	if err != nil {
		return false, fmt.Errorf("%w %q: %v", ErrInvalidRule, rule, err)
	}
	result, ok := output.(bool)
	if !ok {
		return false, fmt.Errorf("%w %q: got %T", ErrInvalidRule, rule, output)
	}
	return result, nil
}

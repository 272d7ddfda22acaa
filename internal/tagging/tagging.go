// Package tagging suggests tags for newly synced transactions from
// description patterns.
package tagging

import (
	"context"
	"fmt"
	"regexp"

	"github.com/google/uuid"

	"github.com/ledgerline/ledgerline/internal/model"
)

// Rule tags every transaction whose description matches Pattern.
// Patterns are case-insensitive regular expressions.
type Rule struct {
	Pattern string   `yaml:"pattern"`
	Tags    []string `yaml:"tags"`
}

type compiled struct {
	re   *regexp.Regexp
	tags []string
}

// Tagger applies an ordered rule list. It satisfies syncer.Hook.
type Tagger struct {
	rules []compiled
}

// New compiles rules. A bad pattern or a rule with no tags is an error.
func New(rules []Rule) (*Tagger, error) {
	t := &Tagger{}
	for i, r := range rules {
		tags := model.NormalizeTags(r.Tags)
		if len(tags) == 0 {
			return nil, fmt.Errorf("tag rule %d (%q): no tags", i+1, r.Pattern)
		}
		re, err := regexp.Compile("(?i)" + r.Pattern)
		if err != nil {
			return nil, fmt.Errorf("tag rule %d: %w", i+1, err)
		}
		t.rules = append(t.rules, compiled{re: re, tags: tags})
	}
	return t, nil
}

// Match returns the union of tags from every rule matching description.
func (t *Tagger) Match(description string) []string {
	var out []string
	for _, r := range t.rules {
		if r.re.MatchString(description) {
			out = model.UnionTags(out, r.tags)
		}
	}
	return out
}

// SuggestTags returns tags for each transaction that matched at least one
// rule.
func (t *Tagger) SuggestTags(ctx context.Context, inserted []model.Transaction) (map[uuid.UUID][]string, error) {
	out := make(map[uuid.UUID][]string)
	for _, txn := range inserted {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if tags := t.Match(txn.Description); len(tags) > 0 {
			out[txn.ID] = tags
		}
	}
	return out, nil
}

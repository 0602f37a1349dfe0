package commands

import (
	"sort"
	"strings"
)

const (
	exactAliasScore  = 100
	aliasTokenWeight = 10
	textTokenWeight  = 5
)

// Search ranks commands against a free-text query using their aliases,
// description and examples. Commands that share no token with the query
// are left out. Equal scores keep registration order.
func (b *Bus) Search(query string, opts SearchOptions) []SearchResult {
	normalized := NormalizeAlias(query)
	terms := strings.Fields(normalized)
	if len(terms) == 0 {
		return nil
	}

	var results []SearchResult
	for _, cmd := range b.registry.List("") {
		aliasScore := 0
		for _, alias := range cmd.NormalizedAliases {
			score := aliasTokenWeight * overlap(alias, terms)
			if alias == normalized {
				score = exactAliasScore
			}
			aliasScore = max(aliasScore, score)
		}

		descScore := textTokenWeight * overlap(NormalizeAlias(cmd.Description), terms)

		exampleScore := 0
		for _, example := range cmd.Examples {
			exampleScore = max(exampleScore, textTokenWeight*overlap(NormalizeAlias(example), terms))
		}

		best := max(aliasScore, descScore, exampleScore)
		if best == 0 {
			continue
		}

		matched := MatchedDescription
		switch {
		case aliasScore >= descScore && aliasScore >= exampleScore:
			matched = MatchedAlias
		case exampleScore >= descScore:
			matched = MatchedExample
		}

		results = append(results, SearchResult{Command: cmd, Score: best, MatchedOn: matched})
	}

	sort.SliceStable(results, func(i, j int) bool {
		return results[i].Score > results[j].Score
	})

	if opts.Limit > 0 && len(results) > opts.Limit {
		results = results[:opts.Limit]
	}
	return results
}

// overlap counts the distinct query terms found among text's tokens.
func overlap(text string, terms []string) int {
	tokens := make(map[string]bool)
	for _, tok := range strings.Fields(text) {
		tokens[tok] = true
	}

	count := 0
	seen := make(map[string]bool, len(terms))
	for _, term := range terms {
		if seen[term] {
			continue
		}
		seen[term] = true
		if tokens[term] {
			count++
		}
	}
	return count
}

package repository

import "github.com/eslsoft/vocsync/internal/entity"

// normalizeWordTokens maps words to their matching form, dropping blanks and
// duplicates while keeping first-seen order.
func normalizeWordTokens(in []string) []string {
	if len(in) == 0 {
		return nil
	}
	seen := make(map[string]struct{}, len(in))
	result := make([]string, 0, len(in))
	for _, item := range in {
		token := entity.NormalizeWordToken(item)
		if token == "" {
			continue
		}
		if _, exists := seen[token]; exists {
			continue
		}
		seen[token] = struct{}{}
		result = append(result, token)
	}
	if len(result) == 0 {
		return nil
	}
	return result
}

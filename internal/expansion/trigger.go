package expansion

import (
	"context"
	"fmt"
	"strings"

	"github.com/nichescout/nichescout/internal/acquisition"
)

// ResolveTriggerLength answers how short a prefix a user must type before
// keyword, or a hint containing it, appears in the suggestion list. Prefixes
// of length 1..len(keyword) are probed in order and the scan short-circuits
// at the first match. Returns 0 when the keyword never triggers.
//
// This is the most expensive single-keyword operation here, up to one
// upstream call per character; bulk callers must pace themselves above this.
func (e *Engine) ResolveTriggerLength(ctx context.Context, keyword, country string) (int, error) {
	keyword = strings.TrimSpace(keyword)
	if keyword == "" {
		return 0, fmt.Errorf("empty keyword")
	}

	target := normalize(keyword)
	runes := []rune(keyword)
	limit := len(runes)
	if limit > triggerProbeCap {
		limit = triggerProbeCap
	}

	for n := 1; n <= limit; n++ {
		if err := ctx.Err(); err != nil {
			return 0, err
		}

		prefix := string(runes[:n])
		hintList, kind := e.hints.Fetch(ctx, prefix, country)
		if kind != acquisition.KindNone {
			continue
		}
		for _, h := range hintList {
			if strings.Contains(normalize(h.Term), target) {
				e.log.Debug().
					Str("keyword", keyword).
					Int("trigger_chars", n).
					Msg("Keyword triggered")
				return n, nil
			}
		}
	}

	return 0, nil
}

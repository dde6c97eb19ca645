package prompt

import (
	"regexp"
	"strings"
	"unicode/utf8"
)

var dottedToken = regexp.MustCompile(`[^ ]+\.[^ ]+`)

// Clean filters raw model continuations of start into prompt suggestions, one per line.
// Each candidate loses tokens with dashes or colons and the value following a --w/--h flag.
// Candidates that add at most four characters to start or end in a dangling separator are dropped.
// Dotted tokens such as URLs and file names, and angle brackets, are removed from the result.
func Clean(start string, candidates []string) string {
	kept := make([]string, 0, len(candidates))
	for _, candidate := range candidates {
		resp := cleanCandidate(candidate)
		if resp != start &&
			utf8.RuneCountInString(resp) > utf8.RuneCountInString(start)+4 &&
			!strings.HasSuffix(resp, ":") &&
			!strings.HasSuffix(resp, "-") &&
			!strings.HasSuffix(resp, "—") {
			kept = append(kept, resp)
		}
	}

	out := strings.Join(kept, "\n")
	out = dottedToken.ReplaceAllString(out, "")
	out = strings.NewReplacer("<", "", ">", "").Replace(out)
	return out
}

func cleanCandidate(candidate string) string {
	var words []string
	skipNext := false
	for _, token := range strings.Fields(strings.TrimSpace(candidate)) {
		if skipNext {
			skipNext = false
		} else if !strings.ContainsAny(token, "-—:") {
			words = append(words, token)
		}

		if strings.Contains(token, "--w") || strings.Contains(token, "--h") {
			skipNext = true
		}
	}
	return strings.Join(words, " ")
}

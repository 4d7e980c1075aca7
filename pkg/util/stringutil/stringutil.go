// Package stringutil provides small string helpers shared by the config
// loader and the demo CLI.
// file: pkg/util/stringutil/stringutil.go
package stringutil

// CoalesceString returns the first non-empty string from strs, or "" if
// every one is empty.
func CoalesceString(strs ...string) string {
	for _, str := range strs {
		if str != "" {
			return str
		}
	}
	return ""
}

// TruncateString truncates s to maxLen runes, the last three of which are
// an ellipsis when truncated. For maxLen of 3 or less the runes are cut
// with no ellipsis.
func TruncateString(s string, maxLen int) string {
	r := []rune(s)
	if len(r) <= maxLen {
		return s
	}
	if maxLen <= 3 {
		return string(r[:maxLen])
	}
	return string(r[:maxLen-3]) + "..."
}

package pwsh

import "strings"

// Quote returns s as a single-quoted PowerShell string literal.
func Quote(s string) string {
	return "'" + strings.ReplaceAll(s, "'", "''") + "'"
}

// ToJSON wraps a pipeline so it always emits a compact JSON array, even
// for zero or one result.
func ToJSON(pipeline string) string {
	return "ConvertTo-Json -InputObject @(" + pipeline + ") -Depth 3 -Compress"
}

// Command assembles a cmdlet invocation from its name and parameters.
// Empty parameters are dropped so optional switches can be passed as "".
func Command(cmdlet string, params ...string) string {
	parts := []string{cmdlet}
	for _, p := range params {
		if p != "" {
			parts = append(parts, p)
		}
	}
	return strings.Join(parts, " ")
}

// Switch returns "-name" when on is true and "" otherwise.
func Switch(name string, on bool) string {
	if !on {
		return ""
	}
	return "-" + name
}

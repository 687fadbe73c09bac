// Package text formats CLI help text.
package text

import "strings"

// Indentation prefixes every example line.
const Indentation = `  `

// LongDesc trims a raw-string long description and drops the common leading indentation.
func LongDesc(s string) string {
	return strings.Join(dedent(s), "\n")
}

// Examples dedents s and indents every line by Indentation.
func Examples(s string) string {
	lines := dedent(s)
	for i, l := range lines {
		if l != "" {
			lines[i] = Indentation + l
		}
	}

	return strings.Join(lines, "\n")
}

func dedent(s string) []string {
	lines := strings.Split(s, "\n")
	for len(lines) > 0 && strings.TrimSpace(lines[0]) == "" {
		lines = lines[1:]
	}
	for len(lines) > 0 && strings.TrimSpace(lines[len(lines)-1]) == "" {
		lines = lines[:len(lines)-1]
	}

	margin := -1
	for _, l := range lines {
		if strings.TrimSpace(l) == "" {
			continue
		}
		n := len(l) - len(strings.TrimLeft(l, " \t"))
		if margin < 0 || n < margin {
			margin = n
		}
	}
	for i, l := range lines {
		if len(l) >= margin {
			lines[i] = strings.TrimRight(l[margin:], " \t")
		} else {
			lines[i] = ""
		}
	}

	return lines
}

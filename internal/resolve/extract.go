package resolve

import "strings"

// ExtractBody recovers the source text of a function starting at
// startLine (1-based). It searches a bounded lookahead window for the
// opening brace, then balance-counts braces line by line until they
// return to zero or maxLines have been scanned. It never fails: a
// missing brace or an overrun degrades to a fixed-size slice of fallback
// lines starting at the definition line, and an unreadable file yields
// an empty body.
func ExtractBody(path string, startLine, lookahead, fallback, maxLines int) (string, int) {
	lines, err := readLines(path)
	if err != nil || startLine < 1 || startLine > len(lines) {
		return "", 0
	}
	start := startLine - 1

	open := -1
	windowEnd := start + lookahead
	if windowEnd > len(lines) {
		windowEnd = len(lines)
	}
	for i := start; i < windowEnd; i++ {
		if strings.IndexByte(lines[i], '{') >= 0 {
			open = i
			break
		}
	}
	if open < 0 {
		return fallbackSlice(lines, start, fallback)
	}

	balance := 0
	end := -1
	for i := open; i < len(lines); i++ {
		if i-open >= maxLines {
			// Pathological or malformed file: braces never balanced
			// within the safety limit.
			return fallbackSlice(lines, start, fallback)
		}
		balance += strings.Count(lines[i], "{")
		balance -= strings.Count(lines[i], "}")
		if balance <= 0 {
			end = i + 1
			break
		}
	}
	if end < 0 {
		return fallbackSlice(lines, start, fallback)
	}

	body := lines[start:end]
	return strings.Join(body, "\n"), len(body)
}

// fallbackSlice returns up to n lines starting at start (0-based).
func fallbackSlice(lines []string, start, n int) (string, int) {
	end := start + n
	if end > len(lines) {
		end = len(lines)
	}
	slice := lines[start:end]
	return strings.Join(slice, "\n"), len(slice)
}

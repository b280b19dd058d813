package utils

import (
	"bufio"
	"io"
	"os"
	"strings"
)

// CheckStdin returns true if data is piped on stdin
func CheckStdin() bool {
	stat, err := os.Stdin.Stat()
	if err != nil {
		return false
	}
	return (stat.Mode() & os.ModeCharDevice) == 0
}

// ReadLines returns the trimmed, non-empty lines of r. Lines starting with
// '#' are treated as comments.
func ReadLines(r io.Reader) ([]string, error) {
	var lines []string
	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		lines = append(lines, line)
	}
	return lines, scanner.Err()
}

// ReadStdin reads one entry per line from stdin.
func ReadStdin() ([]string, error) {
	return ReadLines(os.Stdin)
}

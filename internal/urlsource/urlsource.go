// Package urlsource resolves the command line's source argument into one or
// more mirror URLs: reading a single URL or a mirror-list file, stripping
// Unicode format characters, and deriving the destination path.
package urlsource

import (
	"bufio"
	"errors"
	"fmt"
	"os"
	"strings"
	"unicode"
)

// ErrIsDirectory is returned by Resolve when its argument names a directory
// rather than a URL or a URL-list file.
var ErrIsDirectory = errors.New("urlsource: argument is a directory, not a URL or URL-list file")

// Resolve returns the list of mirror URLs for arg, which is either a
// literal URL or the path to an existing regular file containing one URL
// per line. Every URL is stripped of Unicode category Cf (format)
// characters, guarding against copy-pasted zero-width characters.
func Resolve(arg string) ([]string, error) {
	info, err := os.Stat(arg)
	if err != nil {
		// Not a file on disk: treat the argument itself as a URL.
		return []string{stripFormatChars(arg)}, nil
	}
	if info.IsDir() {
		return nil, fmt.Errorf("urlsource: %s: %w", arg, ErrIsDirectory)
	}

	f, err := os.Open(arg)
	if err != nil {
		return nil, fmt.Errorf("urlsource: cannot read url list %s: %w", arg, err)
	}
	defer f.Close()

	var urls []string
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		urls = append(urls, stripFormatChars(line))
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("urlsource: cannot read url list %s: %w", arg, err)
	}
	if len(urls) == 0 {
		return nil, fmt.Errorf("urlsource: %s contains no urls", arg)
	}
	return urls, nil
}

// stripFormatChars removes every rune in Unicode category Cf (e.g. zero
// width space) from s.
func stripFormatChars(s string) string {
	return strings.Map(func(r rune) rune {
		if unicode.Is(unicode.Cf, r) {
			return -1
		}
		return r
	}, s)
}

// DestinationPath derives the local file path for rawURL as
// <cwd>/<basename-after-last-'/'>, including the leading slash.
func DestinationPath(rawURL string) (string, error) {
	idx := strings.LastIndex(rawURL, "/")
	if idx < 0 {
		return "", fmt.Errorf("urlsource: url %q has no path component", rawURL)
	}
	cwd, err := os.Getwd()
	if err != nil {
		return "", fmt.Errorf("urlsource: getwd: %w", err)
	}
	return cwd + rawURL[idx:], nil
}

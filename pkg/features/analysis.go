package features

import (
	"math"
	"strconv"
	"strings"
)

var commonTLDs = map[string]bool{
	"com": true, "net": true, "org": true, "edu": true, "gov": true,
	"mil": true, "co": true, "io": true, "ai": true, "app": true, "dev": true,
}

// Free or throwaway TLDs that show up disproportionately in abuse feeds.
var suspiciousTLDs = map[string]bool{
	"tk": true, "ml": true, "ga": true, "cf": true, "gq": true,
	"top": true, "xyz": true, "club": true, "work": true, "date": true,
	"download": true,
}

// shannonEntropy computes the character entropy of a string, roughly 0 to
// 4.5 for typical domain names.
func shannonEntropy(s string) float64 {
	if s == "" {
		return 0
	}

	counts := make(map[rune]int)
	for _, c := range strings.ToLower(s) {
		counts[c]++
	}

	length := float64(len([]rune(s)))
	entropy := 0.0
	for _, count := range counts {
		p := float64(count) / length
		entropy -= p * math.Log2(p)
	}
	return entropy
}

func categorizeTLD(tld string) string {
	tld = strings.ToLower(tld)
	switch {
	case commonTLDs[tld]:
		return "common"
	case suspiciousTLDs[tld]:
		return "suspicious"
	default:
		return "rare"
	}
}

// hasIPPattern reports whether any dot-separated label parses as an IPv4
// octet, a common trait of raw-IP and DGA hostnames.
func hasIPPattern(domain string) bool {
	for _, part := range strings.Split(domain, ".") {
		if part == "" {
			continue
		}
		n, err := strconv.Atoi(part)
		if err == nil && n >= 0 && n <= 255 {
			return true
		}
	}
	return false
}

// maxConsonantStreak returns the longest run of consonants; DGA names
// often carry long consonant sequences.
func maxConsonantStreak(lower string) int {
	maxStreak, streak := 0, 0
	for _, c := range lower {
		if c >= 'a' && c <= 'z' && !strings.ContainsRune("aeiou", c) {
			streak++
			if streak > maxStreak {
				maxStreak = streak
			}
		} else {
			streak = 0
		}
	}
	return maxStreak
}

// Package normalize canonicalizes identity fields for comparison. Every
// function is total: unparseable input yields a safe zero value, never an
// error, because upstream spreadsheets are wildly inconsistent.
package normalize

import (
	"regexp"
	"strings"
)

var (
	whitespaceRun = regexp.MustCompile(`\s+`)
	nonDigit      = regexp.MustCompile(`\D`)
	nonAlnumUpper = regexp.MustCompile(`[^A-Z0-9]`)
	rcPrefix      = regexp.MustCompile(`(?i)^RC[\s\-/]*`)
	trailingPunct = regexp.MustCompile(`[.,;]+$`)

	ddmmyyyy      = regexp.MustCompile(`^(\d{1,2})/(\d{1,2})/(\d{4})$`)
	ddMMMyyyy     = regexp.MustCompile(`^(\d{1,2})-([A-Za-z]{3})-(\d{4})$`)
	yyyymmdd      = regexp.MustCompile(`^(\d{4})-(\d{1,2})-(\d{1,2})$`)
	yyyymmddSlash = regexp.MustCompile(`^(\d{4})/(\d{1,2})/(\d{1,2})$`)
)

var monthNames = map[string]string{
	"jan": "01", "feb": "02", "mar": "03", "apr": "04",
	"may": "05", "jun": "06", "jul": "07", "aug": "08",
	"sep": "09", "oct": "10", "nov": "11", "dec": "12",
}

// String lower-cases, trims, and collapses internal whitespace runs.
func String(s string) string {
	s = strings.TrimSpace(strings.ToLower(s))
	return whitespaceRun.ReplaceAllString(s, " ")
}

// Gender maps the usual single-letter and word forms onto "male"/"female".
// Anything else passes through normalized so mismatches stay visible.
func Gender(s string) string {
	n := String(s)
	switch n {
	case "m", "male":
		return "male"
	case "f", "female":
		return "female"
	}
	return n
}

// ParseDate converts the four supported formats to YYYY-MM-DD, or returns ""
// when none match. Two-digit day/month fragments are zero-padded, never
// reinterpreted.
//
// Supported: DD/MM/YYYY, DD-MMM-YYYY, YYYY-MM-DD, YYYY/MM/DD.
func ParseDate(s string) string {
	s = strings.TrimSpace(s)
	if s == "" {
		return ""
	}

	if m := ddmmyyyy.FindStringSubmatch(s); m != nil {
		return m[3] + "-" + pad2(m[2]) + "-" + pad2(m[1])
	}
	if m := ddMMMyyyy.FindStringSubmatch(s); m != nil {
		if month, ok := monthNames[strings.ToLower(m[2])]; ok {
			return m[3] + "-" + month + "-" + pad2(m[1])
		}
		return ""
	}
	if m := yyyymmdd.FindStringSubmatch(s); m != nil {
		return m[1] + "-" + pad2(m[2]) + "-" + pad2(m[3])
	}
	if m := yyyymmddSlash.FindStringSubmatch(s); m != nil {
		return m[1] + "-" + pad2(m[2]) + "-" + pad2(m[3])
	}
	return ""
}

// companySuffixes maps the long legal-form spellings onto the abbreviations
// the CAC registry returns. Longer phrases run first so "public limited
// company" never degrades to "public ltd company".
var companySuffixes = []struct {
	long  *regexp.Regexp
	short string
}{
	{regexp.MustCompile(`\bpublic limited company\b`), "plc"},
	{regexp.MustCompile(`\bprivate limited company\b`), "ltd"},
	{regexp.MustCompile(`\blimited liability company\b`), "llc"},
	{regexp.MustCompile(`\blimited\b`), "ltd"},
	{regexp.MustCompile(`\bincorporated\b`), "inc"},
}

// CompanyName lower-cases, collapses whitespace, abbreviates legal-form
// suffixes and drops trailing punctuation, so "Acme Limited." compares equal
// to "ACME LTD".
func CompanyName(s string) string {
	n := String(s)
	for _, suf := range companySuffixes {
		n = suf.long.ReplaceAllString(n, suf.short)
	}
	return trailingPunct.ReplaceAllString(n, "")
}

// RCNumber upper-cases, strips a leading RC prefix (with optional separator)
// and removes every non-alphanumeric character, so "RC-123456" compares equal
// to "123456".
func RCNumber(s string) string {
	n := strings.ToUpper(strings.TrimSpace(s))
	n = rcPrefix.ReplaceAllString(n, "")
	return nonAlnumUpper.ReplaceAllString(n, "")
}

// Phone strips every non-digit and rewrites the 234 country prefix to a
// leading 0 (2348012345678 -> 08012345678). Length is not validated here.
func Phone(s string) string {
	digits := nonDigit.ReplaceAllString(s, "")
	if strings.HasPrefix(digits, "234") {
		return "0" + digits[3:]
	}
	return digits
}

func pad2(s string) string {
	if len(s) == 1 {
		return "0" + s
	}
	return s
}

package table

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"unicode"

	"github.com/pivolan/entropy_analyzer/domain/models"
)

var datePatterns = []*regexp.Regexp{
	regexp.MustCompile(`^\d{4}-\d{2}-\d{2}$`),
	regexp.MustCompile(`^\d{2}/\d{2}/\d{4}$`),
	regexp.MustCompile(`^\d{2}\.\d{2}\.\d{4}$`),
	regexp.MustCompile(`^\d{4}-\d{2}-\d{2}\s\d{2}:\d{2}:\d{2}$`),
	regexp.MustCompile(`^\d{4}-\d{2}-\d{2}\s\d{2}:\d{2}:\d{2}\.\d+$`),
}

// AnalyzeHeaders decides whether the first row of a table is a header and
// returns normalized, de-duplicated column names.
func AnalyzeHeaders(firstRow []string) *models.HeaderAnalysis {
	if len(firstRow) == 0 {
		return nil
	}

	result := &models.HeaderAnalysis{
		Headers:      make([]string, len(firstRow)),
		FirstDataRow: firstRow,
	}

	headerLikeCount := 0
	for _, field := range firstRow {
		if isLikelyHeader(field) {
			headerLikeCount++
		}
	}

	if float64(headerLikeCount)/float64(len(firstRow)) >= 0.5 {
		for i, header := range firstRow {
			result.Headers[i] = cleanHeaderName(header, i)
		}
	} else {
		result.FirstRowIsData = true
		for i := range firstRow {
			result.Headers[i] = generateColumnName(i)
		}
	}

	result.Headers = ValidateHeaders(result.Headers)
	return result
}

func isLikelyHeader(text string) bool {
	text = strings.TrimSpace(text)
	if text == "" {
		return false
	}
	if _, err := strconv.ParseFloat(text, 64); err == nil {
		return false
	}
	for _, p := range datePatterns {
		if p.MatchString(text) {
			return false
		}
	}

	letters, total := 0, 0
	for _, r := range text {
		switch {
		case unicode.IsLetter(r):
			letters++
			total++
		case unicode.IsSpace(r):
		default:
			total++
		}
	}
	if total == 0 {
		return false
	}
	return letters > 0 && float64(letters)/float64(total) >= 0.3
}

func generateColumnName(index int) string {
	return fmt.Sprintf("column_%d", index+1)
}

// ValidateHeaders suffixes repeated names with a counter: name, name_1, name_2.
func ValidateHeaders(headers []string) []string {
	seen := make(map[string]bool)
	result := make([]string, len(headers))

	for i, header := range headers {
		original := header
		for counter := 1; seen[header]; counter++ {
			header = fmt.Sprintf("%s_%d", original, counter)
		}
		seen[header] = true
		result[i] = header
	}
	return result
}

func cleanHeaderName(header string, index int) string {
	if !isLikelyHeader(header) {
		return generateColumnName(index)
	}
	cleaned := models.CanonicalAttribute(header)
	if cleaned == "" {
		return generateColumnName(index)
	}
	return cleaned
}

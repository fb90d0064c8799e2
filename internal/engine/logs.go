package engine

import (
	"bufio"
	"bytes"
	"compress/gzip"
	"fmt"
	"regexp"
	"strings"

	"github.com/pipelinesight/pipeline-rca/internal/models"
)

// Failure log extraction bounds. Context lines surround each hit; overlapping
// hits collapse into the earlier context.
const (
	logContextLines  = 10
	maxErrorContexts = 5
	maxErrorMessage  = 500
)

var (
	errorLinePattern = regexp.MustCompile(`(?i)\b(ERROR|EXCEPTION)\b`)
	logTimePrefix    = regexp.MustCompile(`^\d{4}-\d{2}-\d{2}[\sT]\d{2}:\d{2}:\d{2}[.,]?\d*\s*`)
	logLevelPrefix   = regexp.MustCompile(`(?i)^(INFO|DEBUG|WARN|WARNING|ERROR|CRITICAL|FATAL)\s*[-:]\s*`)
)

// parseFailureLog decompresses a stderr capture and extracts the ERROR and
// EXCEPTION hits with their surrounding lines, capped at the first
// maxErrorContexts non-overlapping contexts.
func parseFailureLog(data []byte) (*models.FailureLog, error) {
	reader, err := gzip.NewReader(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("decompress failure log: %w", err)
	}
	defer reader.Close()

	var lines []string
	scanner := bufio.NewScanner(reader)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		lines = append(lines, scanner.Text())
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("read failure log: %w", err)
	}

	result := &models.FailureLog{Available: true, Contexts: []models.ErrorContext{}}
	if len(lines) == 0 {
		result.Summary = "Log file is empty"
		return result, nil
	}

	lastEnd := -1
	for i, line := range lines {
		if !errorLinePattern.MatchString(line) {
			continue
		}
		start := i - logContextLines
		if start < 0 {
			start = 0
		}
		end := i + logContextLines + 1
		if end > len(lines) {
			end = len(lines)
		}
		if start <= lastEnd {
			continue
		}
		lastEnd = end - 1

		context := make([]string, 0, end-start)
		for j := start; j < end; j++ {
			context = append(context, strings.TrimRight(lines[j], " \t"))
		}
		result.Contexts = append(result.Contexts, models.ErrorContext{
			LineNumber: i + 1,
			Type:       classifyError(line),
			Message:    extractErrorMessage(line),
			Context:    context,
		})
		if len(result.Contexts) == maxErrorContexts {
			break
		}
	}

	result.TotalErrors = len(result.Contexts)
	if result.TotalErrors == 0 {
		result.Summary = "No ERROR or EXCEPTION patterns found in log file"
	} else {
		result.Summary = summarizeErrors(result.Contexts)
	}
	return result, nil
}

// extractErrorMessage strips leading timestamp and level prefixes from a log
// line and bounds its length.
func extractErrorMessage(line string) string {
	cleaned := logTimePrefix.ReplaceAllString(line, "")
	cleaned = logLevelPrefix.ReplaceAllString(cleaned, "")
	cleaned = strings.TrimSpace(cleaned)
	if len(cleaned) > maxErrorMessage {
		cleaned = cleaned[:maxErrorMessage]
	}
	return cleaned
}

func classifyError(line string) string {
	lower := strings.ToLower(line)
	switch {
	case strings.Contains(lower, "connection") || strings.Contains(lower, "timeout"):
		return "Connection/Timeout Error"
	case strings.Contains(lower, "memory") || strings.Contains(lower, "oom"):
		return "Memory Error"
	case strings.Contains(lower, "permission") || strings.Contains(lower, "access denied"):
		return "Permission Error"
	case strings.Contains(lower, "null") || strings.Contains(lower, "none"):
		return "Null Reference Error"
	case strings.Contains(lower, "database") || strings.Contains(lower, "sql"):
		return "Database Error"
	case strings.Contains(lower, "file") && (strings.Contains(lower, "not found") || strings.Contains(lower, "missing")):
		return "File Not Found Error"
	case strings.Contains(lower, "exception"):
		return "Exception"
	}
	return "Error"
}

// summarizeErrors builds the one-line digest: hit count, per-type counts in
// first-seen order, and the primary error message.
func summarizeErrors(contexts []models.ErrorContext) string {
	var types []string
	counts := make(map[string]int, len(contexts))
	for _, ctx := range contexts {
		if counts[ctx.Type] == 0 {
			types = append(types, ctx.Type)
		}
		counts[ctx.Type]++
	}

	parts := []string{fmt.Sprintf("Found %d error(s) in the log file", len(contexts))}
	descriptions := make([]string, 0, len(types))
	for _, t := range types {
		descriptions = append(descriptions, fmt.Sprintf("%d %s(s)", counts[t], t))
	}
	parts = append(parts, "Types: "+strings.Join(descriptions, ", "))

	primary := contexts[0].Message
	if len(primary) > 200 {
		primary = primary[:200] + "..."
	}
	parts = append(parts, "Primary error: "+primary)
	return strings.Join(parts, " | ")
}

package errors

import (
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strings"
)

// FormatForCLI renders err as the short three-line block printed by the
// foldersearch command on failure.
func FormatForCLI(err error) string {
	if err == nil {
		return ""
	}
	fe := coded(err)

	var sb strings.Builder
	fmt.Fprintf(&sb, "Error: %s\n", fe.Message)
	if fe.Suggestion != "" {
		fmt.Fprintf(&sb, "  Hint: %s\n", fe.Suggestion)
	}
	fmt.Fprintf(&sb, "  Code: %s\n", fe.Code)
	return sb.String()
}

// FormatDetailed extends FormatForCLI with the category, the underlying
// cause and any details, sorted by key. Used when --debug is set.
func FormatDetailed(err error) string {
	if err == nil {
		return ""
	}
	fe := coded(err)

	var sb strings.Builder
	sb.WriteString(FormatForCLI(fe))
	fmt.Fprintf(&sb, "  Category: %s (%s)\n", fe.Category, fe.Severity)
	if fe.Retryable {
		sb.WriteString("  Retryable: yes\n")
	}
	if fe.Cause != nil {
		fmt.Fprintf(&sb, "  Cause: %s\n", fe.Cause)
	}
	keys := make([]string, 0, len(fe.Details))
	for k := range fe.Details {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		fmt.Fprintf(&sb, "    %s=%s\n", k, fe.Details[k])
	}
	return sb.String()
}

// LogAttrs returns slog attributes describing err. Plain errors produce a
// single "error" attribute.
func LogAttrs(err error) []any {
	if err == nil {
		return nil
	}
	var fe *Error
	if !errors.As(err, &fe) {
		return []any{slog.String("error", err.Error())}
	}

	attrs := []any{
		slog.String("error", fe.Message),
		slog.String("error_code", fe.Code),
		slog.String("category", string(fe.Category)),
		slog.Bool("retryable", fe.Retryable),
	}
	if fe.Cause != nil {
		attrs = append(attrs, slog.String("cause", fe.Cause.Error()))
	}
	if len(fe.Details) > 0 {
		keys := make([]string, 0, len(fe.Details))
		for k := range fe.Details {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		details := make([]any, 0, len(keys))
		for _, k := range keys {
			details = append(details, slog.String(k, fe.Details[k]))
		}
		attrs = append(attrs, slog.Group("details", details...))
	}
	return attrs
}

// coded returns err as *Error, wrapping uncoded errors as internal.
func coded(err error) *Error {
	var fe *Error
	if errors.As(err, &fe) {
		return fe
	}
	return Wrap(ErrCodeInternal, err)
}

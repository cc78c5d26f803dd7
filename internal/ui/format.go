package ui

import (
	stderrors "errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/mattn/go-isatty"
	"github.com/mgutz/ansi"

	"vaultrecon/pkg/errors"
)

var (
	// Check if output supports colors
	supportsColor = isatty.IsTerminal(os.Stdout.Fd()) || isatty.IsCygwinTerminal(os.Stdout.Fd())

	// out is where all user-facing messages go
	out io.Writer = os.Stdout

	// Color functions
	ColorSuccess  = colorFunc(ansi.Green)
	ColorError    = colorFunc(ansi.Red)
	ColorWarning  = colorFunc(ansi.Yellow)
	ColorInfo     = colorFunc(ansi.Cyan)
	ColorProgress = colorFunc(ansi.Blue)
	ColorBold     = colorFunc("default+b")
	ColorDim      = colorFunc("default+h")
)

// colorFunc returns a function that colors text if supported
func colorFunc(color string) func(string) string {
	return func(text string) string {
		if supportsColor {
			return ansi.Color(text, color)
		}
		return text
	}
}

// SetOutput redirects messages, returning the previous writer.
func SetOutput(w io.Writer) io.Writer {
	prev := out
	out = w
	return prev
}

// ShowHeader displays a formatted header
func ShowHeader(title string) {
	width := 50
	if len(title)+4 > width {
		width = len(title) + 4
	}
	padding := (width - len(title) - 2) / 2

	fmt.Fprintln(out, "\n+"+strings.Repeat("-", width-2)+"+")
	fmt.Fprintf(out, "|%s%s%s|\n",
		strings.Repeat(" ", padding),
		ColorBold(title),
		strings.Repeat(" ", width-2-padding-len(title)),
	)
	fmt.Fprintln(out, "+"+strings.Repeat("-", width-2)+"+")
}

// ShowError displays a formatted error message. Suggestions carried by an
// AppError are listed; otherwise a hint is derived from the message.
func ShowError(err error) {
	fmt.Fprintf(out, "\n%s\n", ColorError("ERROR:"))

	var appErr *errors.AppError
	if stderrors.As(err, &appErr) {
		fmt.Fprintf(out, "  [%s] %s\n", appErr.Code, appErr.Message)
		if appErr.Cause != nil {
			fmt.Fprintf(out, "  %s\n", ColorDim(appErr.Cause.Error()))
		}
		for _, s := range appErr.Suggestions {
			fmt.Fprintf(out, "  %s %s\n", ColorInfo("TIP:"), s)
		}
		return
	}

	message := err.Error()
	for i, line := range strings.Split(message, "\n") {
		if i == 0 {
			fmt.Fprintf(out, "  %s\n", line)
		} else {
			fmt.Fprintf(out, "  %s\n", ColorDim(line))
		}
	}

	if suggestion := getSuggestion(message); suggestion != "" {
		fmt.Fprintf(out, "\n  %s %s\n", ColorInfo("TIP:"), ColorInfo(suggestion))
	}
}

// ShowSuccess displays a success message
func ShowSuccess(message string) {
	fmt.Fprintf(out, "%s %s\n", ColorSuccess("SUCCESS:"), message)
}

// ShowWarning displays a warning message
func ShowWarning(message string) {
	fmt.Fprintf(out, "%s %s\n", ColorWarning("WARNING:"), ColorWarning(message))
}

// ShowInfo displays an info message
func ShowInfo(message string) {
	fmt.Fprintf(out, "%s %s\n", ColorInfo("INFO:"), message)
}

// ShowKeyValue prints an aligned "key: value" line.
func ShowKeyValue(key, value string) {
	fmt.Fprintf(out, "  %-22s %s\n", ColorBold(key+":"), value)
}

// FormatLoss renders a row-loss count, red when rows were lost.
func FormatLoss(n int64) string {
	if n > 0 {
		return ColorError(fmt.Sprintf("-%d", n))
	}
	return ColorDim("0")
}

// getSuggestion returns helpful suggestions based on error messages
func getSuggestion(error string) string {
	lower := strings.ToLower(error)

	switch {
	case strings.Contains(lower, "authentication failed"):
		return "Check your username and password, or run 'vaultrecon credentials set'"
	case strings.Contains(lower, "connection refused"):
		return "Verify your Snowflake account identifier and network connectivity"
	case strings.Contains(lower, "syntax error"):
		return "Review the custom_except_query for the affected table"
	case strings.Contains(lower, "permission denied"):
		return "Ensure your role can read the source and vault tables"
	case strings.Contains(lower, "does not exist"):
		return "Verify the fully qualified table names in the configuration"
	default:
		return ""
	}
}

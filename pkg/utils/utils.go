package utils

import (
	"fmt"
	"os/exec"
	"runtime"
	"strconv"
	"strings"

	"github.com/cockroachdb/errors"
)

func HumanizeTime(seconds float64) string {
	if seconds == 0 {
		return "0s"
	}
	if seconds < 1 {
		return fmt.Sprintf("%dms", int(seconds*1000+0.5))
	}

	hours := int(seconds) / 3600
	minutes := (int(seconds) % 3600) / 60
	secs := int(seconds) % 60

	var parts []string
	if hours > 0 {
		parts = append(parts, fmt.Sprintf("%dh", hours))
	}
	if minutes > 0 {
		parts = append(parts, fmt.Sprintf("%dm", minutes))
	}
	if secs > 0 || len(parts) == 0 {
		parts = append(parts, fmt.Sprintf("%ds", secs))
	}
	return strings.Join(parts, " ")
}

// MakeClickableLink wraps http(s) URLs in an OSC 8 terminal hyperlink.
func MakeClickableLink(urlValue, text string) string {
	displayText := text
	if displayText == "" {
		displayText = urlValue
	}
	if !strings.HasPrefix(urlValue, "https://") && !strings.HasPrefix(urlValue, "http://") {
		return displayText
	}
	return fmt.Sprintf("\u001b]8;;%s\u0007%s\u001b]8;;\u0007", urlValue, displayText)
}

// ParseVariables turns key=value pairs into GraphQL variables. Values that
// look like integers, floats, booleans or null are typed; "key:=value" keeps
// the value as a string.
func ParseVariables(pairs []string) (map[string]any, error) {
	vars := make(map[string]any, len(pairs))
	for _, pair := range pairs {
		if key, value, ok := strings.Cut(pair, ":="); ok && key != "" && !strings.Contains(key, "=") {
			vars[key] = value
			continue
		}
		key, value, ok := strings.Cut(pair, "=")
		if !ok || key == "" {
			return nil, errors.Newf("invalid variable %q, expected key=value", pair)
		}
		vars[key] = typedValue(value)
	}
	return vars, nil
}

func typedValue(value string) any {
	switch value {
	case "true":
		return true
	case "false":
		return false
	case "null":
		return nil
	}
	if i, err := strconv.ParseInt(value, 10, 64); err == nil {
		return i
	}
	if f, err := strconv.ParseFloat(value, 64); err == nil {
		return f
	}
	return value
}

func OpenBrowser(url string) error {
	var cmd string
	var args []string

	switch runtime.GOOS {
	case "windows":
		cmd = "rundll32"
		args = []string{"url.dll,FileProtocolHandler", url}
	case "darwin":
		cmd = "open"
		args = []string{url}
	default: // linux, freebsd, openbsd, netbsd
		cmd = "xdg-open"
		args = []string{url}
	}
	return exec.Command(cmd, args...).Start()
}

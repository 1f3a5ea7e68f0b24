package bot

import (
	"fmt"
	"strconv"
	"strings"
)

// ParseIndexArg extracts a 1-based source number from a command argument string.
func ParseIndexArg(args string, count int) (int, error) {
	s := strings.TrimSpace(args)
	if s == "" {
		return 0, fmt.Errorf("source number is required")
	}
	n, err := strconv.Atoi(strings.Fields(s)[0])
	if err != nil {
		return 0, fmt.Errorf("invalid source number %q", s)
	}
	if n < 1 || n > count {
		return 0, fmt.Errorf("source number must be between 1 and %d", count)
	}
	return n, nil
}

// ParseCallbackData splits "action:arg" callback payloads.
func ParseCallbackData(data string) (action, arg string, ok bool) {
	action, arg, ok = strings.Cut(data, ":")
	if !ok || action == "" {
		return "", "", false
	}
	return action, arg, true
}

package config

import (
	"fmt"
	"slices"
	"strings"
)

// ValidatePlanFormat checks that format is one of PlanFormats. Only the plan
// command reads the format, so other commands never reject it.
func ValidatePlanFormat(format string) error {
	if !slices.Contains(PlanFormats, format) {
		return fmt.Errorf("invalid plan_format %q (must be one of %s)", format, strings.Join(PlanFormats, ", "))
	}
	return nil
}

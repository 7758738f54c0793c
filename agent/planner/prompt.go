package planner

import (
	_ "embed"
	"strings"
)

//go:embed template/system.txt
var systemRaw string

// SystemPrompt returns the assistant instruction template. It carries two
// FString placeholders, {user_info} and {time}, filled per invocation.
func SystemPrompt() string {
	return strings.TrimSpace(systemRaw)
}

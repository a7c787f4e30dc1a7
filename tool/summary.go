package tool

import (
	"fmt"
	"strings"

	"github.com/habiliai/dataagent/internal/stringutils"
)

// Summarize returns a short description of a call for the console.
func Summarize(name, rawArgs string) string {
	args, err := parseArguments(rawArgs)
	if err != nil {
		args = map[string]any{}
	}
	str := func(key string) string {
		s, _ := args[key].(string)
		return s
	}
	count := func(key string) int {
		m, _ := args[key].(map[string]any)
		return len(m)
	}

	switch name {
	case RunSQL:
		parts := strings.SplitN(strings.ToLower(str("sql")), "from", 2)
		if len(parts) == 2 {
			if fields := strings.Fields(parts[1]); len(fields) > 0 {
				return "querying " + fields[0]
			}
		}
		return "executing query"
	case RunCode:
		return fmt.Sprintf("processing %d input(s)", count("queries"))
	case InspectSchema:
		if table := str("table"); table != "" {
			return fmt.Sprintf("%s on %s", str("action"), table)
		}
		return str("action")
	case InspectPlatform:
		if n := str("name"); n != "" {
			return fmt.Sprintf("%s %s", str("action"), n)
		}
		return str("action")
	case SubmitResult:
		return fmt.Sprintf("computing from %d input(s)", count("inputs"))
	case SendMessage:
		return stringutils.Ellipsis(str("message"), 30, 27)
	case ReadContext:
		return "checking notes"
	case UpdateContext:
		return "updating " + str("section")
	case SubmitObservation:
		return stringutils.Ellipsis(str("observation"), 40, 37)
	case RenderArtifact:
		return "creating " + str("filename")
	default:
		return ""
	}
}

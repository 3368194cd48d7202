package regen

import (
	"fmt"
	"strings"

	"github.com/deixis/cogrun/internal/config"
)

// defaultTools are tried in order when no tool is configured.
var defaultTools = [][]string{
	config.DefaultTool,
	{"python3", "-m", "cogapp"},
	{"cog"},
}

// ResolveTool returns the argv prefix for invoking the generator.
// A configured tool is used as-is once its binary is found. Otherwise
// python, python3 and a cog binary on PATH are tried in turn.
func ResolveTool(cfg *config.Config, lookPath func(string) (string, error)) ([]string, error) {
	if len(cfg.Tool) > 0 {
		if _, err := lookPath(cfg.Tool[0]); err != nil {
			return nil, NewErrToolUnavailable(cfg.Tool[0])
		}
		return cfg.Tool, nil
	}

	for _, tool := range defaultTools {
		if _, err := lookPath(tool[0]); err == nil {
			return tool, nil
		}
	}
	return nil, NewErrToolUnavailable("cog")
}

// ErrToolUnavailable is returned when the generator is not installed.
type ErrToolUnavailable struct {
	Name    string
	Install string // install hint, empty for unknown tools
}

func NewErrToolUnavailable(name string) ErrToolUnavailable {
	e := ErrToolUnavailable{Name: name}
	switch name {
	case "cog", "python", "python3":
		e.Install = "pip install cogapp"
	}
	return e
}

func (e ErrToolUnavailable) Error() string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s is required but not installed.", e.Name)
	if e.Install != "" {
		fmt.Fprintf(&b, "\n\nInstall:\n  %s", e.Install)
	}
	return b.String()
}

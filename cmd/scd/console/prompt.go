package console

import (
	"strings"

	"github.com/chzyer/readline"
)

const (
	Yes = "y"
	No  = "n"
)

// YesOrNo asks a confirmation question. Empty or unrecognized input falls
// back to yes, matching the [Y/n] prompt.
func YesOrNo(question string) (string, error) {
	rl, err := readline.New(question + " [Y/n]:")
	if err != nil {
		return "", err
	}
	response, err := rl.Readline()
	if err != nil {
		return "", err
	}
	if normalized := strings.ToLower(response); normalized == No {
		return No, nil
	}
	return Yes, nil
}

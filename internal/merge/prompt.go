package merge

import (
	"github.com/AlecAivazis/survey/v2"
)

// Prompter asks the user a yes/no question.
type Prompter interface {
	Confirm(message, help string) (bool, error)
}

// SurveyPrompter asks on the terminal. The default answer is no.
type SurveyPrompter struct{}

func (SurveyPrompter) Confirm(message, help string) (bool, error) {
	answer := false
	prompt := &survey.Confirm{
		Message: message,
		Default: false,
		Help:    help,
	}
	if err := survey.AskOne(prompt, &answer); err != nil {
		return false, err
	}
	return answer, nil
}

// StaticPrompter answers every question with its own value without asking.
type StaticPrompter bool

func (p StaticPrompter) Confirm(string, string) (bool, error) {
	return bool(p), nil
}

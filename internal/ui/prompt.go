package ui

import (
	"fmt"

	"github.com/AlecAivazis/survey/v2"
)

// askOne is swapped out in tests
var askOne = survey.AskOne

// SelectTables lets the user pick which configured tables to reconcile.
// All tables are preselected.
func SelectTables(tables []string) ([]string, error) {
	if len(tables) == 0 {
		return nil, fmt.Errorf("no tables configured")
	}

	var selected []string
	prompt := &survey.MultiSelect{
		Message:  "Select tables to reconcile:",
		Options:  tables,
		Default:  tables,
		PageSize: 15,
	}
	if err := askOne(prompt, &selected, survey.WithValidator(survey.MinItems(1))); err != nil {
		return nil, err
	}
	return selected, nil
}

// Password prompts for a secret without echoing it
func Password(message, help string) (string, error) {
	var result string
	prompt := &survey.Password{
		Message: message,
		Help:    help,
	}
	err := askOne(prompt, &result, survey.WithValidator(survey.Required))
	return result, err
}

// Confirm asks a yes/no question
func Confirm(message string, defaultValue bool) (bool, error) {
	result := defaultValue
	prompt := &survey.Confirm{
		Message: message,
		Default: defaultValue,
	}
	err := askOne(prompt, &result)
	return result, err
}

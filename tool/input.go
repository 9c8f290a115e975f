package tool

import "github.com/strandworks/strand"

type userInputArgs struct {
	Prompt string `json:"prompt" desc:"Question to ask the user" required:"true"`
}

// UserInputTool returns the declaration of the tool the model calls to ask
// the user a question. Register it with RegisterClientTool: a call to it
// pauses the loop instead of executing locally.
func UserInputTool(name string) strand.Tool {
	return strand.Tool{
		Name:        name,
		Description: "Ask the user a question and wait for their answer",
		Parameters:  strand.MustSchemaFor[userInputArgs](),
	}
}

package ollama

import "github.com/tjfontaine/campaign-orchestrator/internal/core/domain"

var taskPrompts = map[string]string{
	domain.TaskClassification:  "Classify the following text. Respond with only the classification and a brief explanation:\n\n",
	domain.TaskSentiment:       "Analyze the sentiment of this text. Respond with: positive/negative/neutral and confidence percentage:\n\n",
	domain.TaskFormatting:      "Format the following data as clean JSON:\n\n",
	domain.TaskReasoning:       "Solve this step by step:\n\n",
	domain.TaskCodeGeneration:  "Generate clean, documented code for this requirement:\n\n",
	domain.TaskCreativeWriting: "Write engaging content for:\n\n",
	"brainstorming":            "Generate 5 creative ideas for:\n\n",
}

// FormatPrompt prefixes prompt with the instruction for taskType.
// Unknown task types pass the prompt through unchanged.
func FormatPrompt(taskType, prompt string) string {
	if prefix, ok := taskPrompts[taskType]; ok {
		return prefix + prompt
	}
	return prompt
}

const defaultContextWindow = 4096

// OptionsFor returns the sampling options for a task on model.
func OptionsFor(taskType string, model Model) *Options {
	opts := &Options{
		Temperature: 0.3,
		TopP:        0.9,
		NumPredict:  256,
		NumCtx:      defaultContextWindow,
	}
	if taskType == domain.TaskCreativeWriting {
		opts.Temperature = 0.8
	}
	if taskType == domain.TaskCodeGeneration {
		opts.NumPredict = 512
	}
	if model.ContextWindow > 0 && model.ContextWindow < defaultContextWindow {
		opts.NumCtx = model.ContextWindow
	}
	return opts
}

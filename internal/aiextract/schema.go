package aiextract

import (
	"fmt"
	"math"

	openai "github.com/sashabaranov/go-openai"
)

const systemPrompt = "You extract manga, manhwa and manhua metadata from scraped web pages. " +
	"Answer only through the extract_manga_info function. Leave a field empty when the page does not state it. " +
	"Status must be \"ongoing\" or \"completed\". Keep titles in their original language and list translated titles under alternative_titles."

func metadataSchema() map[string]any {
	stringList := map[string]any{"type": "array", "items": map[string]any{"type": "string"}}
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"title":              map[string]any{"type": "string", "description": "Main title of the series"},
			"description":        map[string]any{"type": "string", "description": "Synopsis"},
			"genres":             stringList,
			"author":             map[string]any{"type": "string"},
			"artist":             map[string]any{"type": "string"},
			"status":             map[string]any{"type": "string", "enum": []string{"ongoing", "completed"}},
			"year":               map[string]any{"type": "integer", "description": "Year of first publication"},
			"country":            map[string]any{"type": "string", "description": "Country of origin, e.g. Japan, Korea, China"},
			"alternative_titles": stringList,
		},
		"required": []string{"title"},
	}
}

func newCompletionRequest(model string, pageURL string, text string) openai.ChatCompletionRequest {
	return openai.ChatCompletionRequest{
		Model: model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: systemPrompt},
			{Role: openai.ChatMessageRoleUser, Content: fmt.Sprintf("Page URL: %s\n\nPage text:\n%s", pageURL, text)},
		},
		Tools: []openai.Tool{{
			Type: openai.ToolTypeFunction,
			Function: &openai.FunctionDefinition{
				Name:        toolName,
				Description: "Return the structured metadata of the series described on the page",
				Parameters:  metadataSchema(),
			},
		}},
		ToolChoice: openai.ToolChoice{
			Type:     openai.ToolTypeFunction,
			Function: openai.ToolFunction{Name: toolName},
		},
		// omitempty drops a literal zero.
		Temperature: math.SmallestNonzeroFloat32,
	}
}

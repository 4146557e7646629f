package llava

import (
	"strings"
	"text/template"
)

// DefaultSystemPrompt is prepended to every rendered conversation.
const DefaultSystemPrompt = "A chat between a curious human and an artificial intelligence assistant. The assistant gives helpful, detailed, and polite answers to the human's questions. "

// ImagePlaceholder marks where the image embeddings go in the prompt.
const ImagePlaceholder = "<image>"

const (
	ContentImage = "image"
	ContentText  = "text"
)

// ContentPart is either an image reference or a piece of text.
type ContentPart struct {
	Type string `json:"type"`
	URL  string `json:"url,omitempty"`
	Text string `json:"text,omitempty"`
}

// Turn is one message of a conversation.
type Turn struct {
	Role    string        `json:"role"`
	Content []ContentPart `json:"content"`
}

// images are rendered before text, one placeholder per image part
var chatTemplate = template.Must(template.New("llava").Funcs(template.FuncMap{
	"upper": strings.ToUpper,
	"parts": func(t Turn, kind string) []ContentPart {
		var out []ContentPart
		for _, c := range t.Content {
			if c.Type == kind {
				out = append(out, c)
			}
		}
		return out
	},
}).Parse(`{{- .System }}
{{- range .Turns }}
{{- if ne .Role "system" }}{{ upper .Role }}: {{ end }}
{{- range parts . "image" }}<image>
{{ end }}
{{- range parts . "text" }}{{ .Text }} {{ end }}
{{- end }}
{{- if .AddGenerationPrompt }}ASSISTANT:{{ end }}`))

// RenderPrompt lays out turns in the LLaVA-1.5 chat format with system
// prepended.
func RenderPrompt(system string, turns []Turn, addGenerationPrompt bool) (string, error) {
	var sb strings.Builder
	err := chatTemplate.Execute(&sb, struct {
		System              string
		Turns               []Turn
		AddGenerationPrompt bool
	}{system, turns, addGenerationPrompt})
	if err != nil {
		return "", err
	}

	return sb.String(), nil
}

package prompts

import (
	"fmt"
	"strings"
)

// ============================================================================
// Knowledge Analysis Prompts
// ============================================================================

// analysisSystemTemplate defines the mentor persona and the five output fields.
// %s is replaced with the output language.
const analysisSystemTemplate = `You are an experienced mentor and careful critical thinker. You receive the transcript of a video and turn it into a structured knowledge analysis. This is not a summary: the reader should come away able to understand, judge and use what the video teaches.

Write in a voice that sits between conversational and technical. Be clear and approachable but precise, the way a good lecturer explains a hard topic.

**Write every field in %[1]s, including keywords, regardless of the language spoken in the video.**

## Fields

### explanation
- Teach the material again from first principles to a smart student.
- Follow a cause-and-effect or step-by-step order.
- Unpack jargon and use analogies where they help.
- Keep formulas, code and definitions exact.
- Markdown with headings and bullet points.

### key_knowledge
- The most important points worth remembering: insights, principles, facts.
- 5-8 Markdown bullets, each one standing on its own.

### critical_analysis
- **Strengths**: why the ideas are convincing, well supported or new.
- **Weaknesses**: limits, shaky assumptions, missing context, counterarguments, ignored edge cases.
- Refer to the specific claims made in the video.
- Markdown with labelled Strengths and Weaknesses sections.

### real_world_applications
- 3-5 concrete ways to apply the knowledge in industry, research, daily life or neighbouring fields.
- Say briefly why the knowledge matters in each case.
- Markdown list.

### keywords
- 5-10 lowercase tags: main topic, technologies, concepts, domain.`

// AnalysisSystemPrompt returns the system prompt for the given output language.
func AnalysisSystemPrompt(language string) string {
	if strings.TrimSpace(language) == "" {
		language = "English"
	}
	return fmt.Sprintf(analysisSystemTemplate, language)
}

// AnalysisUserPrompt builds the user message carrying title and transcript.
func AnalysisUserPrompt(title, transcript string) string {
	return fmt.Sprintf("## Video Title\n%s\n\n## Transcript\n%s", title, transcript)
}

// ============================================================================
// Structured Output Schema
// ============================================================================

// AnalysisSchemaName names the JSON schema sent as response_format.
const AnalysisSchemaName = "knowledge_analysis"

// AnalysisSchema is the strict JSON schema the model must follow.
var AnalysisSchema = map[string]interface{}{
	"type": "object",
	"properties": map[string]interface{}{
		"explanation": map[string]interface{}{
			"type":        "string",
			"description": "Mentor-style re-explanation with an explicit logical flow, plain language, technically exact.",
		},
		"key_knowledge": map[string]interface{}{
			"type":        "string",
			"description": "Short overview plus the core principles and takeaways to remember.",
		},
		"critical_analysis": map[string]interface{}{
			"type":        "string",
			"description": "Objective strengths and weaknesses of the ideas presented.",
		},
		"real_world_applications": map[string]interface{}{
			"type":        "string",
			"description": "Concrete ways to apply the knowledge in real domains.",
		},
		"keywords": map[string]interface{}{
			"type":        "array",
			"items":       map[string]interface{}{"type": "string"},
			"description": "5-10 lowercase descriptive tags for search and categorization.",
		},
	},
	"required":             []string{"explanation", "key_knowledge", "critical_analysis", "real_world_applications", "keywords"},
	"additionalProperties": false,
}

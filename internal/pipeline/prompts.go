package pipeline

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/rotisserie/eris"
	"gopkg.in/yaml.v3"
)

// ResearchPrompt is one configured research pass over a content item's
// gathered insights. Schema, when set, is a JSON response schema the
// model is asked to follow; parsing failures degrade to raw text.
type ResearchPrompt struct {
	ID       string `yaml:"id" mapstructure:"id"`
	Template string `yaml:"template" mapstructure:"template"`
	Schema   string `yaml:"schema,omitempty" mapstructure:"schema"`
}

// SchemaJSON returns the response schema as raw JSON, or nil when the
// prompt has none.
func (p ResearchPrompt) SchemaJSON() json.RawMessage {
	if p.Schema == "" {
		return nil
	}
	return json.RawMessage(p.Schema)
}

// DefaultResearchPrompts returns the built-in research passes.
func DefaultResearchPrompts() []ResearchPrompt {
	return []ResearchPrompt{
		{
			ID: "summary",
			Template: "Synthesize the segment notes below into a concise summary of the video. " +
				"Cover the main argument, the key supporting points, and any notable claims.",
			Schema: `{"type":"object","properties":{"summary":{"type":"string"},"key_points":{"type":"array","items":{"type":"string"}}},"required":["summary","key_points"]}`,
		},
		{
			ID: "audience",
			Template: "From the segment notes below, describe the audience this video serves: " +
				"who it is for, what prior knowledge it assumes, and what need it addresses.",
			Schema: `{"type":"object","properties":{"audience":{"type":"string"},"assumed_knowledge":{"type":"array","items":{"type":"string"}},"needs_addressed":{"type":"array","items":{"type":"string"}}},"required":["audience"]}`,
		},
		{
			ID: "content_ideas",
			Template: "Using the segment notes below, propose follow-up content ideas that build on " +
				"this video's strongest material. For each idea give a working title and a one-line angle.",
			Schema: `{"type":"object","properties":{"ideas":{"type":"array","items":{"type":"object","properties":{"title":{"type":"string"},"angle":{"type":"string"}},"required":["title","angle"]}}},"required":["ideas"]}`,
		},
	}
}

// DefaultInsightPrompt is the per-chunk analysis instruction. The worker
// appends the video reference and the chunk window.
const DefaultInsightPrompt = "Watch this segment of the video and write dense analyst notes: " +
	"topics covered, claims made, examples used, and anything a researcher would flag."

// PromptsFile is an on-disk override set for the built-in prompts.
// Empty fields keep their defaults.
type PromptsFile struct {
	InsightPrompt   string           `yaml:"insight_prompt"`
	ResearchPrompts []ResearchPrompt `yaml:"research_prompts"`
}

// LoadPromptsFile reads prompt overrides from a YAML file.
func LoadPromptsFile(path string) (*PromptsFile, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, eris.Wrapf(err, "pipeline: read prompts file %s", path)
	}

	var pf PromptsFile
	if err := yaml.Unmarshal(data, &pf); err != nil {
		return nil, eris.Wrapf(err, "pipeline: parse prompts file %s", path)
	}

	seen := make(map[string]bool, len(pf.ResearchPrompts))
	for _, p := range pf.ResearchPrompts {
		if p.ID == "" || p.Template == "" {
			return nil, eris.Errorf("pipeline: prompts file %s: research prompts need id and template", path)
		}
		if seen[p.ID] {
			return nil, eris.Errorf("pipeline: prompts file %s: duplicate prompt id %q", path, p.ID)
		}
		seen[p.ID] = true
		if p.Schema != "" && !json.Valid([]byte(p.Schema)) {
			return nil, eris.Errorf("pipeline: prompts file %s: prompt %q schema is not valid JSON", path, p.ID)
		}
	}
	return &pf, nil
}

// Apply overlays the file's overrides onto cfg.
func (pf *PromptsFile) Apply(cfg Config) Config {
	if pf.InsightPrompt != "" {
		cfg.InsightPrompt = pf.InsightPrompt
	}
	if len(pf.ResearchPrompts) > 0 {
		cfg.ResearchPrompts = pf.ResearchPrompts
	}
	return cfg
}

func insightPrompt(base, videoURL string, startSec, endSec int) string {
	return fmt.Sprintf("%s\n\nVideo: %s\nSegment: %ds to %ds", base, videoURL, startSec, endSec)
}

func researchPrompt(p ResearchPrompt, insights string) string {
	return p.Template + "\n\nSegment notes:\n" + insights
}

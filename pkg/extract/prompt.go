package extract

import (
	"fmt"
	"regexp"
	"strings"
)

// maxPromptText bounds how much of the description is sent to the model.
const maxPromptText = 8000

const generateTemplate = `You are a security architect. Convert the following architecture description into a strict JSON object that matches this schema.

Schema (follow exactly):
%s

Requirements:
- Use only the fields defined in the schema. No extra fields.
- zones: list of {"id": string, "name": string, "order": number (0=top), "color": hex or name}
- trust_boundaries: list of {"id": string, "label": string, "between_zones": [zone_id, zone_id]}
- groups: list of {"id": string, "label": string, "zone": zone_id, "children": [node_id or group_id]}
- nodes: list of {"id": string, "label": string, "zone": zone_id, "type": %s, "tags": []}
- flows: list of {"id": string, "source": node_id, "target": node_id, "flow_type": %s, "protocol": string, "auth": string, "data_class": string, "label": null or string}
- controls: list of {"id": string, "scope": [id, ...], "control_type": string}

Profile: %s. Detail level: %s.

Architecture description:
---
%s
---

Respond with ONLY the JSON object, no markdown code fence or explanation.`

const repairTemplate = `The following JSON is invalid for our architecture schema. Fix it so it validates.

Validation errors:
%s

Current JSON:
%s

Schema (for reference):
%s

Respond with ONLY the corrected JSON object, no markdown or explanation.`

func generatePrompt(text, profile, detail, schema string, nodeTypes, flowTypes []string) string {
	if len(text) > maxPromptText {
		text = text[:maxPromptText]
	}
	return fmt.Sprintf(generateTemplate, schema, quoteAlternatives(nodeTypes), quoteAlternatives(flowTypes),
		profile, detail, text)
}

func repairPrompt(current string, errs []string, schema string) string {
	return fmt.Sprintf(repairTemplate, strings.Join(errs, "\n"), current, schema)
}

func quoteAlternatives(values []string) string {
	quoted := make([]string, len(values))
	for i, v := range values {
		quoted[i] = fmt.Sprintf("%q", v)
	}
	return strings.Join(quoted, "|")
}

var (
	fenceOpenRe  = regexp.MustCompile("^```\\w*\\n?")
	fenceCloseRe = regexp.MustCompile("\\n?```\\s*$")
)

// stripFence removes a surrounding markdown code fence from a model answer.
func stripFence(content string) string {
	content = strings.TrimSpace(content)
	if !strings.HasPrefix(content, "```") {
		return content
	}
	content = fenceOpenRe.ReplaceAllString(content, "")
	return fenceCloseRe.ReplaceAllString(content, "")
}

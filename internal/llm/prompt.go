package llm

import (
	"fmt"
	"strings"

	"github.com/JonMunkholm/micareg/internal/remediation"
)

// Request is one chat completion call.
type Request struct {
	System string
	User   string
}

const systemPrompt = `You are a data cleaning assistant for ESMA MiCA interim register CSV files.

Propose a corrected value for one cell with a data quality issue.

Rules:
1. Fix only the issue described.
2. Do not change other parts of the value.
3. Use standard formats: dates DD/MM/YYYY, country codes as upper-case ISO codes joined with "|".
4. For encoding fixes use the proper Unicode characters (for example ß, ä, ö, ü).
5. If you are unsure, return the current value with a low confidence.

Respond with exactly one JSON object and nothing else:
{
  "proposedValue": "corrected value",
  "confidence": 0.0,
  "reasoning": "short explanation",
  "transformationType": "ENCODING_FIX | COUNTRY_NORMALIZE | WEBSITE_FIX | DATE_FIX | ADDRESS_FIX",
  "riskLevel": "LOW | MEDIUM | HIGH"
}
All five fields are required. confidence is a number between 0 and 1.`

// BuildPrompt renders the system and user messages for task.
func BuildPrompt(task remediation.Task) Request {
	var ctx strings.Builder
	for _, e := range task.Context {
		fmt.Fprintf(&ctx, "%s: %s\n", e.Column, e.Value)
	}

	user := fmt.Sprintf(`Task type: %s
Column: %s
Current value: %s
Issue: %s

Context (other columns of the same row):
%s
Provide the corrected value for the %s column.`,
		task.TaskType, task.Column, task.CurrentValue, task.IssueDescription, ctx.String(), task.Column)

	return Request{System: systemPrompt, User: user}
}

// Package remediation holds the entities exchanged by the model-assisted
// repair stages, together with the row identifier and the task generator.
//
// Every entity is created once per batch run and never mutated afterwards.
// Tasks, patches and apply results are persisted only as JSON artifacts.
package remediation

import (
	"bytes"
	"encoding/json"
	"fmt"
	"time"

	"github.com/JonMunkholm/micareg/internal/validate"
)

// TaskType is the kind of repair a task asks for.
type TaskType string

const (
	TaskEncodingFix      TaskType = "ENCODING_FIX"
	TaskCountryNormalize TaskType = "COUNTRY_NORMALIZE"
	TaskWebsiteFix       TaskType = "WEBSITE_FIX"
	TaskDateFix          TaskType = "DATE_FIX"
	TaskAddressFix       TaskType = "ADDRESS_FIX"
)

// TransformationType is the kind of edit a model claims to have made.
type TransformationType string

const (
	TransformEncodingFix      TransformationType = "ENCODING_FIX"
	TransformCountryNormalize TransformationType = "COUNTRY_NORMALIZE"
	TransformWebsiteFix       TransformationType = "WEBSITE_FIX"
	TransformDateFix          TransformationType = "DATE_FIX"
	TransformAddressFix       TransformationType = "ADDRESS_FIX"
)

var transformations = map[TransformationType]bool{
	TransformEncodingFix:      true,
	TransformCountryNormalize: true,
	TransformWebsiteFix:       true,
	TransformDateFix:          true,
	TransformAddressFix:       true,
}

// Valid reports whether t is a known transformation.
func (t TransformationType) Valid() bool {
	return transformations[t]
}

// RiskLevel classifies how much damage a wrong edit could do.
type RiskLevel string

const (
	RiskLow    RiskLevel = "LOW"
	RiskMedium RiskLevel = "MEDIUM"
	RiskHigh   RiskLevel = "HIGH"
)

// Valid reports whether r is a known risk level.
func (r RiskLevel) Valid() bool {
	return r == RiskLow || r == RiskMedium || r == RiskHigh
}

// RowIdentifier locates a row without relying on its position. At least
// one of LEI or SyntheticID is set.
type RowIdentifier struct {
	LEI                string `json:"lei,omitempty"`
	CompetentAuthority string `json:"competentAuthority,omitempty"`
	ServiceCountry     string `json:"serviceCountry,omitempty"`
	SyntheticID        string `json:"syntheticId,omitempty"`
}

// Key renders the identifier as a single string.
func (id RowIdentifier) Key() string {
	switch {
	case id.LEI != "" && id.CompetentAuthority != "" && id.ServiceCountry != "":
		return id.LEI + "|" + id.CompetentAuthority + "|" + id.ServiceCountry
	case id.LEI != "":
		return id.LEI
	case id.SyntheticID != "":
		return id.SyntheticID
	default:
		return "unknown"
	}
}

// ContextEntry is one column of task context.
type ContextEntry struct {
	Column string
	Value  string
}

// Context is the row data shown to the model, in whitelist order. It
// serializes as a JSON object whose keys keep that order.
type Context []ContextEntry

// Get returns the value recorded for column.
func (c Context) Get(column string) (string, bool) {
	for _, e := range c {
		if e.Column == column {
			return e.Value, true
		}
	}
	return "", false
}

// Len is the total number of runes across all values.
func (c Context) Len() int {
	n := 0
	for _, e := range c {
		n += len([]rune(e.Value))
	}
	return n
}

func (c Context) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, e := range c {
		if i > 0 {
			buf.WriteByte(',')
		}
		k, err := json.Marshal(e.Column)
		if err != nil {
			return nil, err
		}
		v, err := json.Marshal(e.Value)
		if err != nil {
			return nil, err
		}
		buf.Write(k)
		buf.WriteByte(':')
		buf.Write(v)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

func (c *Context) UnmarshalJSON(data []byte) error {
	dec := json.NewDecoder(bytes.NewReader(data))
	tok, err := dec.Token()
	if err != nil {
		return err
	}
	if tok == nil {
		*c = nil
		return nil
	}
	if d, ok := tok.(json.Delim); !ok || d != '{' {
		return fmt.Errorf("context: expected object, got %v", tok)
	}

	out := Context{}
	for dec.More() {
		tok, err := dec.Token()
		if err != nil {
			return err
		}
		key, ok := tok.(string)
		if !ok {
			return fmt.Errorf("context: expected key, got %v", tok)
		}
		var value string
		if err := dec.Decode(&value); err != nil {
			return fmt.Errorf("context %q: %w", key, err)
		}
		out = append(out, ContextEntry{Column: key, Value: value})
	}
	if _, err := dec.Token(); err != nil {
		return err
	}
	*c = out
	return nil
}

// TaskMetadata traces a task back to the validation issue it came from.
type TaskMetadata struct {
	IssueCode string `json:"issueCode"`
	RowNumber int    `json:"rowNumber"`
	RowIndex  int    `json:"rowIndex"`
	Example   string `json:"example,omitempty"`
}

// Task is a single edit request for one cell.
type Task struct {
	TaskID           string            `json:"taskId"`
	TaskType         TaskType          `json:"taskType"`
	RowIdentifier    RowIdentifier     `json:"rowIdentifier"`
	Column           string            `json:"column"`
	CurrentValue     string            `json:"currentValue"`
	IssueDescription string            `json:"issueDescription"`
	Context          Context           `json:"context"`
	Severity         validate.Severity `json:"severity"`
	Metadata         TaskMetadata      `json:"metadata"`
}

// Proposal is one model answer for one task.
type Proposal struct {
	TaskID             string             `json:"taskId"`
	ProposedValue      string             `json:"proposedValue"`
	Confidence         float64            `json:"confidence"`
	Reasoning          string             `json:"reasoning"`
	TransformationType TransformationType `json:"transformationType"`
	RiskLevel          RiskLevel          `json:"riskLevel"`
}

// PatchMetadata records how a patch was produced.
type PatchMetadata struct {
	ModelsTried    []string `json:"modelsTried"`
	ModelUsed      string   `json:"modelUsed"`
	TasksProcessed int      `json:"tasksProcessed"`
	TasksTotal     int      `json:"tasksTotal"`
	TokensUsed     int      `json:"tokensUsed,omitempty"`
}

// Patch is the model output for one batch of tasks. An empty Proposals
// list is a valid outcome.
type Patch struct {
	PatchID       string        `json:"patchId"`
	GeneratedAt   time.Time     `json:"generatedAt"`
	ModelProvider string        `json:"modelProvider"`
	ModelName     string        `json:"modelName"`
	Proposals     []Proposal    `json:"proposals"`
	Metadata      PatchMetadata `json:"metadata"`
}

// AppliedChange is the audit record of one applied proposal.
type AppliedChange struct {
	TaskID             string             `json:"taskId"`
	Column             string             `json:"column"`
	Row                int                `json:"row"`
	OldValue           string             `json:"oldValue"`
	NewValue           string             `json:"newValue"`
	Confidence         float64            `json:"confidence"`
	Reasoning          string             `json:"reasoning"`
	TransformationType TransformationType `json:"transformationType"`
	RiskLevel          RiskLevel          `json:"riskLevel"`
	CanonicalRiskLevel RiskLevel          `json:"canonicalRiskLevel"`
	AppliedAt          time.Time          `json:"appliedAt"`
}

// RejectedChange records a proposal that was not applied and why.
type RejectedChange struct {
	TaskID             string    `json:"taskId"`
	Column             string    `json:"column,omitempty"`
	Row                int       `json:"row,omitempty"`
	CurrentValue       string    `json:"currentValue,omitempty"`
	ProposedValue      string    `json:"proposedValue,omitempty"`
	Confidence         float64   `json:"confidence,omitempty"`
	RiskLevel          RiskLevel `json:"riskLevel,omitempty"`
	CanonicalRiskLevel RiskLevel `json:"canonicalRiskLevel,omitempty"`
	Reason             string    `json:"reason"`
}

// ApplyResult is the outcome of applying a patch. Zero applied changes is
// a valid, non-exceptional result.
type ApplyResult struct {
	PatchID         string           `json:"patchId"`
	AppliedAt       time.Time        `json:"appliedAt"`
	AppliedCount    int              `json:"appliedCount"`
	RejectedCount   int              `json:"rejectedCount"`
	SkippedCount    int              `json:"skippedCount"`
	AppliedChanges  []AppliedChange  `json:"appliedChanges"`
	RejectedChanges []RejectedChange `json:"rejectedChanges"`
	Errors          []string         `json:"errors"`
}

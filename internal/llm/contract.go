package llm

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"
	"unicode/utf8"

	"github.com/JonMunkholm/micareg/internal/remediation"
	"github.com/JonMunkholm/micareg/internal/textfix"
)

const (
	maxProposedValue = 1000
	maxReasoning     = 500
)

// response mirrors the JSON object the model must return. Pointers tell
// a missing field apart from a zero value.
type response struct {
	ProposedValue      *string  `json:"proposedValue"`
	Confidence         *float64 `json:"confidence"`
	Reasoning          *string  `json:"reasoning"`
	TransformationType *string  `json:"transformationType"`
	RiskLevel          *string  `json:"riskLevel"`
}

// stripFences removes a surrounding Markdown code fence.
func stripFences(s string) string {
	s = strings.TrimSpace(s)
	switch {
	case strings.HasPrefix(s, "```json"):
		s = s[len("```json"):]
	case strings.HasPrefix(s, "```"):
		s = s[len("```"):]
	}
	s = strings.TrimSuffix(strings.TrimSpace(s), "```")
	return strings.TrimSpace(s)
}

// ParseProposal decodes a model reply for taskID. Any deviation from the
// contract is an error; nothing is coerced or defaulted.
func ParseProposal(taskID, text string) (remediation.Proposal, error) {
	body := stripFences(text)
	if body == "" {
		return remediation.Proposal{}, ErrEmptyResponse
	}

	dec := json.NewDecoder(strings.NewReader(body))
	dec.DisallowUnknownFields()

	var r response
	if err := dec.Decode(&r); err != nil {
		return remediation.Proposal{}, fmt.Errorf("%w: %v", ErrContract, err)
	}
	if _, err := dec.Token(); !errors.Is(err, io.EOF) {
		return remediation.Proposal{}, fmt.Errorf("%w: trailing data after object", ErrContract)
	}

	switch {
	case r.ProposedValue == nil:
		return remediation.Proposal{}, missing("proposedValue")
	case r.Confidence == nil:
		return remediation.Proposal{}, missing("confidence")
	case r.Reasoning == nil:
		return remediation.Proposal{}, missing("reasoning")
	case r.TransformationType == nil:
		return remediation.Proposal{}, missing("transformationType")
	case r.RiskLevel == nil:
		return remediation.Proposal{}, missing("riskLevel")
	}

	p := remediation.Proposal{
		TaskID:             taskID,
		ProposedValue:      *r.ProposedValue,
		Confidence:         *r.Confidence,
		Reasoning:          textfix.Truncate(*r.Reasoning, maxReasoning),
		TransformationType: remediation.TransformationType(*r.TransformationType),
		RiskLevel:          remediation.RiskLevel(*r.RiskLevel),
	}

	if utf8.RuneCountInString(p.ProposedValue) > maxProposedValue {
		return remediation.Proposal{}, fmt.Errorf("%w: proposedValue longer than %d characters", ErrContract, maxProposedValue)
	}
	if p.Confidence < 0 || p.Confidence > 1 {
		return remediation.Proposal{}, fmt.Errorf("%w: confidence %v outside [0, 1]", ErrContract, p.Confidence)
	}
	if !p.TransformationType.Valid() {
		return remediation.Proposal{}, fmt.Errorf("%w: unknown transformationType %q", ErrContract, p.TransformationType)
	}
	if !p.RiskLevel.Valid() {
		return remediation.Proposal{}, fmt.Errorf("%w: unknown riskLevel %q", ErrContract, p.RiskLevel)
	}
	return p, nil
}

func missing(field string) error {
	return fmt.Errorf("%w: missing field %q", ErrContract, field)
}

// compactJSON is used for debug logging of raw replies.
func compactJSON(s string) string {
	var buf bytes.Buffer
	if err := json.Compact(&buf, []byte(s)); err != nil {
		return textfix.Ellipsize(s, 200)
	}
	return textfix.Ellipsize(buf.String(), 200)
}

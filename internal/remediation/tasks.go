package remediation

import (
	"unicode/utf8"

	"github.com/google/uuid"

	"github.com/JonMunkholm/micareg/internal/csvio"
	"github.com/JonMunkholm/micareg/internal/schema"
	"github.com/JonMunkholm/micareg/internal/textfix"
	"github.com/JonMunkholm/micareg/internal/validate"
)

// DefaultMaxTasks is used when Generate is given a non-positive limit.
const DefaultMaxTasks = 50

const (
	maxRowsPerIssue = 5
	maxCurrentValue = 1000
	maxContextValue = 500
	maxContextTotal = 2000
)

// taskTypes maps issue codes to the repair they call for. Codes without an
// entry, the LEI checks among them, never produce tasks.
var taskTypes = map[string]TaskType{
	validate.CodeEncodingSuspect:        TaskEncodingFix,
	validate.CodeDateUnparsable:         TaskDateFix,
	validate.CodeDateNeedsNormalization: TaskDateFix,
	validate.CodeCountryCodeInvalid:     TaskCountryNormalize,
	validate.CodeMultilineWebsite:       TaskWebsiteFix,
	validate.CodeMultilineField:         TaskAddressFix,
}

// contextColumns lists the row columns shown to the model per task type.
var contextColumns = map[TaskType][]string{
	TaskEncodingFix: {
		schema.ColumnCommercialName,
		schema.ColumnAddress,
		schema.ColumnLEIName,
		schema.ColumnCompetentAuthority,
		schema.ColumnComments,
	},
	TaskCountryNormalize: {schema.ColumnHomeMemberState, schema.ColumnServiceCountries},
	TaskWebsiteFix:       {schema.ColumnWebsite, schema.ColumnCommercialName},
	TaskDateFix:          {schema.ColumnNotificationDate, schema.ColumnEndDate, schema.ColumnLastUpdate},
	TaskAddressFix:       {schema.ColumnAddress, schema.ColumnWebsite, schema.ColumnCommercialName},
}

// TaskTypeFor returns the task type mapped to an issue code.
func TaskTypeFor(code string) (TaskType, bool) {
	tt, ok := taskTypes[code]
	return tt, ok
}

// Generate turns report issues into tasks against the rows of t, which is
// normally the cleaned table. At most maxRowsPerIssue rows are taken from
// each issue and generation stops at maxTasks.
func Generate(report *validate.Report, t *csvio.Table, maxTasks int) []Task {
	if maxTasks <= 0 {
		maxTasks = DefaultMaxTasks
	}

	tasks := []Task{}
	for _, issue := range report.Issues {
		if len(tasks) >= maxTasks {
			break
		}
		taskType, ok := TaskTypeFor(issue.Code)
		if !ok || issue.Column == "" || issue.Column == schema.ColumnLEI {
			continue
		}
		if t.Index(issue.Column) < 0 {
			continue
		}

		rows := issue.Rows
		if len(rows) > maxRowsPerIssue {
			rows = rows[:maxRowsPerIssue]
		}
		for _, rowNum := range rows {
			if len(tasks) >= maxTasks {
				break
			}
			idx := rowNum - 2
			if idx < 0 || idx >= len(t.Rows) {
				continue
			}
			current := t.Cell(idx, issue.Column)
			if current == "" {
				continue
			}

			var example string
			if len(issue.Examples) > 0 {
				example = issue.Examples[0]
			}
			tasks = append(tasks, Task{
				TaskID:           uuid.NewString(),
				TaskType:         taskType,
				RowIdentifier:    Identify(t, idx),
				Column:           issue.Column,
				CurrentValue:     textfix.Truncate(current, maxCurrentValue),
				IssueDescription: issue.Message,
				Context:          buildContext(t, idx, taskType, issue.Column, current),
				Severity:         issue.Severity,
				Metadata: TaskMetadata{
					IssueCode: issue.Code,
					RowNumber: rowNum,
					RowIndex:  idx,
					Example:   example,
				},
			})
		}
	}
	return tasks
}

// buildContext collects the whitelisted columns of row. Values are capped
// individually and in total; the column that crosses the total cap is cut
// and ends the context.
func buildContext(t *csvio.Table, row int, tt TaskType, column, current string) Context {
	ctx := Context{}
	total := 0
	for _, col := range contextColumns[tt] {
		if t.Index(col) < 0 {
			continue
		}
		v := textfix.Ellipsize(t.Cell(row, col), maxContextValue)
		n := utf8.RuneCountInString(v)
		if total+n > maxContextTotal {
			ctx = append(ctx, ContextEntry{Column: col, Value: textfix.Truncate(v, maxContextTotal-total) + "..."})
			break
		}
		ctx = append(ctx, ContextEntry{Column: col, Value: v})
		total += n
	}
	if len(ctx) == 0 {
		ctx = append(ctx, ContextEntry{Column: column, Value: textfix.Truncate(current, maxContextValue)})
	}
	return ctx
}

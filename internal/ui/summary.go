package ui

import (
	"fmt"
	"io"

	"github.com/fatih/color"
)

const (
	successMarkerConstant          = "✓"
	failureMarkerConstant          = "✗"
	successLineTemplateConstant    = "%s %s\n"
	failureLineTemplateConstant    = "%s %s (%s): %v\n"
	totalsLineTemplateConstant     = "%d repositories: %d succeeded, %d failed\n"
	repositoryLineTemplateConstant = "%s\n"
)

// RepositoryStatus is one line of a run summary.
type RepositoryStatus struct {
	Name  string
	Stage string
	Error error
}

// SummaryPrinter writes colored per-repository results.
type SummaryPrinter struct {
	writer       io.Writer
	successColor *color.Color
	failureColor *color.Color
}

// NewSummaryPrinter constructs a SummaryPrinter. Colors follow fatih/color's terminal detection.
func NewSummaryPrinter(writer io.Writer) *SummaryPrinter {
	if writer == nil {
		writer = io.Discard
	}
	return &SummaryPrinter{
		writer:       writer,
		successColor: color.New(color.FgGreen),
		failureColor: color.New(color.FgRed, color.Bold),
	}
}

// PrintSummary writes one line per repository followed by the totals.
func (printer *SummaryPrinter) PrintSummary(statuses []RepositoryStatus) {
	failedCount := 0
	for _, status := range statuses {
		if status.Error != nil {
			failedCount++
			fmt.Fprintf(printer.writer, failureLineTemplateConstant, printer.failureColor.Sprint(failureMarkerConstant), status.Name, status.Stage, status.Error)
			continue
		}
		fmt.Fprintf(printer.writer, successLineTemplateConstant, printer.successColor.Sprint(successMarkerConstant), status.Name)
	}
	fmt.Fprintf(printer.writer, totalsLineTemplateConstant, len(statuses), len(statuses)-failedCount, failedCount)
}

// PrintRepositoryNames writes one repository name per line.
func (printer *SummaryPrinter) PrintRepositoryNames(names []string) {
	for _, name := range names {
		fmt.Fprintf(printer.writer, repositoryLineTemplateConstant, name)
	}
}

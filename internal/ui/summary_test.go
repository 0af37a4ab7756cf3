package ui_test

import (
	"bytes"
	"errors"
	"testing"

	"github.com/fatih/color"
	"github.com/stretchr/testify/require"

	"github.com/temirov/repostamp/internal/ui"
)

func TestSummaryPrinterPrintSummary(testInstance *testing.T) {
	originalNoColor := color.NoColor
	color.NoColor = true
	defer func() { color.NoColor = originalNoColor }()

	var output bytes.Buffer
	printer := ui.NewSummaryPrinter(&output)
	printer.PrintSummary([]ui.RepositoryStatus{
		{Name: "cda-api", Stage: "done"},
		{Name: "cda-broken", Stage: "sync", Error: errors.New("clone of cda-broken failed (exit code 128)")},
	})

	require.Equal(testInstance,
		"✓ cda-api\n"+
			"✗ cda-broken (sync): clone of cda-broken failed (exit code 128)\n"+
			"2 repositories: 1 succeeded, 1 failed\n",
		output.String(),
	)
}

func TestSummaryPrinterPrintRepositoryNames(testInstance *testing.T) {
	var output bytes.Buffer
	ui.NewSummaryPrinter(&output).PrintRepositoryNames([]string{"cda-api", "cda-web"})
	require.Equal(testInstance, "cda-api\ncda-web\n", output.String())
}

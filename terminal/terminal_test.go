package terminal

import (
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func scripted(
	input string,
) (*UI, *bytes.Buffer) {
	var out bytes.Buffer
	return New(strings.NewReader(input), &out), &out
}

func TestGetInputRepromptsUntilNonEmpty(
	t *testing.T,
) {
	ui, _ := scripted("\n\nfoobar\n")

	assert.Equal(t, "foobar", ui.GetInput("Namespace: ", false))
}

func TestGetInputAllowEmpty(
	t *testing.T,
) {
	ui, _ := scripted("\n")

	assert.Equal(t, "", ui.GetInput("Email: ", true))
}

type getYNTestCase struct {
	input    string
	def      bool
	expected bool
}

var getYNTestCases = []getYNTestCase{
	{input: "\n", def: true, expected: true},
	{input: "\n", def: false, expected: false},
	{input: "y\n", def: false, expected: true},
	{input: "yes\n", def: false, expected: true},
	{input: "Y\n", def: false, expected: true},
	{input: "n\n", def: true, expected: false},
	{input: "no\n", def: true, expected: false},
	{input: "bogus\n", def: true, expected: false},
}

func TestGetYN(
	t *testing.T,
) {
	for _, tc := range getYNTestCases {
		ui, _ := scripted(tc.input)
		assert.Equal(t, tc.expected, ui.GetYN("Continue", tc.def),
			"input %q default %t", tc.input, tc.def)
	}
}

func TestGetIntDefaultAndReprompt(
	t *testing.T,
) {
	ui, out := scripted("\n")
	assert.Equal(t, int64(443), ui.GetInt("Port? ", 443))

	ui, out = scripted("abc\n8443\n")
	assert.Equal(t, int64(8443), ui.GetInt("Port? ", 443))
	assert.Contains(t, out.String(), "Please enter a number!")
}

func TestGetSelection(
	t *testing.T,
) {
	options := []Option{
		{Selector: 0, Prompt: "us-east-1", Value: "us-east-1"},
		{Selector: 1, Prompt: "eu-west-1", Value: "eu-west-1"},
	}

	ui, _ := scripted("1\n")
	value, ok := ui.GetSelection("Select region:", options, "Which region?", false)
	assert.True(t, ok)
	assert.Equal(t, "eu-west-1", value)
}

func TestGetSelectionRepromptsOnInvalidChoice(
	t *testing.T,
) {
	options := []Option{
		{Selector: 0, Prompt: "only", Value: "only"},
	}

	ui, out := scripted("9\n0\n")
	value, ok := ui.GetSelection("Select:", options, "Which?", false)
	assert.True(t, ok)
	assert.Equal(t, "only", value)
	assert.Contains(t, out.String(), "Please enter a valid choice!")
}

func TestGetSelectionAllowEmpty(
	t *testing.T,
) {
	options := []Option{
		{Selector: 0, Prompt: "only", Value: "only"},
	}

	ui, _ := scripted("\n")
	value, ok := ui.GetSelection("Select:", options, "Which?", true)
	assert.False(t, ok)
	assert.Nil(t, value)
}

func TestExhaustedInputDoesNotLoop(
	t *testing.T,
) {
	ui, _ := scripted("")

	// A closed input stream must terminate prompt loops instead of
	// spinning forever.
	assert.Equal(t, "", ui.GetInput("Namespace: ", false))

	value, ok := ui.GetSelection("Select:", []Option{
		{Selector: 0, Prompt: "only", Value: "only"},
	}, "Which?", false)
	assert.False(t, ok)
	assert.Nil(t, value)
}

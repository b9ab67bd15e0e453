package render

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testTemplate = `AWS_REGION = {{.AWS_REGION}}
SNS_TOPIC_ARN = {{.SNS_ARN}}
DOMAINS = {{.DOMAINS}}
`

func testVars() map[string]string {
	return map[string]string{
		"AWS_REGION": "'us-east-1'",
		"SNS_ARN":    "None",
		"DOMAINS":    "[]",
	}
}

func TestRenderSubstitutes(
	t *testing.T,
) {
	out, err := Render("config", testTemplate, testVars())
	require.NoError(t, err)

	expected := "AWS_REGION = 'us-east-1'\nSNS_TOPIC_ARN = None\nDOMAINS = []\n"
	assert.Equal(t, expected, string(out))
}

func TestRenderDeterministic(
	t *testing.T,
) {
	first, err := Render("config", testTemplate, testVars())
	require.NoError(t, err)
	second, err := Render("config", testTemplate, testVars())
	require.NoError(t, err)

	assert.Equal(t, first, second)
}

func TestRenderMissingPlaceholder(
	t *testing.T,
) {
	vars := testVars()
	delete(vars, "SNS_ARN")

	_, err := Render("config", testTemplate, vars)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrMissingPlaceholder)
}

func TestFileWritesOutput(
	t *testing.T,
) {
	dir := t.TempDir()
	templatePath := filepath.Join(dir, "config.py.dist")
	outPath := filepath.Join(dir, "config-wizard.py")

	require.NoError(t, os.WriteFile(templatePath, []byte(testTemplate), 0o644))
	require.NoError(t, File(templatePath, outPath, testVars()))

	out, err := os.ReadFile(outPath)
	require.NoError(t, err)
	assert.Contains(t, string(out), "AWS_REGION = 'us-east-1'")
}

func TestFileMissingPlaceholderWritesNothing(
	t *testing.T,
) {
	dir := t.TempDir()
	templatePath := filepath.Join(dir, "config.py.dist")
	outPath := filepath.Join(dir, "config-wizard.py")

	require.NoError(t, os.WriteFile(templatePath, []byte(testTemplate), 0o644))

	vars := testVars()
	delete(vars, "DOMAINS")

	err := File(templatePath, outPath, vars)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrMissingPlaceholder)

	_, statErr := os.Stat(outPath)
	assert.True(t, os.IsNotExist(statErr), "no artifact may be written on a failed render")
}

package pipeline

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const linearProject = `
version: 3
actions:
  gen:
    run: python:latest generate_cohort
    config: default
    outputs:
      highly_sensitive:
        cohort: output/cohort.csv
  prep:
    run: python:latest prepare
    needs: [gen]
    outputs:
      highly_sensitive:
        prepped: output/prepped.csv
  analyze:
    run: python:latest analyze
    needs: [prep]
    outputs:
      moderately_sensitive:
        report: output/report.html
`

func TestParseLinearProject(t *testing.T) {
	project, err := Parse([]byte(linearProject))
	require.NoError(t, err)
	require.Len(t, project.Actions, 3)

	gen := project.Actions["gen"]
	assert.True(t, gen.IsDatabaseAction)
	assert.Empty(t, gen.Needs)

	analyze := project.Actions["analyze"]
	assert.Equal(t, []string{"prep"}, analyze.Needs)
	assert.Equal(t, "output/report.html", analyze.Outputs.ModeratelySensitive["report"])
}

func TestParseRejectsUndefinedDependency(t *testing.T) {
	_, err := Parse([]byte(`
version: 3
actions:
  analyze:
    run: python:latest analyze
    needs: [missing]
`))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "undefined action")
}

func TestParseRejectsCycle(t *testing.T) {
	_, err := Parse([]byte(`
version: 3
actions:
  a:
    run: cmd a
    needs: [b]
  b:
    run: cmd b
    needs: [a]
`))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "cycle")
}

func TestParseRejectsMissingRun(t *testing.T) {
	_, err := Parse([]byte(`
version: 3
actions:
  gen:
    needs: []
`))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no run command")
}

func TestActionNames(t *testing.T) {
	project, err := Parse([]byte(linearProject))
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"gen", "prep", "analyze"}, project.ActionNames())
}

package gate

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/pessini/superpod-blog/internal/workflow"
)

func out(content string) workflow.StepOutput {
	return workflow.StepOutput{Content: content, Success: true}
}

var sample = Checklist{
	Name: "sample",
	Indicators: []Indicator{
		AnyOf("pricing", "price", "market cap"),
		AnyOf("sources", "http", "source"),
		LongerThan("substantial", 20),
	},
	Threshold: 2,
}

func TestChecklistEmptyNeverPasses(t *testing.T) {
	assert.False(t, sample.Passed(nil))
	assert.False(t, sample.Passed([]workflow.StepOutput{}))
}

func TestChecklistBlankOutputNeverPasses(t *testing.T) {
	blank := Checklist{Indicators: []Indicator{LongerThan("len", -1)}, Threshold: 1}
	assert.False(t, blank.Passed([]workflow.StepOutput{out("   \n\t ")}))
}

func TestChecklistInspectsOnlyLatest(t *testing.T) {
	good := out("Price target from source http://x")
	bad := out("nothing")
	assert.True(t, sample.Passed([]workflow.StepOutput{bad, good}))
	assert.False(t, sample.Passed([]workflow.StepOutput{good, bad}))
}

func TestChecklistCaseFolds(t *testing.T) {
	score, hits := sample.Score("MARKET CAP, SOURCE")
	assert.Equal(t, 2, score)
	assert.Equal(t, []string{"pricing", "sources"}, hits)
}

func TestCountAtLeast(t *testing.T) {
	ind := CountAtLeast("links", "http", 3)
	assert.False(t, ind.Match("http http"))
	assert.True(t, ind.Match("http http https"))
}

func TestSubstringSemanticsHaveNoWordBoundaries(t *testing.T) {
	assert.True(t, ContainsAny("A riskless bet", []string{"risk"}))
	assert.False(t, ContainsAny("A safe bet", []string{"risk"}))
}

func TestMinLengthAnyOf(t *testing.T) {
	keywords := []string{"market"}
	short := "Market"
	long := "market " + strings.Repeat("x", 1000)
	assert.False(t, MinLengthAnyOf(short, 1000, keywords))
	assert.True(t, MinLengthAnyOf(long, 1000, keywords))
	assert.False(t, MinLengthAnyOf(strings.Repeat("y", 1200), 1000, keywords))
}

func TestLengthsCountCharactersNotBytes(t *testing.T) {
	// 407 characters, 1207 bytes
	text := "market " + strings.Repeat("市场", 200)
	assert.False(t, MinLengthAnyOf(text, 1000, []string{"market"}))
	assert.True(t, MinLengthAnyOf(text, 400, []string{"market"}))

	ind := LongerThan("substantial", 500)
	assert.False(t, ind.Match(text))
	assert.True(t, LongerThan("substantial", 406).Match(text))
}

func TestEndConditionReportsDecision(t *testing.T) {
	var gotName string
	var gotPassed bool
	cond := sample.EndCondition(func(name string, passed bool) {
		gotName, gotPassed = name, passed
	})
	assert.True(t, cond([]workflow.StepOutput{out("price from source, long enough text")}))
	assert.Equal(t, "sample", gotName)
	assert.True(t, gotPassed)
}

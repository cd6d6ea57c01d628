package scheduler

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseLabelExpr_EmptyMatchesEverything(t *testing.T) {
	expr, err := ParseLabelExpr("")
	require.NoError(t, err)
	assert.True(t, expr.Match(nil))
	assert.True(t, expr.Match(map[string]string{"gpu": "true"}))
}

func TestParseLabelExpr_SingleKeyValuePredicate(t *testing.T) {
	expr, err := ParseLabelExpr("gpu=true")
	require.NoError(t, err)
	assert.True(t, expr.Match(map[string]string{"gpu": "true"}))
	assert.False(t, expr.Match(map[string]string{"gpu": "false"}))
	assert.False(t, expr.Match(nil))
}

func TestParseLabelExpr_KeyOnlyPredicateChecksPresence(t *testing.T) {
	expr, err := ParseLabelExpr("gpu")
	require.NoError(t, err)
	assert.True(t, expr.Match(map[string]string{"gpu": "anything"}))
	assert.False(t, expr.Match(map[string]string{"cpu": "true"}))
}

func TestParseLabelExpr_ConjunctionRequiresAllPredicates(t *testing.T) {
	expr, err := ParseLabelExpr("region=us-east && gpu=true")
	require.NoError(t, err)
	assert.True(t, expr.Match(map[string]string{"region": "us-east", "gpu": "true"}))
	assert.False(t, expr.Match(map[string]string{"region": "us-east"}))
	assert.False(t, expr.Match(map[string]string{"gpu": "true"}))
}

func TestParseLabelExpr_GroupingWithParens(t *testing.T) {
	expr, err := ParseLabelExpr("(region=us-east && gpu=true)")
	require.NoError(t, err)
	assert.True(t, expr.Match(map[string]string{"region": "us-east", "gpu": "true"}))

	expr, err = ParseLabelExpr("region=us-east && (gpu=true)")
	require.NoError(t, err)
	assert.True(t, expr.Match(map[string]string{"region": "us-east", "gpu": "true"}))
}

func TestParseLabelExpr_RejectsUnbalancedParens(t *testing.T) {
	_, err := ParseLabelExpr("(gpu=true")
	assert.Error(t, err)

	_, err = ParseLabelExpr("gpu=true)")
	assert.Error(t, err)
}

func TestParseLabelExpr_RejectsTrailingOperator(t *testing.T) {
	_, err := ParseLabelExpr("gpu=true &&")
	assert.Error(t, err)
}

package warehouse

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBuildSelectComposesConjunctions(t *testing.T) {
	query, args, err := buildSelect(Spec{
		Table:   "data.nego_supplier_master",
		Columns: []string{"SUPPLIER", "SPEND_YTD"},
		Conds: []Cond{
			{Column: "CATEGORY", Op: "LOWER=", Value: "Bearings"},
			{Column: "YEAR", Op: ">=", Value: 2024},
			{Column: "SUPPLIER", Op: "IN", Value: []string{"A", "B"}},
		},
		OrderBy: "SPEND_YTD",
		Desc:    true,
		Limit:   5,
	})
	require.NoError(t, err)
	assert.Equal(t,
		"SELECT SUPPLIER, SPEND_YTD FROM data.nego_supplier_master"+
			" WHERE LOWER(CATEGORY) = LOWER($1) AND YEAR >= $2 AND SUPPLIER IN ($3, $4)"+
			" ORDER BY SPEND_YTD DESC LIMIT 5",
		query)
	assert.Equal(t, []any{"Bearings", 2024, "A", "B"}, args)
}

func TestBuildSelectRejectsNonIdentifiers(t *testing.T) {
	cases := []Spec{
		{Table: "t; DROP TABLE x"},
		{Table: "t", Conds: []Cond{{Column: "a OR 1=1", Op: "=", Value: 1}}},
		{Table: "t", Conds: []Cond{{Column: "a", Op: "BETWEEN", Value: 1}}},
		{Table: "t", OrderBy: "a; --"},
		{Table: "t", GroupBy: []string{"a)"}},
	}
	for _, spec := range cases {
		_, _, err := buildSelect(spec)
		assert.ErrorIs(t, err, ErrBadFilter)
	}
}

func TestParseEmbeddingForms(t *testing.T) {
	vec, err := parseEmbedding("[1, 2.5, -3]")
	require.NoError(t, err)
	assert.Equal(t, []float64{1, 2.5, -3}, vec)

	vec, err = parseEmbedding("{0.1,0.2}")
	require.NoError(t, err)
	assert.Equal(t, []float64{0.1, 0.2}, vec)

	_, err = parseEmbedding("")
	assert.Error(t, err)
}

func TestEscapeLiteral(t *testing.T) {
	assert.Equal(t, "O''REILLY", EscapeLiteral("O'REILLY"))
}

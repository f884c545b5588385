package provider

import (
	"encoding/json"
	"testing"

	"github.com/sebdah/goldie/v2"
	"github.com/stretchr/testify/require"
)

func TestConditionSchemaGolden(t *testing.T) {
	data, err := json.MarshalIndent(conditionSchema(), "", "  ")
	require.NoError(t, err)

	g := goldie.New(t)
	g.Assert(t, "condition_schema", append(data, '\n'))
}

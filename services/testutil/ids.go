package testutil

import (
	"testing"

	"taskora/pkg/gen"
)

// NewIDs returns a snowflake generator for tests.
func NewIDs(t *testing.T) gen.IDGenerator {
	t.Helper()

	node, err := gen.NewSnowflakeNode(1)
	if err != nil {
		t.Fatalf("failed to init snowflake node: %v", err)
	}
	return node
}

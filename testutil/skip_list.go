package testutil

import (
	"strings"
	"testing"
)

// skipListMySQL57 defines test cases that should be skipped for MySQL 5.7.
//
// MySQL 5.7 parses but ignores DESC in index definitions (STATISTICS.COLLATION is always "A")
// and does not report DEFAULT_GENERATED in COLUMNS.EXTRA, so round-trips through the catalog
// differ from what MySQL 8 reports.
var skipListMySQL57 = []string{
	"plan/descending_index",
	"apply/round_trip",
	"TestInspect_DescendingIndex",
}

// skipListForVersion maps MySQL major versions to their skip lists.
var skipListForVersion = map[int][]string{
	5: skipListMySQL57,
}

// ShouldSkipTest checks if a test should be skipped for the given MySQL major version.
// If the test should be skipped, it calls t.Skipf() which stops test execution.
//
// Pattern "plan/descending_index" matches test name "plan_descending_index".
func ShouldSkipTest(t *testing.T, testName string, majorVersion int) {
	t.Helper()

	skipPatterns, exists := skipListForVersion[majorVersion]
	if !exists {
		return
	}

	for _, pattern := range skipPatterns {
		patternNormalized := strings.ReplaceAll(pattern, "/", "_")
		if testName == patternNormalized || testName == pattern {
			t.Skipf("Skipping test %q on MySQL %d due to catalog reporting differences", testName, majorVersion)
		}
	}
}

package object

import (
	"strings"
	"testing"
)

func TestReportKey(t *testing.T) {
	key, err := ReportKey("tab-1", "hawkkeyed-doc-summary-20260101-000000.pdf")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !strings.HasPrefix(key, "reports/") || !strings.HasSuffix(key, "/hawkkeyed-doc-summary-20260101-000000.pdf") {
		t.Fatalf("unexpected key %q", key)
	}
	if _, err := ReportKey("tab-1", "../x.pdf"); err == nil {
		t.Fatalf("expected traversal to be rejected")
	}
}

package status

import (
	"bytes"
	"testing"
)

func TestReporter(t *testing.T) {
	buf := &bytes.Buffer{}
	indicator := NewIndicator(buf, true)
	reporter := NewReporter(indicator)

	reporter.ReportSending()
	if indicator.status != StatusSending {
		t.Errorf("expected status to be StatusSending, got %v", indicator.status)
	}

	reporter.ReportSuccess()
	if indicator.status != StatusSuccess {
		t.Errorf("expected status to be StatusSuccess, got %v", indicator.status)
	}

	reporter.ReportFailure()
	if indicator.status != StatusFailed {
		t.Errorf("expected status to be StatusFailed, got %v", indicator.status)
	}

	reporter.ReportUnread(7)
	if indicator.unread != 7 {
		t.Errorf("expected unread to be 7, got %d", indicator.unread)
	}
}

func TestReporterWithNilIndicator(t *testing.T) {
	reporter := NewReporter(nil)

	// Should not panic
	reporter.ReportSending()
	reporter.ReportSuccess()
	reporter.ReportFailure()
	reporter.ReportUnread(1)
}

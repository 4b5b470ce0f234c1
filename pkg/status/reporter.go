package status

import "github.com/Veraticus/sessionguard/pkg/interfaces"

// Reporter adapts an Indicator to the delivery queue and inbox watcher. A nil
// indicator turns every report into a no-op.
type Reporter struct {
	indicator *Indicator
}

// NewReporter creates a new status reporter
func NewReporter(indicator *Indicator) *Reporter {
	return &Reporter{
		indicator: indicator,
	}
}

// Ensure Reporter implements StatusReporter
var _ interfaces.StatusReporter = (*Reporter)(nil)

// ReportSending reports that a notification is being delivered
func (r *Reporter) ReportSending() {
	if r.indicator != nil {
		r.indicator.SetStatus(StatusSending)
	}
}

// ReportSuccess reports that a notification was delivered
func (r *Reporter) ReportSuccess() {
	if r.indicator != nil {
		r.indicator.SetStatus(StatusSuccess)
	}
}

// ReportFailure reports that a notification could not be delivered
func (r *Reporter) ReportFailure() {
	if r.indicator != nil {
		r.indicator.SetStatus(StatusFailed)
	}
}

// ReportUnread shows the backend's unread notification count
func (r *Reporter) ReportUnread(n int) {
	if r.indicator != nil {
		r.indicator.SetUnread(n)
	}
}

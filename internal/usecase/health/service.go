package health

import "context"

// Status represents the aggregated health status.
type Status string

const (
	// Healthy indicates all components are operational.
	Healthy Status = "ok"
	// Degraded indicates partial failure.
	Degraded Status = "degraded"
)

// CheckResult represents an individual component health check outcome.
type CheckResult string

const (
	// CheckOK indicates a passing health check.
	CheckOK CheckResult = "ok"
	// CheckError indicates a failing health check.
	CheckError CheckResult = "error"
)

// Report aggregates health check results.
type Report struct {
	Status Status
	Checks map[string]CheckResult
}

// Service coordinates health checks. A degraded criteria feed or a
// saturated queue does not stop matching, but operators need to see both.
type Service struct {
	db      DBPinger
	watcher WatcherStatus
	queue   QueueStatus
}

// New creates a Service. watcher and queue can be nil.
func New(db DBPinger, watcher WatcherStatus, queue QueueStatus) *Service {
	return &Service{db: db, watcher: watcher, queue: queue}
}

// Check runs health checks against all components.
func (s *Service) Check(ctx context.Context) Report {
	checks := make(map[string]CheckResult)

	if err := s.db.Ping(ctx); err != nil {
		checks["database"] = CheckError
	} else {
		checks["database"] = CheckOK
	}

	if s.watcher != nil {
		if s.watcher.FeedOK() {
			checks["criteria_feed"] = CheckOK
		} else {
			checks["criteria_feed"] = CheckError
		}
	}

	if s.queue != nil {
		if s.queue.Healthy() {
			checks["listing_queue"] = CheckOK
		} else {
			checks["listing_queue"] = CheckError
		}
	}

	status := Healthy
	for _, v := range checks {
		if v == CheckError {
			status = Degraded
			break
		}
	}

	return Report{Status: status, Checks: checks}
}

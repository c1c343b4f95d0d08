package audit

import "time"

// Action enumerates the ledger mutations worth an audit trail entry.
type Action string

const (
	ActionReportRegistered Action = "report_registered"
	ActionReportUpdated    Action = "report_updated"
	ActionReportRemoved    Action = "report_removed"
)

// Event is emitted from domain logic to capture ledger mutations. It is
// transport-agnostic so sinks (in-memory store, Kafka) can fan out.
type Event struct {
	Timestamp     time.Time
	Action        Action
	BeneficiaryID string
	BenefitType   string
	ReportID      string
	SocialWorker  string
	Detail        string
}

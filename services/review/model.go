package review

import (
	"fmt"

	"taskora/pkg/identity"
	"taskora/services/submission"
)

type Decision string

const (
	DecisionApprove Decision = "approve"
	DecisionReject  Decision = "reject"
)

func ParseDecision(v string) (Decision, error) {
	d := Decision(v)
	switch d {
	case DecisionApprove, DecisionReject:
		return d, nil
	default:
		return "", fmt.Errorf("unknown review decision %q", v)
	}
}

// Target is the terminal status a decision moves a submission into.
func (d Decision) Target() submission.Status {
	switch d {
	case DecisionApprove:
		return submission.StatusApproved
	case DecisionReject:
		return submission.StatusRejected
	default:
		return ""
	}
}

type ReviewParams struct {
	Caller       identity.Identity
	SubmissionID string
	Decision     Decision
	AdminNote    *string
}

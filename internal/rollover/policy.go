package rollover

import (
	"fmt"

	"github.com/leaderreps/leaderreps/internal/constants"
	"github.com/leaderreps/leaderreps/internal/models"
)

// The two commitment policies observed in the field. The lazy client path
// starts every day fresh; the midnight/time-travel path kept Pending
// commitments. Which one is intended is a product decision, so both are
// selectable and neither is folded into the other.

// ParsePolicy validates a configured commitment policy.
func ParsePolicy(s string) (constants.CommitmentPolicy, error) {
	switch p := constants.CommitmentPolicy(s); p {
	case constants.CommitmentsClear, constants.CommitmentsPreservePending:
		return p, nil
	case "":
		return constants.CommitmentsClear, nil
	default:
		return "", fmt.Errorf("unknown commitment policy %q (want %q or %q)",
			s, constants.CommitmentsClear, constants.CommitmentsPreservePending)
	}
}

func carryCommitments(policy constants.CommitmentPolicy, cs []models.Commitment) []models.Commitment {
	out := []models.Commitment{}
	if policy != constants.CommitmentsPreservePending {
		return out
	}
	for _, c := range cs {
		if c.Status != models.RepCommitted {
			out = append(out, c)
		}
	}
	return out
}

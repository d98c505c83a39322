package mapper

import "github.com/Kvilt1/merger-simple/internal/models"

type Reason string

const (
	ReasonIDNotFound       Reason = "id-not-found"
	ReasonAlreadyClaimed   Reason = "already-claimed"
	ReasonNoTimestamp      Reason = "no-timestamp"
	ReasonNoMessages       Reason = "no-messages"
	ReasonOutsideTolerance Reason = "outside-tolerance"
	ReasonAmbiguousDate    Reason = "ambiguous-date"
	ReasonNoCandidate      Reason = "no-candidate"
	ReasonMultipleSnaps    Reason = "multiple-candidates"
)

// Outcome is the result of trying to place one asset or media id.
type Outcome interface {
	outcome()
}

type Resolved struct {
	Key        models.MessageKey
	Resolution models.Resolution
}

type Unresolved struct {
	Method  models.Method
	AssetID uint32
	MediaID string
	Reason  Reason
}

func (Resolved) outcome()   {}
func (Unresolved) outcome() {}

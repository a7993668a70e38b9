package extract

import (
	"time"

	"github.com/sells-group/leadscout/internal/model"
)

// directoryConfidence applies to all signals taken straight from the
// directory record: provider data is trusted but not infallible.
const directoryConfidence = 0.95

const sourceDirectory = "directory"

// DirectorySignals derives signals from the candidate's directory record
// alone. No network calls; always succeeds.
func DirectorySignals(b *model.Business, now time.Time) []model.Signal {
	mk := func(typ model.SignalType, v model.SignalValue) model.Signal {
		return model.Signal{
			BusinessID: b.ID,
			Type:       typ,
			Value:      v,
			Confidence: directoryConfidence,
			SourceKey:  sourceDirectory,
			ObservedAt: now,
		}
	}

	signals := []model.Signal{
		mk(model.SignalHasPhone, model.BoolValue(b.Phone != "")),
		mk(model.SignalHasWebsite, model.BoolValue(b.Website != "")),
	}

	if b.ReviewCount != nil {
		signals = append(signals, mk(model.SignalReviewCount, model.NumberValue(float64(*b.ReviewCount))))
	}
	if b.Rating != nil {
		signals = append(signals, mk(model.SignalRating, model.NumberValue(*b.Rating)))
	}
	if b.FranchiseGuess != nil {
		s := mk(model.SignalFranchiseGuess, model.BoolValue(*b.FranchiseGuess))
		// The guess is a batch heuristic, not provider data.
		s.Confidence = 0.7
		s.SourceKey = "directory:franchise_heuristic"
		signals = append(signals, s)
	}

	return signals
}

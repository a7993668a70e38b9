package scoring

import "github.com/sells-group/leadscout/internal/model"

// Resolve reduces an append-only signal list to one winning observation per
// type: highest confidence wins, confidence ties go to the most recent
// observation, full ties go to the greatest source key. The last tie-break
// makes the result independent of input order. This is the only place
// conflicting signals are arbitrated; everything downstream sees a single
// value per type.
func Resolve(signals []model.Signal) map[model.SignalType]model.Signal {
	resolved := make(map[model.SignalType]model.Signal, len(signals))
	for _, s := range signals {
		cur, ok := resolved[s.Type]
		if !ok || beats(&s, &cur) {
			resolved[s.Type] = s
		}
	}
	return resolved
}

func beats(s, cur *model.Signal) bool {
	if s.Confidence != cur.Confidence {
		return s.Confidence > cur.Confidence
	}
	if !s.ObservedAt.Equal(cur.ObservedAt) {
		return s.ObservedAt.After(cur.ObservedAt)
	}
	return s.SourceKey > cur.SourceKey
}

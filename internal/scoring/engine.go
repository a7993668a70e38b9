package scoring

import (
	"fmt"
	"math"

	"github.com/sells-group/leadscout/internal/model"
)

// Result is the scoring engine's output for one candidate.
type Result struct {
	Score          int
	Subscores      model.Subscores
	Justifications []string
}

// Raw point values for each scoring rule. The subscores are raw points on
// their own scales; the profile weights combine them into the final score.
const (
	icpBase           = 25
	icpIndependent    = 10
	icpStructuredData = 3
	icpHoursListed    = 2
	icpSocialPresence = 3

	painNoWebsite    = 15
	painNoChatWidget = 10
	painNoBooking    = 10
	painNoSSL        = 4
	painNotMobile    = 3
	painSiteError    = 3

	reachOwner     = 15
	reachEmail     = 5
	reachPhone     = 3
	reachPerSocial = 2
	reachSocialCap = 12
	reachCap       = 35

	riskBase      = 5
	riskNoSSL     = 3
	riskNoPrivacy = 2
)

// Score computes the weighted lead score for one candidate. It is a pure
// function of the resolved signal set and the profile: no external calls, no
// randomness, identical inputs always produce identical output. A candidate
// with zero signals still receives the ICP base and the risk base deduction.
func Score(signals []model.Signal, profile Profile) Result {
	resolved := Resolve(signals)

	var just []string
	fire := func(points float64, format string, args ...any) float64 {
		just = append(just, fmt.Sprintf(format, args...))
		return points
	}

	boolVal := func(typ model.SignalType) (value, present bool) {
		s, ok := resolved[typ]
		if !ok || s.Value.Kind != model.ValueBool {
			return false, false
		}
		return s.Value.Bool, true
	}

	// ICP fit.
	icp := fire(icpBase, "Industry and location fit (+%d ICP points)", icpBase)
	if v, ok := boolVal(model.SignalFranchiseGuess); ok && !v {
		icp += fire(icpIndependent, "Independently owned, not a franchise (+%d ICP points)", icpIndependent)
	}
	if v, ok := boolVal(model.SignalStructuredData); ok && v {
		icp += fire(icpStructuredData, "Structured data on website (+%d ICP points)", icpStructuredData)
	}
	if v, ok := boolVal(model.SignalHoursListed); ok && v {
		icp += fire(icpHoursListed, "Business hours listed (+%d ICP points)", icpHoursListed)
	}
	if socialCount(resolved) >= 2 {
		icp += fire(icpSocialPresence, "Established social media presence (+%d ICP points)", icpSocialPresence)
	}

	// Pain: absence of an expected capability is the opportunity.
	var pain float64
	if v, ok := boolVal(model.SignalNoWebsite); ok && v {
		pain += fire(painNoWebsite, "No website at all (+%d Pain points)", painNoWebsite)
	}
	if v, ok := boolVal(model.SignalHasChatWidget); ok && !v {
		pain += fire(painNoChatWidget, "No chat widget on website (+%d Pain points)", painNoChatWidget)
	}
	if v, ok := boolVal(model.SignalHasOnlineBooking); ok && !v {
		pain += fire(painNoBooking, "No online booking system (+%d Pain points)", painNoBooking)
	}
	if v, ok := boolVal(model.SignalHasSSL); ok && !v {
		pain += fire(painNoSSL, "Website served without SSL (+%d Pain points)", painNoSSL)
	}
	if v, ok := boolVal(model.SignalMobileFriendly); ok && !v {
		pain += fire(painNotMobile, "Website not mobile friendly (+%d Pain points)", painNotMobile)
	}
	if _, ok := resolved[model.SignalWebsiteError]; ok {
		pain += fire(painSiteError, "Website unreachable or erroring (+%d Pain points)", painSiteError)
	}

	// Reachability.
	var reach float64
	if v, ok := boolVal(model.SignalOwnerIdentified); ok && v {
		reach += fire(reachOwner, "Owner identified by name (+%d Reachability points)", reachOwner)
	}
	if _, ok := resolved[model.SignalContactEmail]; ok {
		reach += fire(reachEmail, "Direct email address found (+%d Reachability points)", reachEmail)
	}
	if _, ok := resolved[model.SignalContactPhone]; ok {
		reach += fire(reachPhone, "Direct phone number found (+%d Reachability points)", reachPhone)
	} else if v, ok := boolVal(model.SignalHasPhone); ok && v {
		reach += fire(reachPhone, "Phone number listed in directory (+%d Reachability points)", reachPhone)
	}
	if n := socialCount(resolved); n > 0 {
		pts := float64(n * reachPerSocial)
		if pts > reachSocialCap {
			pts = reachSocialCap
		}
		reach += fire(pts, "Active on %d social platforms (+%.0f Reachability points)", n, pts)
	}
	if reach > reachCap {
		reach = reachCap
	}

	// Compliance risk, subtracted.
	risk := fire(riskBase, "Baseline outreach compliance risk (-%d Risk points)", riskBase)
	if v, ok := boolVal(model.SignalHasSSL); ok && !v {
		risk += fire(riskNoSSL, "No SSL on website (-%d Risk points)", riskNoSSL)
	}
	if v, ok := boolVal(model.SignalHasPrivacyPolicy); ok && !v {
		risk += fire(riskNoPrivacy, "No discoverable privacy policy (-%d Risk points)", riskNoPrivacy)
	}

	w := profile.Weights
	final := icp*float64(w.ICP)/100 +
		pain*float64(w.Pain)/100 +
		reach*float64(w.Reachability)/100 -
		risk*float64(w.ComplianceRisk)/100
	if final < 0 {
		final = 0
	}
	if final > 100 {
		final = 100
	}

	return Result{
		Score: int(math.Round(final)),
		Subscores: model.Subscores{
			ICP:            icp,
			Pain:           pain,
			Reachability:   reach,
			ComplianceRisk: risk,
		},
		Justifications: just,
	}
}

func socialCount(resolved map[model.SignalType]model.Signal) int {
	s, ok := resolved[model.SignalSocialLinks]
	if !ok || s.Value.Kind != model.ValueObject {
		return 0
	}
	return len(s.Value.Object)
}

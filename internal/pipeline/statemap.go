package pipeline

import (
	"github.com/rotisserie/eris"

	"github.com/sells-group/crosssell/internal/model"
)

// State map keys.
const (
	keyCustomerID          = "customer_id"
	keyCustomerProfile     = "customer_profile"
	keyPurchasePatterns    = "purchase_patterns"
	keyProductAffinities   = "product_affinities"
	keyScoredOpportunities = "scored_opportunities"
	keyResearchReport      = "research_report"
	keyRecommendations     = "recommendations"
	keyError               = "error"
)

// ToMap exports the state as a plain map for engines that carry state
// between steps as JSON. Fields not produced yet are omitted.
func (s *State) ToMap() map[string]any {
	m := map[string]any{keyCustomerID: s.CustomerID}
	if s.CustomerProfile != nil {
		m[keyCustomerProfile] = s.CustomerProfile.ToMap()
	}
	if pp := s.PurchasePatterns; pp != nil {
		m[keyPurchasePatterns] = map[string]any{
			"current_products": cloneStrings(pp.CurrentProducts),
			"usage_percentage": pp.UsagePercentage,
			"synergy_products": cloneStrings(pp.SynergyProducts),
			"analysis":         pp.Analysis,
			"underutilized":    pp.Underutilized,
		}
	}
	if s.ProductAffinities != nil {
		m[keyProductAffinities] = cloneStrings(s.ProductAffinities)
	}
	if s.ScoredOpportunities != nil {
		m[keyScoredOpportunities] = recommendationMaps(s.ScoredOpportunities)
	}
	if s.ResearchReport != nil {
		m[keyResearchReport] = *s.ResearchReport
	}
	if s.Recommendations != nil {
		m[keyRecommendations] = recommendationMaps(s.Recommendations)
	}
	if s.Error != "" {
		m[keyError] = s.Error
	}
	return m
}

func recommendationMaps(recs []model.ProductRecommendation) []map[string]any {
	out := make([]map[string]any, 0, len(recs))
	for _, r := range recs {
		out = append(out, r.ToMap())
	}
	return out
}

// DecodeState rebuilds a State from ToMap output, before or after a JSON
// round trip.
func DecodeState(m map[string]any) (*State, error) {
	if m == nil {
		return nil, eris.New("state: nil map")
	}
	r := model.NewMapReader(m)
	st := &State{
		CustomerID: r.Str(keyCustomerID),
		Error:      r.Str(keyError),
	}

	if cp := r.Map(keyCustomerProfile); cp != nil {
		profile, err := model.CustomerProfileFromMap(cp)
		if err != nil {
			return nil, eris.Wrap(err, "state: customer_profile")
		}
		st.CustomerProfile = &profile
	}

	if pm := r.Map(keyPurchasePatterns); pm != nil {
		pr := model.NewMapReader(pm)
		st.PurchasePatterns = &PurchasePatterns{
			CurrentProducts: pr.List("current_products"),
			UsagePercentage: pr.Float("usage_percentage"),
			SynergyProducts: pr.List("synergy_products"),
			Analysis:        pr.Str("analysis"),
			Underutilized:   pr.Bool("underutilized"),
		}
		if err := pr.Err(); err != nil {
			return nil, eris.Wrap(err, "state: purchase_patterns")
		}
	}

	if r.Has(keyProductAffinities) {
		st.ProductAffinities = r.List(keyProductAffinities)
		if st.ProductAffinities == nil && r.Err() == nil {
			st.ProductAffinities = []string{}
		}
	}

	var err error
	if st.ScoredOpportunities, err = decodeRecommendations(r.Maps(keyScoredOpportunities)); err != nil {
		return nil, eris.Wrap(err, "state: scored_opportunities")
	}
	if st.Recommendations, err = decodeRecommendations(r.Maps(keyRecommendations)); err != nil {
		return nil, eris.Wrap(err, "state: recommendations")
	}

	if r.Has(keyResearchReport) {
		report := r.Str(keyResearchReport)
		st.ResearchReport = &report
	}

	if err := r.Err(); err != nil {
		return nil, eris.Wrap(err, "state")
	}
	return st, nil
}

func decodeRecommendations(items []map[string]any) ([]model.ProductRecommendation, error) {
	if items == nil {
		return nil, nil
	}
	out := make([]model.ProductRecommendation, 0, len(items))
	for _, item := range items {
		rec, err := model.ProductRecommendationFromMap(item)
		if err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	return out, nil
}

// StateFromMap is DecodeState for engine boundaries that cannot return an
// error: a map that fails to decode becomes a failed State carrying the
// customer id when one can be read.
func StateFromMap(m map[string]any) *State {
	st, err := DecodeState(m)
	if err == nil {
		return st
	}
	id, _ := m[keyCustomerID].(string)
	return &State{
		CustomerID: id,
		Error:      "State conversion error: " + err.Error(),
	}
}

package model

// RecommendationType classifies a recommended product.
type RecommendationType string

const (
	RecommendationCrossSell RecommendationType = "cross-sell"
	RecommendationUpsell    RecommendationType = "upsell"
)

// ProductRecommendation is one scored cross-sell or upsell opportunity.
type ProductRecommendation struct {
	ProductName        string  `json:"product_name"`
	RecommendationType string  `json:"recommendation_type"`
	ConfidenceScore    float64 `json:"confidence_score"` // 0.0-1.0
	Rationale          string  `json:"rationale"`
	EstimatedValue     int64   `json:"estimated_value"`
}

// ToMap exports the recommendation as a plain map keyed by JSON field names.
func (r ProductRecommendation) ToMap() map[string]any {
	return map[string]any{
		"product_name":        r.ProductName,
		"recommendation_type": r.RecommendationType,
		"confidence_score":    r.ConfidenceScore,
		"rationale":           r.Rationale,
		"estimated_value":     r.EstimatedValue,
	}
}

// ProductRecommendationFromMap is the inverse of ToMap.
func ProductRecommendationFromMap(m map[string]any) (ProductRecommendation, error) {
	r := NewMapReader(m)
	rec := ProductRecommendation{
		ProductName:        r.Str("product_name"),
		RecommendationType: r.Str("recommendation_type"),
		ConfidenceScore:    r.Float("confidence_score"),
		Rationale:          r.Str("rationale"),
		EstimatedValue:     r.Int("estimated_value"),
	}
	if err := r.Err(); err != nil {
		return ProductRecommendation{}, err
	}
	return rec, nil
}

// RecommendationResponse is the outcome of one pipeline run, as returned to
// API callers.
type RecommendationResponse struct {
	CustomerID      string                  `json:"customer_id"`
	ResearchReport  string                  `json:"research_report"`
	Recommendations []ProductRecommendation `json:"recommendations"`
	Success         bool                    `json:"success"`
	Error           string                  `json:"error,omitempty"`
}

// FailedResponse builds the response for a run that ended with an error.
func FailedResponse(customerID, msg string) RecommendationResponse {
	return RecommendationResponse{
		CustomerID:      customerID,
		ResearchReport:  "",
		Recommendations: []ProductRecommendation{},
		Success:         false,
		Error:           msg,
	}
}

package pipeline

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/sells-group/crosssell/internal/customer"
	"github.com/sells-group/crosssell/internal/monitoring"
)

// ContextExtraction loads the customer's raw record and normalizes it into
// a CustomerProfile.
type ContextExtraction struct {
	lookup  customer.Lookup
	source  string
	metrics *monitoring.Metrics
}

// NewContextExtraction creates the stage. source labels lookup metrics.
func NewContextExtraction(lookup customer.Lookup, source string, metrics *monitoring.Metrics) *ContextExtraction {
	return &ContextExtraction{lookup: lookup, source: source, metrics: metrics}
}

// Name implements Stage.
func (s *ContextExtraction) Name() string { return StageContextExtraction }

// Execute implements Stage.
func (s *ContextExtraction) Execute(ctx context.Context, st *State) *State {
	if st.Failed() {
		return st
	}

	rec, err := s.lookup.GetCustomerByID(ctx, st.CustomerID)
	if err != nil {
		zap.L().Warn("pipeline: customer lookup failed",
			zap.String("customer_id", st.CustomerID),
			zap.Error(err),
		)
		s.metrics.ObserveLookup(s.source, "error")
		return st.fail(fmt.Sprintf("Error fetching customer data: %v", err))
	}
	if rec == nil {
		s.metrics.ObserveLookup(s.source, "missing")
		return st.fail(fmt.Sprintf("Customer %s not found", st.CustomerID))
	}
	s.metrics.ObserveLookup(s.source, "found")

	profile := customer.ParseProfile(rec)
	st.CustomerProfile = &profile
	return st
}

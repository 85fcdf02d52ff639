package http

import (
	"net/http"

	"bizdash/internal/log"
	"bizdash/internal/services"
)

// dashboardRequest builds the service request shared by the dashboard and
// the business ranking report.
func (s *Server) dashboardRequest(r *http.Request, a Actor) (services.DashboardRequest, error) {
	f, err := parseFilters(r)
	if err != nil {
		return services.DashboardRequest{}, err
	}
	currency, err := parseCurrency(r)
	if err != nil {
		return services.DashboardRequest{}, err
	}
	return services.DashboardRequest{
		OrgID:    a.OrgID,
		Scope:    a.Scope(),
		Filters:  f,
		Currency: currency,
	}, nil
}

func (s *Server) handleDashboard(w http.ResponseWriter, r *http.Request) {
	a, ok := requireActor(w, r)
	if !ok {
		return
	}
	req, err := s.dashboardRequest(r, a)
	if err != nil {
		s.writeServiceError(w, r, log.OpAggregate, err)
		return
	}

	d, err := s.dashboard.Build(r.Context(), req)
	if err != nil {
		s.writeServiceError(w, r, log.OpAggregate, err)
		return
	}
	writeJSON(w, http.StatusOK, newDashboardDTO(d))
}

func (s *Server) handleBusinessReport(w http.ResponseWriter, r *http.Request) {
	a, ok := requireActor(w, r)
	if !ok {
		return
	}
	req, err := s.dashboardRequest(r, a)
	if err != nil {
		s.writeServiceError(w, r, log.OpAggregate, err)
		return
	}

	d, err := s.dashboard.Build(r.Context(), req)
	if err != nil {
		s.writeServiceError(w, r, log.OpAggregate, err)
		return
	}
	writeJSON(w, http.StatusOK, struct {
		Currency string     `json:"currency"`
		Ranking  rankingDTO `json:"ranking"`
	}{
		Currency: string(d.Currency),
		Ranking:  newRankingDTO(d.Ranking),
	})
}

func (s *Server) handleDailyReport(w http.ResponseWriter, r *http.Request) {
	a, ok := requireActor(w, r)
	if !ok {
		return
	}
	f, err := parseFilters(r)
	if err != nil {
		s.writeServiceError(w, r, log.OpList, err)
		return
	}

	rows, err := s.reports.DailySummaries(r.Context(), a.OrgID, a.Scope(), f)
	if err != nil {
		s.writeServiceError(w, r, log.OpList, err)
		return
	}
	writeJSON(w, http.StatusOK, mapSlice(rows, newDailySummaryDTO))
}

// handleMRR reports platform revenue across every tenant.
func (s *Server) handleMRR(w http.ResponseWriter, r *http.Request) {
	a, ok := requireActor(w, r)
	if !ok {
		return
	}
	if !a.IsSuperAdmin() {
		writeError(w, http.StatusForbidden, "super admin role required")
		return
	}

	report, err := s.reports.MRR(r.Context())
	if err != nil {
		s.writeServiceError(w, r, log.OpAggregate, err)
		return
	}
	writeJSON(w, http.StatusOK, newMRRDTO(report))
}

// handleSaveTenant creates or replaces the subscription of the org in the path.
func (s *Server) handleSaveTenant(w http.ResponseWriter, r *http.Request) {
	a, ok := requireActor(w, r)
	if !ok {
		return
	}
	if !a.IsSuperAdmin() {
		writeError(w, http.StatusForbidden, "super admin role required")
		return
	}
	var req tenantRequest
	if err := s.decodeBody(w, r, &req); err != nil {
		writeDecodeError(w, err)
		return
	}
	t, fe := req.toTenant(r.PathValue("id"))
	if len(fe) > 0 {
		writeValidation(w, fe)
		return
	}

	saved, err := s.records.SaveTenant(r.Context(), t)
	if err != nil {
		s.writeServiceError(w, r, log.OpUpdate, err)
		return
	}
	writeJSON(w, http.StatusOK, newTenantDTO(saved))
}

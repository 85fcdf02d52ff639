package http

import (
	"net/http"
	"strings"

	"bizdash/internal/core"
	"bizdash/internal/log"
)

// canWrite rejects writes to businesses outside the actor's scope.
func canWrite(w http.ResponseWriter, a Actor, businessID string) bool {
	if !a.Scope().Allows(businessID) {
		writeError(w, http.StatusForbidden, "business "+businessID+" is outside your scope")
		return false
	}
	return true
}

func recordCreated(r *http.Request, kind, id, orgID, businessID string) {
	log.NewStructuredLogger(log.FromContext(r.Context())).
		LogRecordCreated(r.Context(), kind, id, orgID, businessID)
}

func (s *Server) handleCreateSale(w http.ResponseWriter, r *http.Request) {
	a, ok := requireActor(w, r)
	if !ok {
		return
	}
	var req saleRequest
	if err := s.decodeBody(w, r, &req); err != nil {
		writeDecodeError(w, err)
		return
	}
	sale, fe := req.toSale(a.OrgID, s.location)
	if len(fe) > 0 {
		writeValidation(w, fe)
		return
	}
	if !canWrite(w, a, sale.BusinessID) {
		return
	}

	saved, err := s.records.CreateSale(r.Context(), sale)
	if err != nil {
		s.writeServiceError(w, r, log.OpCreate, err)
		return
	}
	recordCreated(r, "sale", saved.ID, saved.OrgID, saved.BusinessID)
	writeJSON(w, http.StatusCreated, newSaleDTO(saved, s.location))
}

func (s *Server) handleListSales(w http.ResponseWriter, r *http.Request) {
	a, ok := requireActor(w, r)
	if !ok {
		return
	}
	f, err := parseFilters(r)
	if err != nil {
		s.writeServiceError(w, r, log.OpList, err)
		return
	}

	sales, err := s.reports.Sales(r.Context(), a.OrgID, a.Scope(), f)
	if err != nil {
		s.writeServiceError(w, r, log.OpList, err)
		return
	}
	writeJSON(w, http.StatusOK, mapSlice(sales, func(x core.Sale) saleDTO {
		return newSaleDTO(x, s.location)
	}))
}

func (s *Server) handleCreateExpense(w http.ResponseWriter, r *http.Request) {
	a, ok := requireActor(w, r)
	if !ok {
		return
	}
	var req expenseRequest
	if err := s.decodeBody(w, r, &req); err != nil {
		writeDecodeError(w, err)
		return
	}
	e, fe := req.toExpense(a.OrgID)
	if len(fe) > 0 {
		writeValidation(w, fe)
		return
	}
	if !canWrite(w, a, e.BusinessID) {
		return
	}

	saved, err := s.records.CreateExpense(r.Context(), e)
	if err != nil {
		s.writeServiceError(w, r, log.OpCreate, err)
		return
	}
	recordCreated(r, "expense", saved.ID, saved.OrgID, saved.BusinessID)
	writeJSON(w, http.StatusCreated, newExpenseDTO(saved))
}

func (s *Server) handleListExpenses(w http.ResponseWriter, r *http.Request) {
	a, ok := requireActor(w, r)
	if !ok {
		return
	}
	f, err := parseFilters(r)
	if err != nil {
		s.writeServiceError(w, r, log.OpList, err)
		return
	}

	expenses, err := s.reports.Expenses(r.Context(), a.OrgID, a.Scope(), f)
	if err != nil {
		s.writeServiceError(w, r, log.OpList, err)
		return
	}
	writeJSON(w, http.StatusOK, mapSlice(expenses, newExpenseDTO))
}

// handleCreateBusiness is limited to roles that span the whole organization.
func (s *Server) handleCreateBusiness(w http.ResponseWriter, r *http.Request) {
	a, ok := requireActor(w, r)
	if !ok {
		return
	}
	if !a.SeesAll() {
		writeError(w, http.StatusForbidden, "only owners and admins can add businesses")
		return
	}
	var req businessRequest
	if err := s.decodeBody(w, r, &req); err != nil {
		writeDecodeError(w, err)
		return
	}

	saved, err := s.records.CreateBusiness(r.Context(), core.Business{
		OrgID:    a.OrgID,
		Name:     sanitizeInput(req.Name),
		Location: sanitizeInput(req.Location),
	})
	if err != nil {
		s.writeServiceError(w, r, log.OpCreate, err)
		return
	}
	recordCreated(r, "business", saved.ID, saved.OrgID, saved.ID)
	writeJSON(w, http.StatusCreated, newBusinessDTO(saved))
}

func (s *Server) handleListBusinesses(w http.ResponseWriter, r *http.Request) {
	a, ok := requireActor(w, r)
	if !ok {
		return
	}
	businesses, err := s.reports.Businesses(r.Context(), a.OrgID, a.Scope())
	if err != nil {
		s.writeServiceError(w, r, log.OpList, err)
		return
	}
	writeJSON(w, http.StatusOK, mapSlice(businesses, newBusinessDTO))
}

func (s *Server) handleCreateCashShift(w http.ResponseWriter, r *http.Request) {
	a, ok := requireActor(w, r)
	if !ok {
		return
	}
	var req cashShiftRequest
	if err := s.decodeBody(w, r, &req); err != nil {
		writeDecodeError(w, err)
		return
	}
	shift, fe := req.toShift(a.OrgID)
	if len(fe) > 0 {
		writeValidation(w, fe)
		return
	}
	if !canWrite(w, a, shift.BusinessID) {
		return
	}

	saved, err := s.records.CreateCashShift(r.Context(), shift)
	if err != nil {
		s.writeServiceError(w, r, log.OpCreate, err)
		return
	}
	recordCreated(r, "cash_shift", saved.ID, saved.OrgID, saved.BusinessID)
	writeJSON(w, http.StatusCreated, newCashShiftDTO(saved))
}

// handleListCashShifts returns per-business shift summaries for the period.
func (s *Server) handleListCashShifts(w http.ResponseWriter, r *http.Request) {
	a, ok := requireActor(w, r)
	if !ok {
		return
	}
	f, err := parseFilters(r)
	if err != nil {
		s.writeServiceError(w, r, log.OpList, err)
		return
	}

	summaries, err := s.reports.CashShifts(r.Context(), a.OrgID, a.Scope(), f)
	if err != nil {
		s.writeServiceError(w, r, log.OpList, err)
		return
	}
	writeJSON(w, http.StatusOK, mapSlice(summaries, newShiftSummaryDTO))
}

func (s *Server) handleCreateMovement(w http.ResponseWriter, r *http.Request) {
	a, ok := requireActor(w, r)
	if !ok {
		return
	}
	var req movementRequest
	if err := s.decodeBody(w, r, &req); err != nil {
		writeDecodeError(w, err)
		return
	}
	m, fe := req.toMovement(a.OrgID)
	if len(fe) > 0 {
		writeValidation(w, fe)
		return
	}
	if !canWrite(w, a, m.BusinessID) {
		return
	}

	saved, err := s.records.RecordMovement(r.Context(), m)
	if err != nil {
		s.writeServiceError(w, r, log.OpCreate, err)
		return
	}
	recordCreated(r, "inventory_movement", saved.ID, saved.OrgID, saved.BusinessID)
	writeJSON(w, http.StatusCreated, newMovementDTO(saved))
}

func (s *Server) handleListMovements(w http.ResponseWriter, r *http.Request) {
	a, ok := requireActor(w, r)
	if !ok {
		return
	}
	business := strings.TrimSpace(r.URL.Query().Get("business"))

	movements, err := s.reports.Movements(r.Context(), a.OrgID, a.Scope(), business)
	if err != nil {
		s.writeServiceError(w, r, log.OpList, err)
		return
	}
	writeJSON(w, http.StatusOK, mapSlice(movements, newMovementDTO))
}

func (s *Server) handleStock(w http.ResponseWriter, r *http.Request) {
	a, ok := requireActor(w, r)
	if !ok {
		return
	}
	business := strings.TrimSpace(r.URL.Query().Get("business"))

	levels, err := s.reports.Stock(r.Context(), a.OrgID, a.Scope(), business)
	if err != nil {
		s.writeServiceError(w, r, log.OpList, err)
		return
	}
	writeJSON(w, http.StatusOK, mapSlice(levels, func(l core.StockLevel) stockDTO {
		return stockDTO{
			BusinessID: l.BusinessID,
			Item:       l.Item,
			OnHand:     l.OnHand.String(),
			LastMoved:  l.LastMoved,
		}
	}))
}

func (s *Server) handleCreateRecurring(w http.ResponseWriter, r *http.Request) {
	a, ok := requireActor(w, r)
	if !ok {
		return
	}
	var req recurringRequest
	if err := s.decodeBody(w, r, &req); err != nil {
		writeDecodeError(w, err)
		return
	}
	re, fe := req.toRecurring(a.OrgID)
	if len(fe) > 0 {
		writeValidation(w, fe)
		return
	}
	if !canWrite(w, a, re.BusinessID) {
		return
	}

	saved, err := s.records.CreateRecurring(r.Context(), re)
	if err != nil {
		s.writeServiceError(w, r, log.OpCreate, err)
		return
	}
	recordCreated(r, "recurring_expense", saved.ID, saved.OrgID, saved.BusinessID)
	writeJSON(w, http.StatusCreated, newRecurringDTO(saved))
}

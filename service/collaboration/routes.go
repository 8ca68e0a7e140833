package collaboration

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os"
	"strconv"
	"time"

	"github.com/gorilla/mux"
	"github.com/mentorlink/MentorLink-server/cmd/models"
	"github.com/mentorlink/MentorLink-server/cmd/utils"
	"gorm.io/gorm"
)

// Request types accepted by the resolve endpoint.
const (
	RequestTypeUnavailable = "unavailable"
	RequestTypeTimeSlot    = "timeSlot"
)

type CollaborationHandler struct {
	db       *gorm.DB
	notifier *Notifier
}

func NewCollaborationHandler(db *gorm.DB) *CollaborationHandler {
	return &CollaborationHandler{
		db:       db,
		notifier: NewNotifier(db),
	}
}

func (h *CollaborationHandler) RegisterRoutes(router *mux.Router) {
	router.HandleFunc("/collaborations", utils.AuthMiddleware(h.GetAllCollaborations)).Methods("GET")
	router.HandleFunc("/collaborations/{id:[0-9]+}", utils.AuthMiddleware(h.GetCollaboration)).Methods("GET")
	router.HandleFunc("/collaborations/mentor/{mentorId:[0-9]+}", utils.AuthMiddleware(h.GetMentorCollaborations)).Methods("GET")
	router.HandleFunc("/collaborations/user/{userId:[0-9]+}", utils.AuthMiddleware(h.GetUserCollaborations)).Methods("GET")
	router.HandleFunc("/collaborations/{id:[0-9]+}/schedule", utils.AuthMiddleware(h.GetSchedule)).Methods("GET")
	router.HandleFunc("/collaborations/{id:[0-9]+}/requests/pending", utils.AuthMiddleware(h.GetPendingRequests)).Methods("GET")

	router.HandleFunc("/collaborations/{id:[0-9]+}/unavailable-dates", utils.AuthMiddleware(h.ProposeUnavailableDates)).Methods("POST")
	router.HandleFunc("/collaborations/{id:[0-9]+}/slot-changes", utils.AuthMiddleware(h.ProposeSlotChanges)).Methods("POST")
	router.HandleFunc("/collaborations/{id:[0-9]+}/requests/resolve", utils.AuthMiddleware(h.ResolveRequest)).Methods("PATCH")
	router.HandleFunc("/collaborations/{id:[0-9]+}/cancel", utils.AuthMiddleware(h.CancelCollaboration)).Methods("PATCH")
}

// parties identifies which side of the collaboration the caller is on.
// The mentor side is keyed by the mentor's user account, not the mentor
// profile id.
func (h *CollaborationHandler) parties(collab *models.Collaboration, callerID uint) (role string, counterpartyID uint, err error) {
	mentorUserID := uint(0)
	if collab.Mentor != nil {
		mentorUserID = collab.Mentor.UserID
	}

	switch callerID {
	case collab.UserID:
		return models.RequestedByMentee, mentorUserID, nil
	case mentorUserID:
		return models.RequestedByMentor, collab.UserID, nil
	default:
		return "", 0, errors.New("caller is not a party to this collaboration")
	}
}

func (h *CollaborationHandler) loadCollaboration(id uint64) (*models.Collaboration, error) {
	var collab models.Collaboration
	if err := h.db.Preload("Mentor").First(&collab, id).Error; err != nil {
		return nil, err
	}
	return &collab, nil
}

// approvedUnavailableDates collects every date already covered by an
// approved unavailability request, keyed by YYYY-MM-DD.
func (h *CollaborationHandler) approvedUnavailableDates(collaborationID uint) (map[string]bool, error) {
	var dates []models.UnavailableDate
	err := h.db.
		Joins("JOIN unavailability_requests ON unavailability_requests.id = unavailable_dates.request_id").
		Where("unavailability_requests.collaboration_id = ? AND unavailability_requests.status = ?",
			collaborationID, models.RequestStatusApproved).
		Find(&dates).Error
	if err != nil {
		return nil, err
	}

	taken := make(map[string]bool, len(dates))
	for _, d := range dates {
		taken[d.Date.Format(DateLayout)] = true
	}
	return taken, nil
}

// ProposeUnavailableDates records a batch of dates one party cannot attend.
// The projected end date is computed up front; the collaboration's end date
// only moves when the counterparty approves.
func (h *CollaborationHandler) ProposeUnavailableDates(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	collaborationID, err := strconv.ParseUint(vars["id"], 10, 64)
	if err != nil {
		http.Error(w, "Invalid collaboration ID", http.StatusBadRequest)
		return
	}

	callerID, err := utils.GetUserIDFromContext(r.Context())
	if err != nil {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	var proposal struct {
		Dates []struct {
			Date   string `json:"date"`
			Reason string `json:"reason"`
		} `json:"dates"`
	}
	if err := json.NewDecoder(r.Body).Decode(&proposal); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	collab, err := h.loadCollaboration(collaborationID)
	if err != nil {
		http.Error(w, "Collaboration not found", http.StatusNotFound)
		return
	}
	if collab.IsCancelled {
		http.Error(w, "Collaboration is cancelled", http.StatusConflict)
		return
	}

	role, counterpartyID, err := h.parties(collab, callerID)
	if err != nil {
		http.Error(w, "Not a party to this collaboration", http.StatusForbidden)
		return
	}

	day, err := ParseWeekday(collab.SlotDay)
	if err != nil {
		http.Error(w, "Collaboration has an invalid session day", http.StatusInternalServerError)
		return
	}

	entries := make([]models.UnavailableDate, 0, len(proposal.Dates))
	dates := make([]time.Time, 0, len(proposal.Dates))
	for _, entry := range proposal.Dates {
		if entry.Reason == "" {
			http.Error(w, "Each date requires a reason", http.StatusBadRequest)
			return
		}
		date, err := time.Parse(DateLayout, entry.Date)
		if err != nil {
			http.Error(w, fmt.Sprintf("Invalid date format: %s. Use YYYY-MM-DD", entry.Date), http.StatusBadRequest)
			return
		}
		dates = append(dates, date)
		entries = append(entries, models.UnavailableDate{Date: date, Reason: entry.Reason})
	}

	taken, err := h.approvedUnavailableDates(collab.ID)
	if err != nil {
		http.Error(w, "Error checking existing unavailable dates", http.StatusInternalServerError)
		return
	}

	today := TruncateToDay(time.Now())
	if err := validateProposalDates(dates, day, collab.StartDate, collab.EndDate, today, taken); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	projected := ProjectedEndDate(collab.EndDate, day, len(dates))

	request := models.UnavailabilityRequest{
		CollaborationID:  collab.ID,
		RequestedBy:      role,
		RequesterID:      callerID,
		ApproverID:       counterpartyID,
		Status:           models.RequestStatusPending,
		ProjectedEndDate: projected,
		Dates:            entries,
	}

	if err := h.db.Create(&request).Error; err != nil {
		http.Error(w, "Error saving request", http.StatusInternalServerError)
		return
	}

	go h.notifier.NotifyUser(counterpartyID, "Schedule change requested",
		fmt.Sprintf("Your counterpart proposed %d unavailable date(s)", len(entries)),
		map[string]interface{}{"collaboration_id": collab.ID, "request_id": request.ID})

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	json.NewEncoder(w).Encode(map[string]interface{}{
		"message":            "Unavailability request submitted",
		"request_id":         request.ID,
		"projected_end_date": projected.Format(DateLayout),
	})
}

// ProposeSlotChanges records replacement time slots for specific future
// session dates, pending counterparty approval.
func (h *CollaborationHandler) ProposeSlotChanges(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	collaborationID, err := strconv.ParseUint(vars["id"], 10, 64)
	if err != nil {
		http.Error(w, "Invalid collaboration ID", http.StatusBadRequest)
		return
	}

	callerID, err := utils.GetUserIDFromContext(r.Context())
	if err != nil {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	var proposal struct {
		Changes []struct {
			Date     string   `json:"date"`
			NewTimes []string `json:"new_time_slots"`
		} `json:"changes"`
	}
	if err := json.NewDecoder(r.Body).Decode(&proposal); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	collab, err := h.loadCollaboration(collaborationID)
	if err != nil {
		http.Error(w, "Collaboration not found", http.StatusNotFound)
		return
	}
	if collab.IsCancelled {
		http.Error(w, "Collaboration is cancelled", http.StatusConflict)
		return
	}

	role, counterpartyID, err := h.parties(collab, callerID)
	if err != nil {
		http.Error(w, "Not a party to this collaboration", http.StatusForbidden)
		return
	}

	day, err := ParseWeekday(collab.SlotDay)
	if err != nil {
		http.Error(w, "Collaboration has an invalid session day", http.StatusInternalServerError)
		return
	}

	changes := make([]models.SlotChange, 0, len(proposal.Changes))
	dates := make([]time.Time, 0, len(proposal.Changes))
	for _, entry := range proposal.Changes {
		if len(entry.NewTimes) == 0 {
			http.Error(w, "Each date requires at least one replacement time slot", http.StatusBadRequest)
			return
		}
		for _, slot := range entry.NewTimes {
			if slot == "" {
				http.Error(w, "Empty time slot", http.StatusBadRequest)
				return
			}
		}
		date, err := time.Parse(DateLayout, entry.Date)
		if err != nil {
			http.Error(w, fmt.Sprintf("Invalid date format: %s. Use YYYY-MM-DD", entry.Date), http.StatusBadRequest)
			return
		}
		dates = append(dates, date)
		changes = append(changes, models.SlotChange{Date: date, NewTimes: entry.NewTimes})
	}

	taken, err := h.approvedUnavailableDates(collab.ID)
	if err != nil {
		http.Error(w, "Error checking existing unavailable dates", http.StatusInternalServerError)
		return
	}

	today := TruncateToDay(time.Now())
	if err := validateProposalDates(dates, day, collab.StartDate, collab.EndDate, today, taken); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	request := models.SlotChangeRequest{
		CollaborationID: collab.ID,
		RequestedBy:     role,
		RequesterID:     callerID,
		ApproverID:      counterpartyID,
		Status:          models.RequestStatusPending,
		Changes:         changes,
	}

	if err := h.db.Create(&request).Error; err != nil {
		http.Error(w, "Error saving request", http.StatusInternalServerError)
		return
	}

	go h.notifier.NotifyUser(counterpartyID, "Time slot change requested",
		fmt.Sprintf("Your counterpart proposed new time slots for %d date(s)", len(changes)),
		map[string]interface{}{"collaboration_id": collab.ID, "request_id": request.ID})

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	json.NewEncoder(w).Encode(map[string]interface{}{
		"message":    "Slot change request submitted",
		"request_id": request.ID,
	})
}

// ResolveRequest approves or rejects a pending schedule-change request.
// Only the recorded approver may resolve, and resolution is a strict
// pending-to-terminal transition: the status flip is a conditional update,
// so a second resolution attempt matches zero rows and changes nothing.
func (h *CollaborationHandler) ResolveRequest(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	collaborationID, err := strconv.ParseUint(vars["id"], 10, 64)
	if err != nil {
		http.Error(w, "Invalid collaboration ID", http.StatusBadRequest)
		return
	}

	callerID, err := utils.GetUserIDFromContext(r.Context())
	if err != nil {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	var resolution struct {
		RequestID   uint   `json:"request_id"`
		RequestType string `json:"request_type"`
		Approve     *bool  `json:"approve"`
	}
	if err := json.NewDecoder(r.Body).Decode(&resolution); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}
	if resolution.Approve == nil {
		http.Error(w, "Missing approve field", http.StatusBadRequest)
		return
	}

	newStatus := models.RequestStatusRejected
	if *resolution.Approve {
		newStatus = models.RequestStatusApproved
	}

	tx := h.db.Begin()

	switch resolution.RequestType {
	case RequestTypeUnavailable:
		var request models.UnavailabilityRequest
		if err := tx.Where("id = ? AND collaboration_id = ?", resolution.RequestID, collaborationID).
			First(&request).Error; err != nil {
			tx.Rollback()
			http.Error(w, "Request not found", http.StatusNotFound)
			return
		}

		if request.ApproverID != callerID {
			tx.Rollback()
			http.Error(w, "Only the counterparty may resolve this request", http.StatusForbidden)
			return
		}

		result := tx.Model(&models.UnavailabilityRequest{}).
			Where("id = ? AND status = ?", request.ID, models.RequestStatusPending).
			Update("status", newStatus)
		if result.Error != nil {
			tx.Rollback()
			http.Error(w, "Error resolving request", http.StatusInternalServerError)
			return
		}
		if result.RowsAffected == 0 {
			tx.Rollback()
			http.Error(w, "Request already resolved", http.StatusConflict)
			return
		}

		if *resolution.Approve {
			if err := tx.Model(&models.Collaboration{}).
				Where("id = ?", request.CollaborationID).
				Update("end_date", request.ProjectedEndDate).Error; err != nil {
				tx.Rollback()
				http.Error(w, "Error extending collaboration", http.StatusInternalServerError)
				return
			}
		}

		go h.notifier.NotifyUser(request.RequesterID, "Unavailability request "+newStatus,
			fmt.Sprintf("Your unavailability request was %s", newStatus),
			map[string]interface{}{"collaboration_id": request.CollaborationID, "request_id": request.ID})

	case RequestTypeTimeSlot:
		var request models.SlotChangeRequest
		if err := tx.Where("id = ? AND collaboration_id = ?", resolution.RequestID, collaborationID).
			First(&request).Error; err != nil {
			tx.Rollback()
			http.Error(w, "Request not found", http.StatusNotFound)
			return
		}

		if request.ApproverID != callerID {
			tx.Rollback()
			http.Error(w, "Only the counterparty may resolve this request", http.StatusForbidden)
			return
		}

		result := tx.Model(&models.SlotChangeRequest{}).
			Where("id = ? AND status = ?", request.ID, models.RequestStatusPending).
			Update("status", newStatus)
		if result.Error != nil {
			tx.Rollback()
			http.Error(w, "Error resolving request", http.StatusInternalServerError)
			return
		}
		if result.RowsAffected == 0 {
			tx.Rollback()
			http.Error(w, "Request already resolved", http.StatusConflict)
			return
		}

		go h.notifier.NotifyUser(request.RequesterID, "Slot change request "+newStatus,
			fmt.Sprintf("Your slot change request was %s", newStatus),
			map[string]interface{}{"collaboration_id": request.CollaborationID, "request_id": request.ID})

	default:
		tx.Rollback()
		http.Error(w, "Invalid request type", http.StatusBadRequest)
		return
	}

	if err := tx.Commit().Error; err != nil {
		http.Error(w, "Error completing resolution", http.StatusInternalServerError)
		return
	}

	var collab models.Collaboration
	if err := h.db.First(&collab, collaborationID).Error; err != nil {
		http.Error(w, "Error reloading collaboration", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]interface{}{
		"message":       "Request " + newStatus,
		"collaboration": collab,
	})
}

// GetPendingRequests surfaces the requests awaiting the caller's decision.
func (h *CollaborationHandler) GetPendingRequests(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	collaborationID, err := strconv.ParseUint(vars["id"], 10, 64)
	if err != nil {
		http.Error(w, "Invalid collaboration ID", http.StatusBadRequest)
		return
	}

	callerID, err := utils.GetUserIDFromContext(r.Context())
	if err != nil {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	var unavailability []models.UnavailabilityRequest
	if err := h.db.Preload("Dates").
		Where("collaboration_id = ? AND approver_id = ? AND status = ?",
			collaborationID, callerID, models.RequestStatusPending).
		Order("created_at ASC").
		Find(&unavailability).Error; err != nil {
		http.Error(w, "Error retrieving requests", http.StatusInternalServerError)
		return
	}

	var slotChanges []models.SlotChangeRequest
	if err := h.db.Preload("Changes").
		Where("collaboration_id = ? AND approver_id = ? AND status = ?",
			collaborationID, callerID, models.RequestStatusPending).
		Order("created_at ASC").
		Find(&slotChanges).Error; err != nil {
		http.Error(w, "Error retrieving requests", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]interface{}{
		"unavailability_requests": unavailability,
		"slot_change_requests":    slotChanges,
	})
}

// GetSchedule lists the effective session dates: weekday occurrences inside
// the collaboration window, minus approved unavailable dates, with approved
// slot overrides substituted.
func (h *CollaborationHandler) GetSchedule(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	collaborationID, err := strconv.ParseUint(vars["id"], 10, 64)
	if err != nil {
		http.Error(w, "Invalid collaboration ID", http.StatusBadRequest)
		return
	}

	collab, err := h.loadCollaboration(collaborationID)
	if err != nil {
		http.Error(w, "Collaboration not found", http.StatusNotFound)
		return
	}

	day, err := ParseWeekday(collab.SlotDay)
	if err != nil {
		http.Error(w, "Collaboration has an invalid session day", http.StatusInternalServerError)
		return
	}

	taken, err := h.approvedUnavailableDates(collab.ID)
	if err != nil {
		http.Error(w, "Error retrieving unavailable dates", http.StatusInternalServerError)
		return
	}

	var overrides []models.SlotChange
	if err := h.db.
		Joins("JOIN slot_change_requests ON slot_change_requests.id = slot_changes.request_id").
		Where("slot_change_requests.collaboration_id = ? AND slot_change_requests.status = ?",
			collab.ID, models.RequestStatusApproved).
		Find(&overrides).Error; err != nil {
		http.Error(w, "Error retrieving slot changes", http.StatusInternalServerError)
		return
	}

	overrideTimes := make(map[string]models.TimeSlots, len(overrides))
	for _, o := range overrides {
		overrideTimes[o.Date.Format(DateLayout)] = o.NewTimes
	}

	type session struct {
		Date      string           `json:"date"`
		TimeSlots models.TimeSlots `json:"time_slots"`
	}

	sessions := []session{}
	for _, d := range SessionDates(collab.StartDate, collab.EndDate, day) {
		key := d.Format(DateLayout)
		if taken[key] {
			continue
		}
		times := collab.SlotTimes
		if override, ok := overrideTimes[key]; ok {
			times = override
		}
		sessions = append(sessions, session{Date: key, TimeSlots: times})
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]interface{}{
		"collaboration_id": collab.ID,
		"slot_day":         collab.SlotDay,
		"start_date":       collab.StartDate.Format(DateLayout),
		"end_date":         collab.EndDate.Format(DateLayout),
		"sessions":         sessions,
	})
}

// CancelCollaboration soft-cancels a collaboration on behalf of the mentee,
// refunding the unconsumed portion of the price.
func (h *CollaborationHandler) CancelCollaboration(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	collaborationID, err := strconv.ParseUint(vars["id"], 10, 64)
	if err != nil {
		http.Error(w, "Invalid collaboration ID", http.StatusBadRequest)
		return
	}

	callerID, err := utils.GetUserIDFromContext(r.Context())
	if err != nil {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	collab, err := h.loadCollaboration(collaborationID)
	if err != nil {
		http.Error(w, "Collaboration not found", http.StatusNotFound)
		return
	}

	if collab.UserID != callerID {
		http.Error(w, "Only the mentee may cancel a collaboration", http.StatusForbidden)
		return
	}
	if collab.IsCancelled {
		http.Error(w, "Collaboration already cancelled", http.StatusConflict)
		return
	}

	day, err := ParseWeekday(collab.SlotDay)
	if err != nil {
		http.Error(w, "Collaboration has an invalid session day", http.StatusInternalServerError)
		return
	}

	today := TruncateToDay(time.Now())
	total := len(SessionDates(collab.StartDate, collab.EndDate, day))
	remainingFrom := collab.StartDate
	if today.After(remainingFrom) {
		remainingFrom = today.AddDate(0, 0, 1)
	}
	remaining := len(SessionDates(remainingFrom, collab.EndDate, day))

	refund := 0.0
	if collab.PaymentStatus == models.PaymentPaid && total > 0 {
		refund = collab.Price * float64(remaining) / float64(total)
	}

	if refund > 0 {
		if err := h.requestPaystackRefund(collab.PaymentID, refund); err != nil {
			http.Error(w, "Error processing refund", http.StatusBadGateway)
			return
		}
	}

	tx := h.db.Begin()

	updates := map[string]interface{}{
		"is_cancelled":  true,
		"refund_amount": refund,
	}
	if refund > 0 {
		updates["payment_status"] = models.PaymentRefunded
	}
	if err := tx.Model(&models.Collaboration{}).Where("id = ?", collab.ID).
		Updates(updates).Error; err != nil {
		tx.Rollback()
		http.Error(w, "Error cancelling collaboration", http.StatusInternalServerError)
		return
	}

	if refund > 0 {
		transaction := models.Transaction{
			UserID:    collab.UserID,
			Amount:    refund,
			Method:    "Paystack",
			Purpose:   models.PurposeRefund,
			Reference: collab.PaymentID,
		}
		if err := tx.Create(&transaction).Error; err != nil {
			tx.Rollback()
			http.Error(w, "Error recording refund", http.StatusInternalServerError)
			return
		}
	}

	if err := tx.Commit().Error; err != nil {
		http.Error(w, "Error completing cancellation", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]interface{}{
		"message":       "Collaboration cancelled",
		"refund_amount": refund,
	})
}

func (h *CollaborationHandler) requestPaystackRefund(reference string, amount float64) error {
	payload := map[string]interface{}{
		"transaction": reference,
		"amount":      int64(amount * 100),
	}
	payloadBytes, _ := json.Marshal(payload)

	req, err := http.NewRequest("POST", "https://api.paystack.co/refund", bytes.NewBuffer(payloadBytes))
	if err != nil {
		return err
	}
	req.Header.Set("Authorization", "Bearer "+os.Getenv("PAYSTACK_SECRET_KEY"))
	req.Header.Set("Content-Type", "application/json")

	client := &http.Client{}
	resp, err := client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	var refundResp struct {
		Status  bool   `json:"status"`
		Message string `json:"message"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&refundResp); err != nil {
		return err
	}
	if !refundResp.Status {
		return fmt.Errorf("refund rejected: %s", refundResp.Message)
	}
	return nil
}

func (h *CollaborationHandler) GetCollaboration(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	collaborationID, err := strconv.ParseUint(vars["id"], 10, 64)
	if err != nil {
		http.Error(w, "Invalid collaboration ID", http.StatusBadRequest)
		return
	}

	var collab models.Collaboration
	if err := h.db.Preload("Mentor").Preload("Mentor.User").Preload("User").
		Preload("UnavailabilityRequests").Preload("UnavailabilityRequests.Dates").
		Preload("SlotChangeRequests").Preload("SlotChangeRequests.Changes").
		First(&collab, collaborationID).Error; err != nil {
		http.Error(w, "Collaboration not found", http.StatusNotFound)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(collab)
}

// GetAllCollaborations lists every collaboration on the platform. Admin only;
// mentors and mentees use their scoped listings.
func (h *CollaborationHandler) GetAllCollaborations(w http.ResponseWriter, r *http.Request) {
	callerID, err := utils.GetUserIDFromContext(r.Context())
	if err != nil {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}
	var caller models.User
	if err := h.db.First(&caller, callerID).Error; err != nil || caller.Role != models.RoleAdmin {
		http.Error(w, "Admin access required", http.StatusForbidden)
		return
	}

	page, _ := strconv.Atoi(r.URL.Query().Get("page"))
	if page < 1 {
		page = 1
	}
	pageSize := 50

	query := h.db.Model(&models.Collaboration{}).Preload("Mentor").Preload("User")

	if cancelled := r.URL.Query().Get("cancelled"); cancelled != "" {
		isCancelled, parseErr := strconv.ParseBool(cancelled)
		if parseErr != nil {
			http.Error(w, "Invalid value for 'cancelled'", http.StatusBadRequest)
			return
		}
		query = query.Where("is_cancelled = ?", isCancelled)
	}
	if status := r.URL.Query().Get("payment_status"); status != "" {
		query = query.Where("payment_status = ?", status)
	}

	var total int64
	query.Count(&total)

	var collaborations []models.Collaboration
	if err := query.Offset((page - 1) * pageSize).Limit(pageSize).
		Order("start_date DESC").Find(&collaborations).Error; err != nil {
		http.Error(w, "Error retrieving collaborations", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]interface{}{
		"collaborations": collaborations,
		"total":          total,
		"page":           page,
		"page_size":      pageSize,
		"total_pages":    (total + int64(pageSize) - 1) / int64(pageSize),
	})
}

func (h *CollaborationHandler) GetMentorCollaborations(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	mentorID, err := strconv.ParseUint(vars["mentorId"], 10, 64)
	if err != nil {
		http.Error(w, "Invalid mentor ID", http.StatusBadRequest)
		return
	}
	h.listCollaborations(w, r, "mentor_id = ?", mentorID)
}

func (h *CollaborationHandler) GetUserCollaborations(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	userID, err := strconv.ParseUint(vars["userId"], 10, 64)
	if err != nil {
		http.Error(w, "Invalid user ID", http.StatusBadRequest)
		return
	}
	h.listCollaborations(w, r, "user_id = ?", userID)
}

func (h *CollaborationHandler) listCollaborations(w http.ResponseWriter, r *http.Request, condition string, id uint64) {
	page, _ := strconv.Atoi(r.URL.Query().Get("page"))
	if page < 1 {
		page = 1
	}
	pageSize := 50

	query := h.db.Model(&models.Collaboration{}).Where(condition, id).
		Preload("Mentor").Preload("Mentor.User").Preload("User")

	var total int64
	query.Count(&total)

	var collaborations []models.Collaboration
	if err := query.Offset((page - 1) * pageSize).Limit(pageSize).
		Order("start_date DESC").Find(&collaborations).Error; err != nil {
		http.Error(w, "Error retrieving collaborations", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]interface{}{
		"collaborations": collaborations,
		"total":          total,
		"page":           page,
		"page_size":      pageSize,
		"total_pages":    (total + int64(pageSize) - 1) / int64(pageSize),
	})
}

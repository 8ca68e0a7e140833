package dashboard

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/mentorlink/MentorLink-server/cmd/models"
	"github.com/mentorlink/MentorLink-server/cmd/utils"
	"gorm.io/gorm"
)

type DashboardHandler struct {
	db *gorm.DB
}

func NewDashboardHandler(db *gorm.DB) *DashboardHandler {
	return &DashboardHandler{db: db}
}

func (h *DashboardHandler) RegisterRoutes(router *mux.Router) {
	router.HandleFunc("/dashboard/stats", utils.AuthMiddleware(h.GetStats)).Methods("GET")
	router.HandleFunc("/dashboard/mentor", utils.AuthMiddleware(h.GetMentorDashboard)).Methods("GET")
}

// GetStats returns the admin overview: user counts, pending approvals,
// collaboration activity, and revenue totals.
func (h *DashboardHandler) GetStats(w http.ResponseWriter, r *http.Request) {
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

	var (
		totalMentees         int64
		totalMentors         int64
		pendingMentors       int64
		activeCollaborations int64
		pendingRequests      int64
		totalGroups          int64
		revenue              float64
		refunds              float64
		newUsersThisMonth    int64
	)

	h.db.Model(&models.User{}).Where("role = ?", models.RoleMentee).Count(&totalMentees)
	h.db.Model(&models.Mentor{}).Where("is_accepted = ?", models.MentorAccepted).Count(&totalMentors)
	h.db.Model(&models.Mentor{}).Where("is_accepted = ?", models.MentorPending).Count(&pendingMentors)
	h.db.Model(&models.Collaboration{}).
		Where("is_cancelled = ? AND end_date >= ?", false, time.Now()).
		Count(&activeCollaborations)
	h.db.Model(&models.MentorshipRequest{}).
		Where("is_accepted = ?", models.MentorshipPending).
		Count(&pendingRequests)
	h.db.Model(&models.Group{}).Count(&totalGroups)

	h.db.Model(&models.Transaction{}).
		Where("purpose <> ?", models.PurposeRefund).
		Select("COALESCE(SUM(amount), 0)").
		Scan(&revenue)
	h.db.Model(&models.Transaction{}).
		Where("purpose = ?", models.PurposeRefund).
		Select("COALESCE(SUM(amount), 0)").
		Scan(&refunds)

	monthStart := time.Date(time.Now().Year(), time.Now().Month(), 1, 0, 0, 0, 0, time.Local)
	h.db.Model(&models.User{}).
		Where("created_at >= ?", monthStart).
		Count(&newUsersThisMonth)

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]interface{}{
		"total_mentees":         totalMentees,
		"total_mentors":         totalMentors,
		"pending_mentors":       pendingMentors,
		"active_collaborations": activeCollaborations,
		"pending_requests":      pendingRequests,
		"total_groups":          totalGroups,
		"revenue":               revenue,
		"refunds":               refunds,
		"net_revenue":           revenue - refunds,
		"new_users_this_month":  newUsersThisMonth,
	})
}

// GetMentorDashboard returns the caller's mentor-side overview.
func (h *DashboardHandler) GetMentorDashboard(w http.ResponseWriter, r *http.Request) {
	callerID, err := utils.GetUserIDFromContext(r.Context())
	if err != nil {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	var mentor models.Mentor
	if err := h.db.Where("user_id = ?", callerID).First(&mentor).Error; err != nil {
		http.Error(w, "Mentor profile not found", http.StatusNotFound)
		return
	}

	var (
		activeCollaborations int64
		pendingRequests      int64
		pendingSchedule      int64
		earnings             float64
	)

	h.db.Model(&models.Collaboration{}).
		Where("mentor_id = ? AND is_cancelled = ? AND end_date >= ?", mentor.ID, false, time.Now()).
		Count(&activeCollaborations)
	h.db.Model(&models.MentorshipRequest{}).
		Where("mentor_id = ? AND is_accepted = ?", mentor.ID, models.MentorshipPending).
		Count(&pendingRequests)

	// Schedule-change requests waiting on this mentor's approval.
	h.db.Model(&models.UnavailabilityRequest{}).
		Joins("JOIN collaborations ON collaborations.id = unavailability_requests.collaboration_id").
		Where("collaborations.mentor_id = ? AND unavailability_requests.approver_id = ? AND unavailability_requests.status = ?",
			mentor.ID, callerID, models.RequestStatusPending).
		Count(&pendingSchedule)

	h.db.Model(&models.Collaboration{}).
		Where("mentor_id = ? AND payment_status = ?", mentor.ID, models.PaymentPaid).
		Select("COALESCE(SUM(price), 0)").
		Scan(&earnings)

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]interface{}{
		"active_collaborations":     activeCollaborations,
		"pending_requests":          pendingRequests,
		"pending_schedule_requests": pendingSchedule,
		"total_earnings":            earnings,
		"average_rating":            mentor.AverageRating,
		"total_ratings":             mentor.TotalRatings,
	})
}

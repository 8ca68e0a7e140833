package feedback

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/gorilla/mux"
	"github.com/lib/pq"
	"github.com/mentorlink/MentorLink-server/cmd/models"
	"github.com/mentorlink/MentorLink-server/cmd/utils"
	"gorm.io/gorm"
)

type Handler struct {
	db *gorm.DB
}

func NewHandler(db *gorm.DB) *Handler {
	return &Handler{db: db}
}

func (h *Handler) RegisterRoutes(router *mux.Router) {
	router.HandleFunc("/feedback", utils.AuthMiddleware(h.CreateFeedback)).Methods("POST")
	router.HandleFunc("/feedback/mentor/{mentorId}", h.GetMentorFeedback).Methods("GET")
	router.HandleFunc("/feedback/{id}", utils.AuthMiddleware(h.DeleteFeedback)).Methods("DELETE")
}

func (h *Handler) CreateFeedback(w http.ResponseWriter, r *http.Request) {
	callerID, err := utils.GetUserIDFromContext(r.Context())
	if err != nil {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	var req struct {
		MentorID uint    `json:"mentor_id"`
		Rating   float64 `json:"rating"`
		Comment  string  `json:"comment"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	if req.Rating < 1 || req.Rating > 5 {
		http.Error(w, "Rating must be between 1 and 5", http.StatusBadRequest)
		return
	}

	var mentor models.Mentor
	if err := h.db.First(&mentor, req.MentorID).Error; err != nil {
		http.Error(w, "Mentor not found", http.StatusNotFound)
		return
	}
	if mentor.UserID == callerID {
		http.Error(w, "Cannot rate yourself", http.StatusBadRequest)
		return
	}

	// Only mentees with a paid collaboration may rate the mentor.
	var collabCount int64
	h.db.Model(&models.Collaboration{}).
		Where("mentor_id = ? AND user_id = ? AND payment_status = ?",
			req.MentorID, callerID, models.PaymentPaid).
		Count(&collabCount)
	if collabCount == 0 {
		http.Error(w, "Feedback requires a paid collaboration with this mentor", http.StatusForbidden)
		return
	}

	feedback := models.Feedback{
		UserID:   callerID,
		MentorID: req.MentorID,
		Rating:   req.Rating,
		Comment:  req.Comment,
	}

	tx := h.db.Begin()

	if err := tx.Create(&feedback).Error; err != nil {
		tx.Rollback()
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code.Name() == "unique_violation" {
			http.Error(w, "You have already rated this mentor", http.StatusConflict)
			return
		}
		http.Error(w, "Error saving feedback", http.StatusInternalServerError)
		return
	}

	if err := recomputeMentorRating(tx, req.MentorID); err != nil {
		tx.Rollback()
		http.Error(w, "Error updating mentor rating", http.StatusInternalServerError)
		return
	}

	if err := tx.Commit().Error; err != nil {
		http.Error(w, "Error saving feedback", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	json.NewEncoder(w).Encode(feedback)
}

func recomputeMentorRating(tx *gorm.DB, mentorID uint) error {
	var stats struct {
		Avg   float64
		Count int64
	}
	if err := tx.Model(&models.Feedback{}).
		Select("COALESCE(AVG(rating), 0) as avg, COUNT(*) as count").
		Where("mentor_id = ?", mentorID).
		Scan(&stats).Error; err != nil {
		return err
	}

	return tx.Model(&models.Mentor{}).
		Where("id = ?", mentorID).
		Updates(map[string]interface{}{
			"average_rating": stats.Avg,
			"total_ratings":  stats.Count,
		}).Error
}

func (h *Handler) GetMentorFeedback(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	mentorID, err := strconv.ParseUint(vars["mentorId"], 10, 64)
	if err != nil {
		http.Error(w, "Invalid mentor ID", http.StatusBadRequest)
		return
	}

	page, _ := strconv.Atoi(r.URL.Query().Get("page"))
	if page < 1 {
		page = 1
	}
	pageSize := 20

	query := h.db.Model(&models.Feedback{}).Where("mentor_id = ?", mentorID)

	var total int64
	query.Count(&total)

	var feedbacks []models.Feedback
	if err := query.Preload("User").
		Order("created_at DESC").
		Offset((page - 1) * pageSize).
		Limit(pageSize).
		Find(&feedbacks).Error; err != nil {
		http.Error(w, "Error retrieving feedback", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]interface{}{
		"feedback":    feedbacks,
		"total":       total,
		"page":        page,
		"page_size":   pageSize,
		"total_pages": (total + int64(pageSize) - 1) / int64(pageSize),
	})
}

// DeleteFeedback removes a review. The author or an admin may delete it.
func (h *Handler) DeleteFeedback(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	feedbackID, err := strconv.ParseUint(vars["id"], 10, 64)
	if err != nil {
		http.Error(w, "Invalid feedback ID", http.StatusBadRequest)
		return
	}

	callerID, err := utils.GetUserIDFromContext(r.Context())
	if err != nil {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	var feedback models.Feedback
	if err := h.db.First(&feedback, feedbackID).Error; err != nil {
		http.Error(w, "Feedback not found", http.StatusNotFound)
		return
	}

	if feedback.UserID != callerID {
		var caller models.User
		if err := h.db.First(&caller, callerID).Error; err != nil || caller.Role != models.RoleAdmin {
			http.Error(w, "Forbidden", http.StatusForbidden)
			return
		}
	}

	tx := h.db.Begin()

	if err := tx.Delete(&feedback).Error; err != nil {
		tx.Rollback()
		http.Error(w, "Error deleting feedback", http.StatusInternalServerError)
		return
	}

	if err := recomputeMentorRating(tx, feedback.MentorID); err != nil {
		tx.Rollback()
		http.Error(w, "Error updating mentor rating", http.StatusInternalServerError)
		return
	}

	if err := tx.Commit().Error; err != nil {
		http.Error(w, "Error deleting feedback", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]string{
		"message": "Feedback deleted successfully",
	})
}

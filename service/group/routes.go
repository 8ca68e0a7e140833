package group

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"

	"github.com/gorilla/mux"
	"github.com/lib/pq"
	"github.com/mentorlink/MentorLink-server/cmd/models"
	"github.com/mentorlink/MentorLink-server/cmd/utils"
	"github.com/mentorlink/MentorLink-server/service/collaboration"
	"gorm.io/gorm"
)

type Handler struct {
	db       *gorm.DB
	notifier *collaboration.Notifier
}

func NewHandler(db *gorm.DB, notifier *collaboration.Notifier) *Handler {
	return &Handler{db: db, notifier: notifier}
}

func (h *Handler) RegisterRoutes(router *mux.Router) {
	router.HandleFunc("/groups", h.GetGroups).Methods("GET")
	router.HandleFunc("/groups", utils.AuthMiddleware(h.CreateGroup)).Methods("POST")
	router.HandleFunc("/groups/{id}", h.GetGroup).Methods("GET")
	router.HandleFunc("/groups/{id}", utils.AuthMiddleware(h.UpdateGroup)).Methods("PUT")
	router.HandleFunc("/groups/{id}", utils.AuthMiddleware(h.DeleteGroup)).Methods("DELETE")
	router.HandleFunc("/groups/{id}/join", utils.AuthMiddleware(h.RequestToJoin)).Methods("POST")
	router.HandleFunc("/groups/{id}/join-requests", utils.AuthMiddleware(h.GetJoinRequests)).Methods("GET")
	router.HandleFunc("/groups/{id}/join-requests/{requestId}", utils.AuthMiddleware(h.RespondToJoinRequest)).Methods("POST")
	router.HandleFunc("/groups/{id}/members", h.GetMembers).Methods("GET")
	router.HandleFunc("/groups/{id}/leave", utils.AuthMiddleware(h.LeaveGroup)).Methods("POST")
}

func (h *Handler) CreateGroup(w http.ResponseWriter, r *http.Request) {
	callerID, err := utils.GetUserIDFromContext(r.Context())
	if err != nil {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	var req struct {
		Name        string   `json:"name"`
		Description string   `json:"description"`
		Category    string   `json:"category"`
		Price       float64  `json:"price"`
		MaxMembers  int      `json:"max_members"`
		SlotDay     string   `json:"slot_day"`
		SlotTimes   []string `json:"slot_times"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	if req.Name == "" {
		http.Error(w, "Group name is required", http.StatusBadRequest)
		return
	}
	if req.SlotDay != "" {
		if _, err := collaboration.ParseWeekday(req.SlotDay); err != nil {
			http.Error(w, "Invalid slot day", http.StatusBadRequest)
			return
		}
	}

	var mentor models.Mentor
	if err := h.db.Where("user_id = ?", callerID).First(&mentor).Error; err != nil {
		http.Error(w, "Only mentors can create groups", http.StatusForbidden)
		return
	}
	if mentor.IsAccepted != models.MentorAccepted {
		http.Error(w, "Mentor profile is not approved", http.StatusForbidden)
		return
	}

	group := models.Group{
		MentorID:    mentor.ID,
		Name:        req.Name,
		Description: req.Description,
		Category:    req.Category,
		Price:       req.Price,
		MaxMembers:  req.MaxMembers,
		SlotDay:     req.SlotDay,
		SlotTimes:   models.TimeSlots(req.SlotTimes),
	}

	if err := h.db.Create(&group).Error; err != nil {
		http.Error(w, "Error creating group", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	json.NewEncoder(w).Encode(group)
}

func (h *Handler) GetGroups(w http.ResponseWriter, r *http.Request) {
	page, _ := strconv.Atoi(r.URL.Query().Get("page"))
	if page < 1 {
		page = 1
	}
	pageSize := 20

	query := h.db.Model(&models.Group{}).
		Preload("Mentor").
		Preload("Mentor.User")

	if category := r.URL.Query().Get("category"); category != "" {
		query = query.Where("category = ?", category)
	}
	if mentorID := r.URL.Query().Get("mentor_id"); mentorID != "" {
		query = query.Where("mentor_id = ?", mentorID)
	}
	if search := r.URL.Query().Get("q"); search != "" {
		like := "%" + search + "%"
		query = query.Where("name LIKE ? OR description LIKE ?", like, like)
	}

	var total int64
	query.Count(&total)

	var groups []models.Group
	if err := query.Offset((page - 1) * pageSize).Limit(pageSize).Find(&groups).Error; err != nil {
		http.Error(w, "Error retrieving groups", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]interface{}{
		"groups":      groups,
		"total":       total,
		"page":        page,
		"page_size":   pageSize,
		"total_pages": (total + int64(pageSize) - 1) / int64(pageSize),
	})
}

func (h *Handler) GetGroup(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	groupID, err := strconv.ParseUint(vars["id"], 10, 64)
	if err != nil {
		http.Error(w, "Invalid group ID", http.StatusBadRequest)
		return
	}

	var group models.Group
	result := h.db.Preload("Mentor").
		Preload("Mentor.User").
		Preload("Members").
		Preload("Members.User").
		First(&group, groupID)
	if result.Error != nil {
		if errors.Is(result.Error, gorm.ErrRecordNotFound) {
			http.Error(w, "Group not found", http.StatusNotFound)
		} else {
			http.Error(w, "Error retrieving group", http.StatusInternalServerError)
		}
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(group)
}

func (h *Handler) UpdateGroup(w http.ResponseWriter, r *http.Request) {
	group, ok := h.ownedGroup(w, r)
	if !ok {
		return
	}

	var req struct {
		Name        string   `json:"name"`
		Description string   `json:"description"`
		Category    string   `json:"category"`
		Price       *float64 `json:"price"`
		MaxMembers  *int     `json:"max_members"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	if req.Name != "" {
		group.Name = req.Name
	}
	if req.Description != "" {
		group.Description = req.Description
	}
	if req.Category != "" {
		group.Category = req.Category
	}
	if req.Price != nil {
		group.Price = *req.Price
	}
	if req.MaxMembers != nil {
		group.MaxMembers = *req.MaxMembers
	}

	if err := h.db.Save(group).Error; err != nil {
		http.Error(w, "Error updating group", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(group)
}

func (h *Handler) DeleteGroup(w http.ResponseWriter, r *http.Request) {
	group, ok := h.ownedGroup(w, r)
	if !ok {
		return
	}

	tx := h.db.Begin()
	if err := tx.Where("group_id = ?", group.ID).Delete(&models.GroupMember{}).Error; err != nil {
		tx.Rollback()
		http.Error(w, "Error removing group members", http.StatusInternalServerError)
		return
	}
	if err := tx.Where("group_id = ?", group.ID).Delete(&models.GroupJoinRequest{}).Error; err != nil {
		tx.Rollback()
		http.Error(w, "Error removing join requests", http.StatusInternalServerError)
		return
	}
	if err := tx.Delete(group).Error; err != nil {
		tx.Rollback()
		http.Error(w, "Error deleting group", http.StatusInternalServerError)
		return
	}
	if err := tx.Commit().Error; err != nil {
		http.Error(w, "Error deleting group", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]string{
		"message": "Group deleted successfully",
	})
}

func (h *Handler) RequestToJoin(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	groupID, err := strconv.ParseUint(vars["id"], 10, 64)
	if err != nil {
		http.Error(w, "Invalid group ID", http.StatusBadRequest)
		return
	}

	callerID, err := utils.GetUserIDFromContext(r.Context())
	if err != nil {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	var req struct {
		Message string `json:"message"`
	}
	// An empty body is fine; the message is optional.
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil && !errors.Is(err, io.EOF) {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	var group models.Group
	if err := h.db.Preload("Mentor").First(&group, groupID).Error; err != nil {
		http.Error(w, "Group not found", http.StatusNotFound)
		return
	}

	if group.Mentor != nil && group.Mentor.UserID == callerID {
		http.Error(w, "Mentor cannot join their own group", http.StatusBadRequest)
		return
	}

	var existingMember int64
	h.db.Model(&models.GroupMember{}).
		Where("group_id = ? AND user_id = ?", groupID, callerID).
		Count(&existingMember)
	if existingMember > 0 {
		http.Error(w, "Already a member of this group", http.StatusConflict)
		return
	}

	var pendingRequest int64
	h.db.Model(&models.GroupJoinRequest{}).
		Where("group_id = ? AND user_id = ? AND status = ?", groupID, callerID, models.JoinPending).
		Count(&pendingRequest)
	if pendingRequest > 0 {
		http.Error(w, "Join request already pending", http.StatusConflict)
		return
	}

	if group.MaxMembers > 0 {
		var memberCount int64
		h.db.Model(&models.GroupMember{}).Where("group_id = ?", groupID).Count(&memberCount)
		if memberCount >= int64(group.MaxMembers) {
			http.Error(w, "Group is full", http.StatusConflict)
			return
		}
	}

	joinRequest := models.GroupJoinRequest{
		GroupID: uint(groupID),
		UserID:  callerID,
		Message: req.Message,
		Status:  models.JoinPending,
	}
	if err := h.db.Create(&joinRequest).Error; err != nil {
		http.Error(w, "Error creating join request", http.StatusInternalServerError)
		return
	}

	if group.Mentor != nil {
		go h.notifier.NotifyUser(group.Mentor.UserID, "New Join Request",
			fmt.Sprintf("Someone requested to join %s", group.Name), map[string]interface{}{
				"group_id":   fmt.Sprint(group.ID),
				"request_id": fmt.Sprint(joinRequest.ID),
				"type":       "group_join_request",
			})
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	json.NewEncoder(w).Encode(joinRequest)
}

func (h *Handler) GetJoinRequests(w http.ResponseWriter, r *http.Request) {
	group, ok := h.ownedGroup(w, r)
	if !ok {
		return
	}

	status := r.URL.Query().Get("status")
	if status == "" {
		status = models.JoinPending
	}

	var requests []models.GroupJoinRequest
	if err := h.db.Where("group_id = ? AND status = ?", group.ID, status).
		Preload("User").
		Order("created_at ASC").
		Find(&requests).Error; err != nil {
		http.Error(w, "Error retrieving join requests", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(requests)
}

func (h *Handler) RespondToJoinRequest(w http.ResponseWriter, r *http.Request) {
	group, ok := h.ownedGroup(w, r)
	if !ok {
		return
	}

	vars := mux.Vars(r)
	requestID, err := strconv.ParseUint(vars["requestId"], 10, 64)
	if err != nil {
		http.Error(w, "Invalid request ID", http.StatusBadRequest)
		return
	}

	var body struct {
		Accept *bool `json:"accept"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil || body.Accept == nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	var joinRequest models.GroupJoinRequest
	if err := h.db.Where("id = ? AND group_id = ?", requestID, group.ID).First(&joinRequest).Error; err != nil {
		http.Error(w, "Join request not found", http.StatusNotFound)
		return
	}

	newStatus := models.JoinRejected
	if *body.Accept {
		newStatus = models.JoinAccepted
	}

	tx := h.db.Begin()

	result := tx.Model(&models.GroupJoinRequest{}).
		Where("id = ? AND status = ?", requestID, models.JoinPending).
		Update("status", newStatus)
	if result.Error != nil {
		tx.Rollback()
		http.Error(w, "Error updating join request", http.StatusInternalServerError)
		return
	}
	if result.RowsAffected == 0 {
		tx.Rollback()
		http.Error(w, "Request already resolved", http.StatusConflict)
		return
	}

	if newStatus == models.JoinAccepted {
		member := models.GroupMember{
			GroupID: group.ID,
			UserID:  joinRequest.UserID,
		}
		if err := tx.Create(&member).Error; err != nil {
			tx.Rollback()
			var pqErr *pq.Error
			if errors.As(err, &pqErr) && pqErr.Code.Name() == "unique_violation" {
				http.Error(w, "User is already a member", http.StatusConflict)
				return
			}
			http.Error(w, "Error adding group member", http.StatusInternalServerError)
			return
		}
	}

	if err := tx.Commit().Error; err != nil {
		http.Error(w, "Error updating join request", http.StatusInternalServerError)
		return
	}

	go h.notifier.NotifyUser(joinRequest.UserID, "Join Request "+newStatus,
		fmt.Sprintf("Your request to join %s was %s", group.Name, strings.ToLower(newStatus)),
		map[string]interface{}{
			"group_id": fmt.Sprint(group.ID),
			"type":     "group_join_response",
		})

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]string{
		"message": "Join request " + strings.ToLower(newStatus),
		"status":  newStatus,
	})
}

func (h *Handler) GetMembers(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	groupID, err := strconv.ParseUint(vars["id"], 10, 64)
	if err != nil {
		http.Error(w, "Invalid group ID", http.StatusBadRequest)
		return
	}

	var members []models.GroupMember
	if err := h.db.Where("group_id = ?", groupID).
		Preload("User").
		Find(&members).Error; err != nil {
		http.Error(w, "Error retrieving members", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(members)
}

func (h *Handler) LeaveGroup(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	groupID, err := strconv.ParseUint(vars["id"], 10, 64)
	if err != nil {
		http.Error(w, "Invalid group ID", http.StatusBadRequest)
		return
	}

	callerID, err := utils.GetUserIDFromContext(r.Context())
	if err != nil {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	result := h.db.Where("group_id = ? AND user_id = ?", groupID, callerID).
		Delete(&models.GroupMember{})
	if result.Error != nil {
		http.Error(w, "Error leaving group", http.StatusInternalServerError)
		return
	}
	if result.RowsAffected == 0 {
		http.Error(w, "Not a member of this group", http.StatusNotFound)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]string{
		"message": "Left group successfully",
	})
}

// ownedGroup loads the group from the route and verifies the caller is its
// mentor. Writes the error response itself when the check fails.
func (h *Handler) ownedGroup(w http.ResponseWriter, r *http.Request) (*models.Group, bool) {
	vars := mux.Vars(r)
	groupID, err := strconv.ParseUint(vars["id"], 10, 64)
	if err != nil {
		http.Error(w, "Invalid group ID", http.StatusBadRequest)
		return nil, false
	}

	callerID, err := utils.GetUserIDFromContext(r.Context())
	if err != nil {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return nil, false
	}

	var group models.Group
	if err := h.db.Preload("Mentor").First(&group, groupID).Error; err != nil {
		http.Error(w, "Group not found", http.StatusNotFound)
		return nil, false
	}

	if group.Mentor == nil || group.Mentor.UserID != callerID {
		http.Error(w, "Only the group mentor can perform this action", http.StatusForbidden)
		return nil, false
	}

	return &group, true
}

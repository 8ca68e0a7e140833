package notifications

import (
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/mentorlink/MentorLink-server/cmd/models"
	"github.com/mentorlink/MentorLink-server/cmd/utils"
	expo "github.com/oliveroneill/exponent-server-sdk-golang/sdk"
	"gorm.io/gorm"
)

type NotificationHandler struct {
	db         *gorm.DB
	expoClient *expo.PushClient
}

func NewNotificationHandler(db *gorm.DB) *NotificationHandler {
	return &NotificationHandler{
		db:         db,
		expoClient: expo.NewPushClient(nil),
	}
}

func (h *NotificationHandler) RegisterRoutes(router *mux.Router) {
	router.HandleFunc("/devices/register", utils.AuthMiddleware(h.RegisterDevice)).Methods("POST")
	router.HandleFunc("/devices/user/{userId}", utils.AuthMiddleware(h.GetUserDevices)).Methods("GET")
	router.HandleFunc("/devices/{token}", utils.AuthMiddleware(h.DeleteDevice)).Methods("DELETE")
	router.HandleFunc("/notifications/send", utils.AuthMiddleware(h.SendNotification)).Methods("POST")
	router.HandleFunc("/notifications/broadcast", utils.AuthMiddleware(h.BroadcastNotification)).Methods("POST")
	router.HandleFunc("/notifications/history/{userId}", utils.AuthMiddleware(h.GetNotificationHistory)).Methods("GET")
}

func (h *NotificationHandler) RegisterDevice(w http.ResponseWriter, r *http.Request) {
	callerID, err := utils.GetUserIDFromContext(r.Context())
	if err != nil {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	var req struct {
		Token      string `json:"token"`
		DeviceType string `json:"deviceType"`
		DeviceName string `json:"deviceName"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}
	if req.Token == "" {
		http.Error(w, "Device token is required", http.StatusBadRequest)
		return
	}
	if _, err := expo.NewExponentPushToken(req.Token); err != nil {
		http.Error(w, "Invalid Expo push token", http.StatusBadRequest)
		return
	}

	userKey := fmt.Sprintf("%d", callerID)

	var device models.Device
	result := h.db.Where("token = ? AND user_id = ?", req.Token, userKey).First(&device)
	if errors.Is(result.Error, gorm.ErrRecordNotFound) {
		device = models.Device{
			Token:      req.Token,
			UserID:     userKey,
			DeviceType: req.DeviceType,
			DeviceName: req.DeviceName,
		}
		if err := h.db.Create(&device).Error; err != nil {
			http.Error(w, "Error registering device", http.StatusInternalServerError)
			return
		}
	} else if result.Error != nil {
		http.Error(w, "Error checking device registration", http.StatusInternalServerError)
		return
	} else {
		device.DeviceType = req.DeviceType
		device.DeviceName = req.DeviceName
		if err := h.db.Save(&device).Error; err != nil {
			http.Error(w, "Error updating device", http.StatusInternalServerError)
			return
		}
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]interface{}{
		"message": "Device registered successfully",
		"device":  device,
	})
}

func (h *NotificationHandler) GetUserDevices(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	userID := vars["userId"]

	var devices []models.Device
	if err := h.db.Where("user_id = ?", userID).Find(&devices).Error; err != nil {
		http.Error(w, "Error retrieving devices", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(devices)
}

func (h *NotificationHandler) DeleteDevice(w http.ResponseWriter, r *http.Request) {
	callerID, err := utils.GetUserIDFromContext(r.Context())
	if err != nil {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	vars := mux.Vars(r)
	token := vars["token"]

	result := h.db.Where("token = ? AND user_id = ?", token, fmt.Sprintf("%d", callerID)).
		Delete(&models.Device{})
	if result.Error != nil {
		http.Error(w, "Error deleting device", http.StatusInternalServerError)
		return
	}
	if result.RowsAffected == 0 {
		http.Error(w, "Device not found", http.StatusNotFound)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]string{
		"message": "Device deleted successfully",
	})
}

func (h *NotificationHandler) SendNotification(w http.ResponseWriter, r *http.Request) {
	if !h.requireAdmin(w, r) {
		return
	}

	var req models.NotificationRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}
	if req.Token == "" || req.Title == "" {
		http.Error(w, "Token and title are required", http.StatusBadRequest)
		return
	}

	token, err := expo.NewExponentPushToken(req.Token)
	if err != nil {
		http.Error(w, "Invalid Expo push token", http.StatusBadRequest)
		return
	}

	if err := h.publish([]expo.ExponentPushToken{token}, req.Title, req.Body, req.Data); err != nil {
		http.Error(w, "Error sending notification", http.StatusInternalServerError)
		return
	}

	var device models.Device
	if err := h.db.Where("token = ?", req.Token).First(&device).Error; err == nil {
		h.recordHistory(device.UserID, req.Title, req.Body, req.Data, "sent")
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]string{
		"message": "Notification sent successfully",
	})
}

func (h *NotificationHandler) BroadcastNotification(w http.ResponseWriter, r *http.Request) {
	if !h.requireAdmin(w, r) {
		return
	}

	var req models.BroadcastRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}
	if req.Title == "" {
		http.Error(w, "Title is required", http.StatusBadRequest)
		return
	}

	query := h.db.Model(&models.Device{})
	if len(req.UserIDs) > 0 {
		query = query.Where("user_id IN ?", req.UserIDs)
	}

	var devices []models.Device
	if err := query.Find(&devices).Error; err != nil {
		http.Error(w, "Error retrieving devices", http.StatusInternalServerError)
		return
	}
	if len(devices) == 0 {
		http.Error(w, "No registered devices found", http.StatusNotFound)
		return
	}

	var tokens []expo.ExponentPushToken
	notified := make(map[string]bool)
	for _, device := range devices {
		token, err := expo.NewExponentPushToken(device.Token)
		if err != nil {
			// Stale token; remove it so future broadcasts skip it.
			h.db.Delete(&device)
			continue
		}
		tokens = append(tokens, token)
		notified[device.UserID] = true
	}
	if len(tokens) == 0 {
		http.Error(w, "No valid device tokens", http.StatusNotFound)
		return
	}

	if err := h.publish(tokens, req.Title, req.Body, req.Data); err != nil {
		http.Error(w, "Error sending broadcast", http.StatusInternalServerError)
		return
	}

	for userID := range notified {
		h.recordHistory(userID, req.Title, req.Body, req.Data, "sent")
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]interface{}{
		"message":      "Broadcast sent successfully",
		"device_count": len(tokens),
		"user_count":   len(notified),
	})
}

func (h *NotificationHandler) GetNotificationHistory(w http.ResponseWriter, r *http.Request) {
	callerID, err := utils.GetUserIDFromContext(r.Context())
	if err != nil {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	vars := mux.Vars(r)
	userID := vars["userId"]

	if userID != fmt.Sprintf("%d", callerID) {
		var caller models.User
		if err := h.db.First(&caller, callerID).Error; err != nil || caller.Role != models.RoleAdmin {
			http.Error(w, "Forbidden", http.StatusForbidden)
			return
		}
	}

	var history []models.NotificationHistory
	if err := h.db.Where("user_id = ?", userID).
		Order("sent_at DESC").
		Limit(100).
		Find(&history).Error; err != nil {
		http.Error(w, "Error retrieving notification history", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(history)
}

func (h *NotificationHandler) publish(tokens []expo.ExponentPushToken, title, body string, data map[string]interface{}) error {
	stringData := make(map[string]string, len(data))
	for key, value := range data {
		stringData[key] = fmt.Sprintf("%v", value)
	}

	_, err := h.expoClient.Publish(&expo.PushMessage{
		To:       tokens,
		Title:    title,
		Body:     body,
		Sound:    "default",
		Priority: expo.DefaultPriority,
		Data:     stringData,
	})
	return err
}

func (h *NotificationHandler) recordHistory(userID, title, body string, data map[string]interface{}, status string) {
	dataJSON, _ := json.Marshal(data)
	history := models.NotificationHistory{
		UserID: userID,
		Title:  title,
		Body:   body,
		Data:   string(dataJSON),
		Status: status,
		SentAt: time.Now(),
	}
	if err := h.db.Create(&history).Error; err != nil {
		log.Printf("Error recording notification history: %v", err)
	}
}

func (h *NotificationHandler) requireAdmin(w http.ResponseWriter, r *http.Request) bool {
	callerID, err := utils.GetUserIDFromContext(r.Context())
	if err != nil {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return false
	}
	var caller models.User
	if err := h.db.First(&caller, callerID).Error; err != nil || caller.Role != models.RoleAdmin {
		http.Error(w, "Admin access required", http.StatusForbidden)
		return false
	}
	return true
}

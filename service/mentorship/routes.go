package mentorship

import (
	"bytes"
	"crypto/hmac"
	"crypto/sha512"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/gorilla/mux"
	"github.com/mentorlink/MentorLink-server/cmd/models"
	"github.com/mentorlink/MentorLink-server/cmd/utils"
	"github.com/mentorlink/MentorLink-server/service/collaboration"
	"gorm.io/gorm"
)

const paystackBaseURL = "https://api.paystack.co"

type Handler struct {
	db       *gorm.DB
	notifier *collaboration.Notifier
}

func NewHandler(db *gorm.DB, notifier *collaboration.Notifier) *Handler {
	return &Handler{db: db, notifier: notifier}
}

func (h *Handler) RegisterRoutes(router *mux.Router) {
	router.HandleFunc("/mentorship-requests", utils.AuthMiddleware(h.CreateRequest)).Methods("POST")
	router.HandleFunc("/mentorship-requests/mentor/{mentorId}", utils.AuthMiddleware(h.GetMentorRequests)).Methods("GET")
	router.HandleFunc("/mentorship-requests/user/{userId}", utils.AuthMiddleware(h.GetUserRequests)).Methods("GET")
	router.HandleFunc("/mentorship-requests/{id}/respond", utils.AuthMiddleware(h.RespondToRequest)).Methods("POST")
	router.HandleFunc("/mentorship-requests/{id}/pay", utils.AuthMiddleware(h.InitializePayment)).Methods("POST")
	router.HandleFunc("/payments/webhook", h.HandlePaystackWebhook).Methods("POST")
}

func (h *Handler) CreateRequest(w http.ResponseWriter, r *http.Request) {
	callerID, err := utils.GetUserIDFromContext(r.Context())
	if err != nil {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	var req struct {
		MentorID      uint     `json:"mentor_id"`
		Message       string   `json:"message"`
		StartDate     string   `json:"start_date"`
		SlotDay       string   `json:"slot_day"`
		SlotTimes     []string `json:"slot_times"`
		DurationWeeks int      `json:"duration_weeks"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	if req.MentorID == 0 || req.SlotDay == "" || len(req.SlotTimes) == 0 {
		http.Error(w, "Missing required fields", http.StatusBadRequest)
		return
	}
	if req.DurationWeeks < 1 || req.DurationWeeks > 52 {
		http.Error(w, "Duration must be between 1 and 52 weeks", http.StatusBadRequest)
		return
	}
	if _, err := collaboration.ParseWeekday(req.SlotDay); err != nil {
		http.Error(w, "Invalid slot day", http.StatusBadRequest)
		return
	}

	startDate, err := time.Parse(collaboration.DateLayout, req.StartDate)
	if err != nil {
		http.Error(w, "Invalid start date, expected YYYY-MM-DD", http.StatusBadRequest)
		return
	}
	if startDate.Before(collaboration.TruncateToDay(time.Now())) {
		http.Error(w, "Start date cannot be in the past", http.StatusBadRequest)
		return
	}

	var mentor models.Mentor
	if err := h.db.First(&mentor, req.MentorID).Error; err != nil {
		http.Error(w, "Mentor not found", http.StatusNotFound)
		return
	}
	if mentor.IsAccepted != models.MentorAccepted {
		http.Error(w, "Mentor is not accepting requests", http.StatusBadRequest)
		return
	}
	if mentor.UserID == callerID {
		http.Error(w, "Cannot request mentorship from yourself", http.StatusBadRequest)
		return
	}

	request := models.MentorshipRequest{
		UserID:        callerID,
		MentorID:      req.MentorID,
		Message:       req.Message,
		StartDate:     startDate,
		SlotDay:       req.SlotDay,
		SlotTimes:     models.TimeSlots(req.SlotTimes),
		DurationWeeks: req.DurationWeeks,
		Amount:        mentor.HourlyRate * float64(len(req.SlotTimes)) * float64(req.DurationWeeks),
		IsAccepted:    models.MentorshipPending,
		PaymentStatus: models.PaymentPending,
	}

	if err := h.db.Create(&request).Error; err != nil {
		http.Error(w, "Error creating mentorship request", http.StatusInternalServerError)
		return
	}

	go h.notifier.NotifyUser(mentor.UserID, "New Mentorship Request",
		"You have a new mentorship request", map[string]interface{}{
			"request_id": fmt.Sprint(request.ID),
			"type":       "mentorship_request",
		})

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	json.NewEncoder(w).Encode(request)
}

func (h *Handler) GetMentorRequests(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	mentorID, err := strconv.ParseUint(vars["mentorId"], 10, 64)
	if err != nil {
		http.Error(w, "Invalid mentor ID", http.StatusBadRequest)
		return
	}

	query := h.db.Where("mentor_id = ?", mentorID).Preload("User")
	if status := r.URL.Query().Get("status"); status != "" {
		query = query.Where("is_accepted = ?", status)
	}

	var requests []models.MentorshipRequest
	if err := query.Order("created_at DESC").Find(&requests).Error; err != nil {
		http.Error(w, "Error retrieving mentorship requests", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(requests)
}

func (h *Handler) GetUserRequests(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	userID, err := strconv.ParseUint(vars["userId"], 10, 64)
	if err != nil {
		http.Error(w, "Invalid user ID", http.StatusBadRequest)
		return
	}

	var requests []models.MentorshipRequest
	if err := h.db.Where("user_id = ?", userID).
		Preload("Mentor").
		Preload("Mentor.User").
		Order("created_at DESC").
		Find(&requests).Error; err != nil {
		http.Error(w, "Error retrieving mentorship requests", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(requests)
}

func (h *Handler) RespondToRequest(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	requestID, err := strconv.ParseUint(vars["id"], 10, 64)
	if err != nil {
		http.Error(w, "Invalid request ID", http.StatusBadRequest)
		return
	}

	callerID, err := utils.GetUserIDFromContext(r.Context())
	if err != nil {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	var body struct {
		Accept *bool `json:"accept"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil || body.Accept == nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	var request models.MentorshipRequest
	if err := h.db.Preload("Mentor").First(&request, requestID).Error; err != nil {
		http.Error(w, "Mentorship request not found", http.StatusNotFound)
		return
	}

	if request.Mentor == nil || request.Mentor.UserID != callerID {
		http.Error(w, "Only the requested mentor can respond", http.StatusForbidden)
		return
	}

	newStatus := models.MentorshipRejected
	if *body.Accept {
		newStatus = models.MentorshipAccepted
	}

	result := h.db.Model(&models.MentorshipRequest{}).
		Where("id = ? AND is_accepted = ?", requestID, models.MentorshipPending).
		Update("is_accepted", newStatus)
	if result.Error != nil {
		http.Error(w, "Error updating mentorship request", http.StatusInternalServerError)
		return
	}
	if result.RowsAffected == 0 {
		http.Error(w, "Request already resolved", http.StatusConflict)
		return
	}

	go h.notifier.NotifyUser(request.UserID, "Mentorship Request "+newStatus,
		"Your mentorship request was "+strings.ToLower(newStatus), map[string]interface{}{
			"request_id": fmt.Sprint(request.ID),
			"type":       "mentorship_response",
		})

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]string{
		"message": "Mentorship request " + strings.ToLower(newStatus),
		"status":  newStatus,
	})
}

// InitializePayment starts a Paystack transaction for an accepted request and
// returns the hosted checkout URL to the client.
func (h *Handler) InitializePayment(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	requestID, err := strconv.ParseUint(vars["id"], 10, 64)
	if err != nil {
		http.Error(w, "Invalid request ID", http.StatusBadRequest)
		return
	}

	callerID, err := utils.GetUserIDFromContext(r.Context())
	if err != nil {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	var request models.MentorshipRequest
	if err := h.db.First(&request, requestID).Error; err != nil {
		http.Error(w, "Mentorship request not found", http.StatusNotFound)
		return
	}

	if request.UserID != callerID {
		http.Error(w, "Only the requester can pay for this request", http.StatusForbidden)
		return
	}
	if request.IsAccepted != models.MentorshipAccepted {
		http.Error(w, "Request has not been accepted by the mentor", http.StatusBadRequest)
		return
	}
	if request.PaymentStatus == models.PaymentPaid {
		http.Error(w, "Request already paid", http.StatusConflict)
		return
	}

	var user models.User
	if err := h.db.First(&user, callerID).Error; err != nil {
		http.Error(w, "User not found", http.StatusNotFound)
		return
	}

	reference := fmt.Sprintf("COL-%d-%d", request.ID, time.Now().Unix())

	payload := map[string]interface{}{
		"email":     user.Email,
		"amount":    int64(request.Amount * 100), // pesewas
		"reference": reference,
		"currency":  "GHS",
	}

	body, err := json.Marshal(payload)
	if err != nil {
		http.Error(w, "Error preparing payment", http.StatusInternalServerError)
		return
	}

	paystackReq, err := http.NewRequest("POST", paystackBaseURL+"/transaction/initialize", bytes.NewBuffer(body))
	if err != nil {
		http.Error(w, "Error preparing payment", http.StatusInternalServerError)
		return
	}
	paystackReq.Header.Set("Authorization", "Bearer "+os.Getenv("PAYSTACK_SECRET_KEY"))
	paystackReq.Header.Set("Content-Type", "application/json")

	resp, err := http.DefaultClient.Do(paystackReq)
	if err != nil {
		http.Error(w, "Payment provider unavailable", http.StatusBadGateway)
		return
	}
	defer resp.Body.Close()

	var paystackResp struct {
		Status bool `json:"status"`
		Data   struct {
			AuthorizationURL string `json:"authorization_url"`
			AccessCode       string `json:"access_code"`
			Reference        string `json:"reference"`
		} `json:"data"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&paystackResp); err != nil || !paystackResp.Status {
		http.Error(w, "Error initializing payment", http.StatusBadGateway)
		return
	}

	if err := h.db.Model(&request).Update("payment_id", reference).Error; err != nil {
		http.Error(w, "Error saving payment reference", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]string{
		"authorization_url": paystackResp.Data.AuthorizationURL,
		"access_code":       paystackResp.Data.AccessCode,
		"reference":         paystackResp.Data.Reference,
	})
}

// HandlePaystackWebhook consumes charge events. A successful charge on a
// mentorship reference marks the request paid and opens the collaboration.
func (h *Handler) HandlePaystackWebhook(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(r.Body)
	if err != nil {
		http.Error(w, "Error reading request body", http.StatusBadRequest)
		return
	}

	signature := r.Header.Get("x-paystack-signature")
	if !verifyPaystackSignature(body, signature) {
		http.Error(w, "Invalid signature", http.StatusUnauthorized)
		return
	}

	var event struct {
		Event string `json:"event"`
		Data  struct {
			Reference string  `json:"reference"`
			Amount    float64 `json:"amount"`
			Channel   string  `json:"channel"`
			Status    string  `json:"status"`
		} `json:"data"`
	}
	if err := json.Unmarshal(body, &event); err != nil {
		http.Error(w, "Invalid payload", http.StatusBadRequest)
		return
	}

	if event.Event != "charge.success" {
		w.WriteHeader(http.StatusOK)
		return
	}

	if strings.HasPrefix(event.Data.Reference, "COL-") {
		if err := h.confirmMentorshipPayment(event.Data.Reference, event.Data.Amount/100, event.Data.Channel); err != nil {
			log.Printf("Error confirming payment %s: %v", event.Data.Reference, err)
			http.Error(w, "Error processing payment", http.StatusInternalServerError)
			return
		}
	}

	w.WriteHeader(http.StatusOK)
}

func verifyPaystackSignature(body []byte, signature string) bool {
	secret := os.Getenv("PAYSTACK_SECRET_KEY")
	if secret == "" || signature == "" {
		return false
	}
	mac := hmac.New(sha512.New, []byte(secret))
	mac.Write(body)
	expected := hex.EncodeToString(mac.Sum(nil))
	return hmac.Equal([]byte(expected), []byte(signature))
}

func (h *Handler) confirmMentorshipPayment(reference string, amount float64, channel string) error {
	var request models.MentorshipRequest
	if err := h.db.Where("payment_id = ?", reference).Preload("Mentor").First(&request).Error; err != nil {
		return fmt.Errorf("request with reference %s not found: %w", reference, err)
	}

	if request.PaymentStatus == models.PaymentPaid {
		// Paystack retries webhooks; the first delivery already handled it.
		return nil
	}

	day, err := collaboration.ParseWeekday(request.SlotDay)
	if err != nil {
		return err
	}
	start, end := collaboration.ScheduleSpan(request.StartDate, day, request.DurationWeeks)

	tx := h.db.Begin()

	if err := tx.Model(&models.MentorshipRequest{}).
		Where("id = ?", request.ID).
		Update("payment_status", models.PaymentPaid).Error; err != nil {
		tx.Rollback()
		return err
	}

	collab := models.Collaboration{
		MentorID:      request.MentorID,
		UserID:        request.UserID,
		StartDate:     start,
		EndDate:       end,
		SlotDay:       request.SlotDay,
		SlotTimes:     request.SlotTimes,
		Price:         request.Amount,
		PaymentStatus: models.PaymentPaid,
		PaymentID:     reference,
	}
	if err := tx.Create(&collab).Error; err != nil {
		tx.Rollback()
		return err
	}

	transaction := models.Transaction{
		UserID:    request.UserID,
		Amount:    amount,
		Method:    channel,
		Purpose:   models.PurposeCollaboration,
		Reference: reference,
	}
	if err := tx.Create(&transaction).Error; err != nil {
		tx.Rollback()
		return err
	}

	if err := tx.Commit().Error; err != nil {
		return err
	}

	go h.notifier.NotifyUser(request.UserID, "Payment Confirmed",
		"Your mentorship collaboration is now active", map[string]interface{}{
			"collaboration_id": fmt.Sprint(collab.ID),
			"type":             "collaboration_started",
		})
	if request.Mentor != nil {
		go h.notifier.NotifyUser(request.Mentor.UserID, "New Collaboration",
			"A mentee has paid for your mentorship", map[string]interface{}{
				"collaboration_id": fmt.Sprint(collab.ID),
				"type":             "collaboration_started",
			})
	}

	return nil
}

package transactions

import (
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"os"
	"strconv"
	"time"

	"github.com/gorilla/mux"
	"github.com/mentorlink/MentorLink-server/cmd/models"
	"github.com/mentorlink/MentorLink-server/cmd/utils"
	"gorm.io/gorm"
)

type TransactionHandler struct {
	db *gorm.DB
}

func NewTransactionHandler(db *gorm.DB) *TransactionHandler {
	return &TransactionHandler{db: db}
}

func (h *TransactionHandler) RegisterRoutes(router *mux.Router) {
	router.HandleFunc("/transactions", utils.AuthMiddleware(h.GetTransactions)).Methods("GET")
	router.HandleFunc("/transactions/user/{userId}", utils.AuthMiddleware(h.GetUserTransactions)).Methods("GET")
	router.HandleFunc("/transactions/verify/{reference}", utils.AuthMiddleware(h.VerifyTransaction)).Methods("GET")
	router.HandleFunc("/sales/summary", utils.AuthMiddleware(h.GetSalesSummary)).Methods("GET")
}

// TransactionFilter narrows the admin transaction listing.
type TransactionFilter struct {
	UserID  uint
	Purpose string
	Method  string
	From    time.Time
	To      time.Time
}

type PaginationMeta struct {
	Total      int64 `json:"total"`
	Page       int   `json:"page"`
	PageSize   int   `json:"page_size"`
	TotalPages int64 `json:"total_pages"`
}

type PaginatedResponse struct {
	Data interface{}    `json:"data"`
	Meta PaginationMeta `json:"meta"`
}

func ParsePaginationParams(r *http.Request) (page, pageSize int) {
	page, _ = strconv.Atoi(r.URL.Query().Get("page"))
	if page < 1 {
		page = 1
	}
	pageSize, _ = strconv.Atoi(r.URL.Query().Get("page_size"))
	if pageSize < 1 || pageSize > 100 {
		pageSize = 25
	}
	return page, pageSize
}

func respondWithError(w http.ResponseWriter, code int, message string) {
	respondWithJSON(w, code, map[string]string{"error": message})
}

func respondWithJSON(w http.ResponseWriter, code int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		log.Printf("Error encoding response: %v", err)
	}
}

func parseFilter(r *http.Request) TransactionFilter {
	var filter TransactionFilter
	if userID, err := strconv.ParseUint(r.URL.Query().Get("user_id"), 10, 32); err == nil {
		filter.UserID = uint(userID)
	}
	filter.Purpose = r.URL.Query().Get("purpose")
	filter.Method = r.URL.Query().Get("method")
	if from, err := time.Parse("2006-01-02", r.URL.Query().Get("from")); err == nil {
		filter.From = from
	}
	if to, err := time.Parse("2006-01-02", r.URL.Query().Get("to")); err == nil {
		filter.To = to.AddDate(0, 0, 1) // inclusive end date
	}
	return filter
}

func (h *TransactionHandler) applyFilter(filter TransactionFilter) *gorm.DB {
	query := h.db.Model(&models.Transaction{})
	if filter.UserID != 0 {
		query = query.Where("user_id = ?", filter.UserID)
	}
	if filter.Purpose != "" {
		query = query.Where("purpose = ?", filter.Purpose)
	}
	if filter.Method != "" {
		query = query.Where("method = ?", filter.Method)
	}
	if !filter.From.IsZero() {
		query = query.Where("created_at >= ?", filter.From)
	}
	if !filter.To.IsZero() {
		query = query.Where("created_at < ?", filter.To)
	}
	return query
}

func (h *TransactionHandler) requireAdmin(w http.ResponseWriter, r *http.Request) bool {
	callerID, err := utils.GetUserIDFromContext(r.Context())
	if err != nil {
		respondWithError(w, http.StatusUnauthorized, "Unauthorized")
		return false
	}
	var caller models.User
	if err := h.db.First(&caller, callerID).Error; err != nil || caller.Role != models.RoleAdmin {
		respondWithError(w, http.StatusForbidden, "Admin access required")
		return false
	}
	return true
}

func (h *TransactionHandler) GetTransactions(w http.ResponseWriter, r *http.Request) {
	if !h.requireAdmin(w, r) {
		return
	}

	page, pageSize := ParsePaginationParams(r)
	query := h.applyFilter(parseFilter(r))

	var total int64
	if err := query.Count(&total).Error; err != nil {
		respondWithError(w, http.StatusInternalServerError, "Error counting transactions")
		return
	}

	var txns []models.Transaction
	if err := query.Preload("User").
		Order("created_at DESC").
		Offset((page - 1) * pageSize).
		Limit(pageSize).
		Find(&txns).Error; err != nil {
		respondWithError(w, http.StatusInternalServerError, "Error retrieving transactions")
		return
	}

	respondWithJSON(w, http.StatusOK, PaginatedResponse{
		Data: txns,
		Meta: PaginationMeta{
			Total:      total,
			Page:       page,
			PageSize:   pageSize,
			TotalPages: (total + int64(pageSize) - 1) / int64(pageSize),
		},
	})
}

func (h *TransactionHandler) GetUserTransactions(w http.ResponseWriter, r *http.Request) {
	callerID, err := utils.GetUserIDFromContext(r.Context())
	if err != nil {
		respondWithError(w, http.StatusUnauthorized, "Unauthorized")
		return
	}

	vars := mux.Vars(r)
	userID, err := strconv.ParseUint(vars["userId"], 10, 64)
	if err != nil {
		respondWithError(w, http.StatusBadRequest, "Invalid user ID")
		return
	}

	if callerID != uint(userID) {
		var caller models.User
		if err := h.db.First(&caller, callerID).Error; err != nil || caller.Role != models.RoleAdmin {
			respondWithError(w, http.StatusForbidden, "Forbidden")
			return
		}
	}

	page, pageSize := ParsePaginationParams(r)
	query := h.db.Model(&models.Transaction{}).Where("user_id = ?", userID)

	var total int64
	query.Count(&total)

	var txns []models.Transaction
	if err := query.Order("created_at DESC").
		Offset((page - 1) * pageSize).
		Limit(pageSize).
		Find(&txns).Error; err != nil {
		respondWithError(w, http.StatusInternalServerError, "Error retrieving transactions")
		return
	}

	respondWithJSON(w, http.StatusOK, PaginatedResponse{
		Data: txns,
		Meta: PaginationMeta{
			Total:      total,
			Page:       page,
			PageSize:   pageSize,
			TotalPages: (total + int64(pageSize) - 1) / int64(pageSize),
		},
	})
}

// VerifyTransaction checks a reference against Paystack and returns its
// gateway status alongside our local record. Admin only: references alone
// must not let one user read another's payment details.
func (h *TransactionHandler) VerifyTransaction(w http.ResponseWriter, r *http.Request) {
	if !h.requireAdmin(w, r) {
		return
	}

	vars := mux.Vars(r)
	reference := vars["reference"]

	var local models.Transaction
	localFound := h.db.Where("reference = ?", reference).First(&local).Error == nil

	req, err := http.NewRequest("GET",
		fmt.Sprintf("https://api.paystack.co/transaction/verify/%s", reference), nil)
	if err != nil {
		respondWithError(w, http.StatusInternalServerError, "Error preparing verification")
		return
	}
	req.Header.Set("Authorization", "Bearer "+os.Getenv("PAYSTACK_SECRET_KEY"))

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		respondWithError(w, http.StatusBadGateway, "Payment provider unavailable")
		return
	}
	defer resp.Body.Close()

	var paystackResp struct {
		Status bool `json:"status"`
		Data   struct {
			Status   string  `json:"status"`
			Amount   float64 `json:"amount"`
			Channel  string  `json:"channel"`
			PaidAt   string  `json:"paid_at"`
			Currency string  `json:"currency"`
		} `json:"data"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&paystackResp); err != nil {
		respondWithError(w, http.StatusBadGateway, "Error decoding verification response")
		return
	}

	response := map[string]interface{}{
		"reference":      reference,
		"gateway_status": paystackResp.Data.Status,
		"amount":         paystackResp.Data.Amount / 100,
		"channel":        paystackResp.Data.Channel,
		"paid_at":        paystackResp.Data.PaidAt,
		"recorded":       localFound,
	}
	if localFound {
		response["transaction"] = local
	}

	respondWithJSON(w, http.StatusOK, response)
}

// GetSalesSummary aggregates revenue by purpose over an optional date range.
// Admin only.
func (h *TransactionHandler) GetSalesSummary(w http.ResponseWriter, r *http.Request) {
	if !h.requireAdmin(w, r) {
		return
	}

	query := h.applyFilter(parseFilter(r))

	type purposeTotal struct {
		Purpose string  `json:"purpose"`
		Total   float64 `json:"total"`
		Count   int64   `json:"count"`
	}

	var byPurpose []purposeTotal
	if err := query.Select("purpose, SUM(amount) as total, COUNT(*) as count").
		Group("purpose").
		Scan(&byPurpose).Error; err != nil {
		respondWithError(w, http.StatusInternalServerError, "Error aggregating sales")
		return
	}

	var gross, refunds float64
	for _, row := range byPurpose {
		if row.Purpose == models.PurposeRefund {
			refunds += row.Total
		} else {
			gross += row.Total
		}
	}

	respondWithJSON(w, http.StatusOK, map[string]interface{}{
		"by_purpose": byPurpose,
		"gross":      gross,
		"refunds":    refunds,
		"net":        gross - refunds,
	})
}

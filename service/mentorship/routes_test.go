package mentorship

import (
	"bytes"
	"crypto/hmac"
	"crypto/sha512"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/mentorlink/MentorLink-server/cmd/models"
	"github.com/mentorlink/MentorLink-server/service/collaboration"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

const testPaystackSecret = "sk_test_webhook"

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", t.Name())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	if err != nil {
		t.Fatalf("opening test database: %v", err)
	}

	err = db.AutoMigrate(
		&models.User{},
		&models.Mentor{},
		&models.MentorshipRequest{},
		&models.Collaboration{},
		&models.Transaction{},
		&models.Device{},
		&models.NotificationHistory{},
	)
	if err != nil {
		t.Fatalf("migrating test database: %v", err)
	}
	return db
}

// seedAcceptedRequest creates a mentee, an approved mentor, and an accepted
// mentorship request awaiting payment with the given reference.
func seedAcceptedRequest(t *testing.T, db *gorm.DB, reference string) *models.MentorshipRequest {
	t.Helper()

	mentee := models.User{FullName: "Ama Mensah", Email: "ama@example.com", PasswordHash: "x", Role: models.RoleMentee, Phone: "0200000001"}
	mentorUser := models.User{FullName: "Kojo Boateng", Email: "kojo@example.com", PasswordHash: "x", Role: models.RoleMentor, Phone: "0200000002"}
	if err := db.Create(&mentee).Error; err != nil {
		t.Fatalf("seeding mentee: %v", err)
	}
	if err := db.Create(&mentorUser).Error; err != nil {
		t.Fatalf("seeding mentor user: %v", err)
	}

	mentor := models.Mentor{UserID: mentorUser.ID, Expertise: "Backend engineering", IsAccepted: models.MentorAccepted, HourlyRate: 50}
	if err := db.Create(&mentor).Error; err != nil {
		t.Fatalf("seeding mentor: %v", err)
	}

	start := collaboration.TruncateToDay(time.Now()).AddDate(0, 0, 7)
	request := models.MentorshipRequest{
		UserID:        mentee.ID,
		MentorID:      mentor.ID,
		StartDate:     start,
		SlotDay:       start.Weekday().String(),
		SlotTimes:     models.TimeSlots{"18:00 - 19:00"},
		DurationWeeks: 6,
		Amount:        300,
		IsAccepted:    models.MentorshipAccepted,
		PaymentStatus: models.PaymentPending,
		PaymentID:     reference,
	}
	if err := db.Create(&request).Error; err != nil {
		t.Fatalf("seeding mentorship request: %v", err)
	}
	return &request
}

func signPayload(body []byte) string {
	mac := hmac.New(sha512.New, []byte(testPaystackSecret))
	mac.Write(body)
	return hex.EncodeToString(mac.Sum(nil))
}

func webhookBody(t *testing.T, reference string) []byte {
	t.Helper()

	body, err := json.Marshal(map[string]interface{}{
		"event": "charge.success",
		"data": map[string]interface{}{
			"reference": reference,
			"amount":    30000,
			"channel":   "mobile_money",
			"status":    "success",
		},
	})
	if err != nil {
		t.Fatalf("marshaling webhook payload: %v", err)
	}
	return body
}

func TestWebhookCreatesCollaboration(t *testing.T) {
	t.Setenv("PAYSTACK_SECRET_KEY", testPaystackSecret)

	db := newTestDB(t)
	reference := "COL-1-1700000000"
	request := seedAcceptedRequest(t, db, reference)
	handler := NewHandler(db, collaboration.NewNotifier(db))

	body := webhookBody(t, reference)
	req := httptest.NewRequest(http.MethodPost, "/payments/webhook", bytes.NewReader(body))
	req.Header.Set("x-paystack-signature", signPayload(body))

	rec := httptest.NewRecorder()
	handler.HandlePaystackWebhook(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}

	var updated models.MentorshipRequest
	if err := db.First(&updated, request.ID).Error; err != nil {
		t.Fatalf("reloading request: %v", err)
	}
	if updated.PaymentStatus != models.PaymentPaid {
		t.Fatalf("expected request marked paid, got %q", updated.PaymentStatus)
	}

	var collab models.Collaboration
	if err := db.Where("payment_id = ?", reference).First(&collab).Error; err != nil {
		t.Fatalf("expected collaboration created: %v", err)
	}
	if !collab.StartDate.Equal(request.StartDate) {
		t.Errorf("start date = %v, want %v", collab.StartDate, request.StartDate)
	}
	wantEnd := request.StartDate.AddDate(0, 0, 7*(request.DurationWeeks-1))
	if !collab.EndDate.Equal(wantEnd) {
		t.Errorf("end date = %v, want %v", collab.EndDate, wantEnd)
	}
	if collab.PaymentStatus != models.PaymentPaid {
		t.Errorf("collaboration payment status = %q, want paid", collab.PaymentStatus)
	}

	var txn models.Transaction
	if err := db.Where("reference = ?", reference).First(&txn).Error; err != nil {
		t.Fatalf("expected transaction recorded: %v", err)
	}
	if txn.Purpose != models.PurposeCollaboration {
		t.Errorf("transaction purpose = %q, want %q", txn.Purpose, models.PurposeCollaboration)
	}
	if txn.Amount != 300 {
		t.Errorf("transaction amount = %v, want 300", txn.Amount)
	}
}

func TestWebhookIsIdempotent(t *testing.T) {
	t.Setenv("PAYSTACK_SECRET_KEY", testPaystackSecret)

	db := newTestDB(t)
	reference := "COL-1-1700000001"
	seedAcceptedRequest(t, db, reference)
	handler := NewHandler(db, collaboration.NewNotifier(db))

	body := webhookBody(t, reference)
	for i := 0; i < 2; i++ {
		req := httptest.NewRequest(http.MethodPost, "/payments/webhook", bytes.NewReader(body))
		req.Header.Set("x-paystack-signature", signPayload(body))
		rec := httptest.NewRecorder()
		handler.HandlePaystackWebhook(rec, req)
		if rec.Code != http.StatusOK {
			t.Fatalf("delivery %d: expected 200, got %d", i+1, rec.Code)
		}
	}

	var count int64
	db.Model(&models.Collaboration{}).Where("payment_id = ?", reference).Count(&count)
	if count != 1 {
		t.Fatalf("expected exactly one collaboration, got %d", count)
	}
}

func TestWebhookRejectsBadSignature(t *testing.T) {
	t.Setenv("PAYSTACK_SECRET_KEY", testPaystackSecret)

	db := newTestDB(t)
	reference := "COL-1-1700000002"
	seedAcceptedRequest(t, db, reference)
	handler := NewHandler(db, collaboration.NewNotifier(db))

	body := webhookBody(t, reference)
	req := httptest.NewRequest(http.MethodPost, "/payments/webhook", bytes.NewReader(body))
	req.Header.Set("x-paystack-signature", "deadbeef")

	rec := httptest.NewRecorder()
	handler.HandlePaystackWebhook(rec, req)

	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", rec.Code)
	}

	var count int64
	db.Model(&models.Collaboration{}).Count(&count)
	if count != 0 {
		t.Fatalf("expected no collaboration, got %d", count)
	}
}

func TestWebhookIgnoresOtherEvents(t *testing.T) {
	t.Setenv("PAYSTACK_SECRET_KEY", testPaystackSecret)

	db := newTestDB(t)
	reference := "COL-1-1700000003"
	seedAcceptedRequest(t, db, reference)
	handler := NewHandler(db, collaboration.NewNotifier(db))

	body, _ := json.Marshal(map[string]interface{}{
		"event": "charge.failed",
		"data":  map[string]interface{}{"reference": reference},
	})
	req := httptest.NewRequest(http.MethodPost, "/payments/webhook", bytes.NewReader(body))
	req.Header.Set("x-paystack-signature", signPayload(body))

	rec := httptest.NewRecorder()
	handler.HandlePaystackWebhook(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}

	var count int64
	db.Model(&models.Collaboration{}).Count(&count)
	if count != 0 {
		t.Fatalf("expected no collaboration for failed charge, got %d", count)
	}
}

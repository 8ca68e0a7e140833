package feedback

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gorilla/mux"
	"github.com/mentorlink/MentorLink-server/cmd/models"
	"github.com/mentorlink/MentorLink-server/cmd/utils"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

const (
	menteeUserID = 1
	mentorUserID = 2
)

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
		&models.Collaboration{},
		&models.Feedback{},
	)
	if err != nil {
		t.Fatalf("migrating test database: %v", err)
	}
	return db
}

// seedPaidCollaboration creates a mentee and mentor joined by a paid
// collaboration, which entitles the mentee to leave feedback.
func seedPaidCollaboration(t *testing.T, db *gorm.DB) *models.Mentor {
	t.Helper()

	mentee := models.User{FullName: "Ama Mensah", Email: "ama@example.com", PasswordHash: "x", Role: models.RoleMentee, Phone: "0200000001"}
	mentorUser := models.User{FullName: "Kojo Boateng", Email: "kojo@example.com", PasswordHash: "x", Role: models.RoleMentor, Phone: "0200000002"}
	if err := db.Create(&mentee).Error; err != nil {
		t.Fatalf("seeding mentee: %v", err)
	}
	if err := db.Create(&mentorUser).Error; err != nil {
		t.Fatalf("seeding mentor user: %v", err)
	}

	mentor := models.Mentor{UserID: mentorUser.ID, Expertise: "Backend engineering", IsAccepted: models.MentorAccepted}
	if err := db.Create(&mentor).Error; err != nil {
		t.Fatalf("seeding mentor: %v", err)
	}

	collab := models.Collaboration{
		MentorID:      mentor.ID,
		UserID:        mentee.ID,
		StartDate:     time.Now(),
		EndDate:       time.Now().AddDate(0, 0, 28),
		SlotDay:       "Monday",
		SlotTimes:     models.TimeSlots{"18:00 - 19:00"},
		Price:         200,
		PaymentStatus: models.PaymentPaid,
	}
	if err := db.Create(&collab).Error; err != nil {
		t.Fatalf("seeding collaboration: %v", err)
	}
	return &mentor
}

func authedRequest(method, target string, body []byte, userID uint, vars map[string]string) *http.Request {
	req := httptest.NewRequest(method, target, bytes.NewReader(body))
	req = req.WithContext(context.WithValue(req.Context(), utils.UserIDKey, userID))
	if vars != nil {
		req = mux.SetURLVars(req, vars)
	}
	return req
}

func TestCreateFeedbackUpdatesMentorRating(t *testing.T) {
	db := newTestDB(t)
	mentor := seedPaidCollaboration(t, db)
	handler := NewHandler(db)

	body, _ := json.Marshal(map[string]interface{}{
		"mentor_id": mentor.ID,
		"rating":    4,
		"comment":   "Clear explanations, helpful examples",
	})
	rec := httptest.NewRecorder()
	handler.CreateFeedback(rec, authedRequest(http.MethodPost, "/feedback", body, menteeUserID, nil))

	if rec.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", rec.Code, rec.Body.String())
	}

	var updated models.Mentor
	if err := db.First(&updated, mentor.ID).Error; err != nil {
		t.Fatalf("reloading mentor: %v", err)
	}
	if updated.AverageRating != 4 {
		t.Errorf("average rating = %v, want 4", updated.AverageRating)
	}
	if updated.TotalRatings != 1 {
		t.Errorf("total ratings = %d, want 1", updated.TotalRatings)
	}
}

func TestFeedbackRequiresPaidCollaboration(t *testing.T) {
	db := newTestDB(t)
	mentor := seedPaidCollaboration(t, db)
	handler := NewHandler(db)

	// A user with no collaboration history with this mentor.
	outsider := models.User{FullName: "Efua Owusu", Email: "efua@example.com", PasswordHash: "x", Role: models.RoleMentee, Phone: "0200000003"}
	if err := db.Create(&outsider).Error; err != nil {
		t.Fatalf("seeding outsider: %v", err)
	}

	body, _ := json.Marshal(map[string]interface{}{
		"mentor_id": mentor.ID,
		"rating":    5,
	})
	rec := httptest.NewRecorder()
	handler.CreateFeedback(rec, authedRequest(http.MethodPost, "/feedback", body, outsider.ID, nil))

	if rec.Code != http.StatusForbidden {
		t.Fatalf("expected 403, got %d", rec.Code)
	}
}

func TestFeedbackRejectsOutOfRangeRating(t *testing.T) {
	db := newTestDB(t)
	mentor := seedPaidCollaboration(t, db)
	handler := NewHandler(db)

	for _, rating := range []float64{0, 6} {
		body, _ := json.Marshal(map[string]interface{}{
			"mentor_id": mentor.ID,
			"rating":    rating,
		})
		rec := httptest.NewRecorder()
		handler.CreateFeedback(rec, authedRequest(http.MethodPost, "/feedback", body, menteeUserID, nil))
		if rec.Code != http.StatusBadRequest {
			t.Errorf("rating %v: expected 400, got %d", rating, rec.Code)
		}
	}
}

func TestDeleteFeedbackRecomputesRating(t *testing.T) {
	db := newTestDB(t)
	mentor := seedPaidCollaboration(t, db)
	handler := NewHandler(db)

	feedback := models.Feedback{UserID: menteeUserID, MentorID: mentor.ID, Rating: 2}
	if err := db.Create(&feedback).Error; err != nil {
		t.Fatalf("seeding feedback: %v", err)
	}
	if err := db.Model(&models.Mentor{}).Where("id = ?", mentor.ID).
		Updates(map[string]interface{}{"average_rating": 2, "total_ratings": 1}).Error; err != nil {
		t.Fatalf("seeding rating: %v", err)
	}

	rec := httptest.NewRecorder()
	handler.DeleteFeedback(rec, authedRequest(http.MethodDelete, "/feedback/1", nil, menteeUserID,
		map[string]string{"id": fmt.Sprint(feedback.ID)}))

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}

	var updated models.Mentor
	db.First(&updated, mentor.ID)
	if updated.AverageRating != 0 || updated.TotalRatings != 0 {
		t.Errorf("expected rating reset, got avg=%v count=%d", updated.AverageRating, updated.TotalRatings)
	}
}

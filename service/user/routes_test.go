package user

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

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
		&models.CertificationFile{},
	)
	if err != nil {
		t.Fatalf("migrating test database: %v", err)
	}
	return db
}

func seedMentor(t *testing.T, db *gorm.DB) *models.Mentor {
	t.Helper()

	mentee := models.User{FullName: "Ama Mensah", Email: "ama@example.com", PasswordHash: "x", Role: models.RoleMentee, Phone: "0200000001"}
	mentorUser := models.User{FullName: "Kojo Boateng", Email: "kojo@example.com", PasswordHash: "x", Role: models.RoleMentor, Phone: "0200000002"}
	if err := db.Create(&mentee).Error; err != nil {
		t.Fatalf("seeding mentee: %v", err)
	}
	if err := db.Create(&mentorUser).Error; err != nil {
		t.Fatalf("seeding mentor user: %v", err)
	}
	if mentee.ID != menteeUserID || mentorUser.ID != mentorUserID {
		t.Fatalf("unexpected seed IDs: %d, %d", mentee.ID, mentorUser.ID)
	}

	mentor := models.Mentor{UserID: mentorUser.ID, Expertise: "Backend engineering", IsAccepted: models.MentorAccepted}
	if err := db.Create(&mentor).Error; err != nil {
		t.Fatalf("seeding mentor: %v", err)
	}
	return &mentor
}

// chdirTemp runs the test from a temporary directory so upload directories
// are created and cleaned up with the test.
func chdirTemp(t *testing.T) {
	t.Helper()

	cwd, err := os.Getwd()
	if err != nil {
		t.Fatalf("getting working directory: %v", err)
	}
	if err := os.Chdir(t.TempDir()); err != nil {
		t.Fatalf("changing directory: %v", err)
	}
	t.Cleanup(func() {
		if err := os.Chdir(cwd); err != nil {
			t.Errorf("restoring working directory: %v", err)
		}
	})
}

func certificateRequest(t *testing.T, mentorID, callerID uint, filename string) *http.Request {
	t.Helper()

	var buf bytes.Buffer
	writer := multipart.NewWriter(&buf)
	part, err := writer.CreateFormFile("certificate", filename)
	if err != nil {
		t.Fatalf("creating form file: %v", err)
	}
	if _, err := part.Write([]byte("%PDF-1.4 certificate body")); err != nil {
		t.Fatalf("writing form file: %v", err)
	}
	if err := writer.Close(); err != nil {
		t.Fatalf("closing multipart writer: %v", err)
	}

	req := httptest.NewRequest(http.MethodPost, "/mentors/1/certificates", &buf)
	req.Header.Set("Content-Type", writer.FormDataContentType())
	req = req.WithContext(context.WithValue(req.Context(), utils.UserIDKey, callerID))
	return mux.SetURLVars(req, map[string]string{"id": fmt.Sprint(mentorID)})
}

func TestUploadCertificateStoresFileAndRecord(t *testing.T) {
	chdirTemp(t)
	db := newTestDB(t)
	mentor := seedMentor(t, db)
	handler := NewHandler(db)

	rec := httptest.NewRecorder()
	handler.UploadCertificate(rec, certificateRequest(t, mentor.ID, mentorUserID, "degree.pdf"))

	if rec.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", rec.Code, rec.Body.String())
	}

	var saved models.CertificationFile
	if err := db.Where("mentor_id = ?", mentor.ID).First(&saved).Error; err != nil {
		t.Fatalf("expected certification file recorded: %v", err)
	}
	if saved.FileName != "degree.pdf" {
		t.Errorf("file name = %q, want degree.pdf", saved.FileName)
	}

	onDisk := filepath.Join(utils.CertificatePath, filepath.Base(saved.FilePath))
	if _, err := os.Stat(onDisk); err != nil {
		t.Errorf("expected stored file at %s: %v", onDisk, err)
	}

	var response models.CertificationFile
	if err := json.Unmarshal(rec.Body.Bytes(), &response); err != nil {
		t.Fatalf("decoding response: %v", err)
	}
	if response.FilePath != saved.FilePath {
		t.Errorf("response path = %q, want %q", response.FilePath, saved.FilePath)
	}
}

func TestUploadCertificateRequiresProfileOwner(t *testing.T) {
	chdirTemp(t)
	db := newTestDB(t)
	mentor := seedMentor(t, db)
	handler := NewHandler(db)

	rec := httptest.NewRecorder()
	handler.UploadCertificate(rec, certificateRequest(t, mentor.ID, menteeUserID, "degree.pdf"))

	if rec.Code != http.StatusForbidden {
		t.Fatalf("expected 403, got %d", rec.Code)
	}

	var count int64
	db.Model(&models.CertificationFile{}).Count(&count)
	if count != 0 {
		t.Fatalf("expected no certification files, got %d", count)
	}
}

func TestUploadCertificateRejectsBadExtension(t *testing.T) {
	chdirTemp(t)
	db := newTestDB(t)
	mentor := seedMentor(t, db)
	handler := NewHandler(db)

	rec := httptest.NewRecorder()
	handler.UploadCertificate(rec, certificateRequest(t, mentor.ID, mentorUserID, "malware.exe"))

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rec.Code)
	}
}

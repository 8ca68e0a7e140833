package collaboration

import (
	"encoding/json"
	"fmt"
	"log"
	"time"

	"github.com/mentorlink/MentorLink-server/cmd/models"
	expo "github.com/oliveroneill/exponent-server-sdk-golang/sdk"
	"gorm.io/gorm"
)

// Notifier pushes best-effort collaboration events to a user's registered
// devices. Failures are logged, never surfaced to the request that
// triggered them.
type Notifier struct {
	db         *gorm.DB
	expoClient *expo.PushClient
}

func NewNotifier(db *gorm.DB) *Notifier {
	return &Notifier{
		db:         db,
		expoClient: expo.NewPushClient(nil),
	}
}

func (n *Notifier) NotifyUser(userID uint, title, body string, data map[string]interface{}) {
	userKey := fmt.Sprintf("%d", userID)

	var devices []models.Device
	if err := n.db.Where("user_id = ?", userKey).Find(&devices).Error; err != nil {
		log.Printf("Error loading devices for user %s: %v", userKey, err)
		return
	}
	if len(devices) == 0 {
		return
	}

	var tokens []expo.ExponentPushToken
	for _, device := range devices {
		token, err := expo.NewExponentPushToken(device.Token)
		if err != nil {
			log.Printf("Invalid push token for user %s: %v", userKey, err)
			continue
		}
		tokens = append(tokens, token)
	}
	if len(tokens) == 0 {
		return
	}

	stringData := make(map[string]string, len(data))
	for key, value := range data {
		stringData[key] = fmt.Sprintf("%v", value)
	}

	status := "sent"
	_, err := n.expoClient.Publish(&expo.PushMessage{
		To:       tokens,
		Title:    title,
		Body:     body,
		Sound:    "default",
		Priority: expo.DefaultPriority,
		Data:     stringData,
	})
	if err != nil {
		log.Printf("Error pushing notification to user %s: %v", userKey, err)
		status = "failed"
	}

	dataJSON, _ := json.Marshal(data)
	history := models.NotificationHistory{
		UserID: userKey,
		Title:  title,
		Body:   body,
		Data:   string(dataJSON),
		Status: status,
		SentAt: time.Now(),
	}
	if err := n.db.Create(&history).Error; err != nil {
		log.Printf("Error recording notification history: %v", err)
	}
}

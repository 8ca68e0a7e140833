package api

import (
	"log"
	"net/http"

	"github.com/gorilla/handlers"
	"github.com/gorilla/mux"
	"github.com/mentorlink/MentorLink-server/service/chat"
	"github.com/mentorlink/MentorLink-server/service/collaboration"
	"github.com/mentorlink/MentorLink-server/service/dashboard"
	"github.com/mentorlink/MentorLink-server/service/feedback"
	"github.com/mentorlink/MentorLink-server/service/group"
	"github.com/mentorlink/MentorLink-server/service/mentorship"
	"github.com/mentorlink/MentorLink-server/service/notifications"
	"github.com/mentorlink/MentorLink-server/service/transactions"
	"github.com/mentorlink/MentorLink-server/service/user"
	"gorm.io/gorm"
)

type APIServer struct {
	address string
	db      *gorm.DB
}

func NewApiServer(address string, db *gorm.DB) *APIServer {
	return &APIServer{
		address: address,
		db:      db,
	}
}

func (s *APIServer) Run() error {
	router := mux.NewRouter()
	subrouter := router.PathPrefix("/api/v1").Subrouter()

	notifier := collaboration.NewNotifier(s.db)

	userHandler := user.NewHandler(s.db)
	userHandler.RegisterRoutes(subrouter)

	mentorshipHandler := mentorship.NewHandler(s.db, notifier)
	mentorshipHandler.RegisterRoutes(subrouter)

	collaborationHandler := collaboration.NewCollaborationHandler(s.db)
	collaborationHandler.RegisterRoutes(subrouter)

	groupHandler := group.NewHandler(s.db, notifier)
	groupHandler.RegisterRoutes(subrouter)

	feedbackHandler := feedback.NewHandler(s.db)
	feedbackHandler.RegisterRoutes(subrouter)

	transactionHandler := transactions.NewTransactionHandler(s.db)
	transactionHandler.RegisterRoutes(subrouter)

	dashboardHandler := dashboard.NewDashboardHandler(s.db)
	dashboardHandler.RegisterRoutes(subrouter)

	notificationHandler := notifications.NewNotificationHandler(s.db)
	notificationHandler.RegisterRoutes(subrouter)

	hub := chat.NewHub(s.db)
	go hub.Run()
	chatHandler := chat.NewHandler(s.db, hub)
	chatHandler.RegisterRoutes(subrouter)

	corsHandler := handlers.CORS(
		handlers.AllowedOrigins([]string{"*"}),
		handlers.AllowedMethods([]string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"}),
		handlers.AllowedHeaders([]string{"Content-Type", "Authorization"}),
	)(router)

	log.Println("Server running at", s.address)
	return http.ListenAndServe(s.address, corsHandler)
}

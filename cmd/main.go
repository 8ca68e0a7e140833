package main

import (
	"fmt"
	"log"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/mentorlink/MentorLink-server/cmd/api"
	"github.com/mentorlink/MentorLink-server/cmd/models"
	"github.com/mentorlink/MentorLink-server/cmd/utils"
	"github.com/mentorlink/MentorLink-server/db"
	"gorm.io/gorm"
)

func main() {
	if len(os.Args) > 1 {
		switch os.Args[1] {
		case "migrate":
			runMigrations()
			return
		case "clear-db":
			runDatabaseClear()
			return
		default:
			log.Fatalf("Unknown command: %s", os.Args[1])
		}
	}

	startServer()
}

func runMigrations() {
	DB, err := db.NewPSQLStorage()
	if err != nil {
		log.Fatalf("Database initialization error: %v", err)
	}
	defer func() {
		sqlDB, _ := DB.DB()
		sqlDB.Close()
		log.Println("Database connection closed")
	}()
	log.Println("Connected to the database for migrations")

	if err := performMigrations(DB); err != nil {
		log.Fatalf("Migration error: %v", err)
	}
	log.Println("Migrations completed successfully")
}

// migrationOrder lists models parent-first so foreign keys resolve.
var migrationOrder = []struct {
	model interface{}
	name  string
}{
	{&models.User{}, "User"},
	{&models.Mentor{}, "Mentor"},
	{&models.CertificationFile{}, "CertificationFile"},
	{&models.PasswordResetToken{}, "PasswordResetToken"},
	{&models.MentorshipRequest{}, "MentorshipRequest"},
	{&models.Collaboration{}, "Collaboration"},
	{&models.UnavailabilityRequest{}, "UnavailabilityRequest"},
	{&models.UnavailableDate{}, "UnavailableDate"},
	{&models.SlotChangeRequest{}, "SlotChangeRequest"},
	{&models.SlotChange{}, "SlotChange"},
	{&models.Group{}, "Group"},
	{&models.GroupMember{}, "GroupMember"},
	{&models.GroupJoinRequest{}, "GroupJoinRequest"},
	{&models.Message{}, "Message"},
	{&models.Feedback{}, "Feedback"},
	{&models.Transaction{}, "Transaction"},
	{&models.Device{}, "Device"},
	{&models.NotificationHistory{}, "NotificationHistory"},
}

func performMigrations(DB *gorm.DB) error {
	log.Println("Starting database migrations...")
	for _, entry := range migrationOrder {
		log.Printf("Migrating %s table...", entry.name)
		if err := DB.AutoMigrate(entry.model); err != nil {
			return fmt.Errorf("error migrating %s table: %w", entry.name, err)
		}
	}

	directories := []string{
		utils.ProfilePicPath,
		utils.CertificatePath,
	}

	for _, dir := range directories {
		if err := createDirectoryIfNotExist(dir); err != nil {
			log.Fatalf("Error creating directory %s: %v", dir, err)
		}
		log.Printf("Directory %s created/verified", dir)
	}

	log.Println("All migrations and directory setup completed successfully")
	return nil
}

func createDirectoryIfNotExist(path string) error {
	if _, err := os.Stat(path); os.IsNotExist(err) {
		if err := os.MkdirAll(path, 0755); err != nil {
			return fmt.Errorf("could not create directory %s: %w", path, err)
		}
	}
	return nil
}

func startServer() {
	DB, err := db.NewPSQLStorage()
	if err != nil {
		log.Fatalf("Database initialization error: %v", err)
	}
	defer func() {
		sqlDB, _ := DB.DB()
		sqlDB.Close()
		log.Println("Database connection closed")
	}()
	log.Println("Connected to the database")

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)

	port := os.Getenv("SERVER_PORT")
	if port == "" {
		port = "8080"
	}
	server := api.NewApiServer(":"+port, DB)

	go func() {
		if err := server.Run(); err != nil {
			log.Fatalf("Server error: %v", err)
		}
	}()
	log.Printf("Server running on port %s", port)

	<-quit
	log.Println("Shutting down server...")
}

func clearDatabase(DB *gorm.DB, tables []interface{}) error {
	if len(tables) == 0 {
		// Default: drop everything, children before parents.
		for i := len(migrationOrder) - 1; i >= 0; i-- {
			tables = append(tables, migrationOrder[i].model)
		}
	}

	log.Println("Dropping tables...")

	for _, table := range tables {
		if err := DB.Migrator().DropTable(table); err != nil {
			log.Printf("Warning dropping table %T: %v", table, err)
		} else {
			log.Printf("Table %T dropped", table)
		}
	}

	return nil
}

func runDatabaseClear() {
	DB, err := db.NewPSQLStorage()
	if err != nil {
		log.Fatalf("Database initialization error: %v", err)
	}
	defer func() {
		sqlDB, _ := DB.DB()
		sqlDB.Close()
		log.Println("Database connection closed")
	}()

	log.Println("Preparing to clear database...")

	var confirmation string
	fmt.Print("Are you sure you want to clear the database? (yes/no): ")
	fmt.Scanln(&confirmation)

	if confirmation != "yes" {
		log.Println("Database clearing cancelled.")
		return
	}

	var tableNames string
	fmt.Print("Enter table names to clear (comma separated) or leave blank to clear all: ")
	fmt.Scanln(&tableNames)

	var tables []interface{}
	if tableNames != "" {
		byName := make(map[string]interface{}, len(migrationOrder))
		for _, entry := range migrationOrder {
			byName[entry.name] = entry.model
		}
		for _, name := range splitTableNames(tableNames) {
			name = strings.TrimSpace(name)
			if model, ok := byName[name]; ok {
				tables = append(tables, model)
			} else {
				log.Printf("Unknown table: %s", name)
			}
		}
	}

	if err := clearDatabase(DB, tables); err != nil {
		log.Fatalf("Error clearing database: %v", err)
	}

	log.Println("Database cleared successfully")
}

func splitTableNames(tableNames string) []string {
	return strings.Split(tableNames, ",")
}

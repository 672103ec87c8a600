package main

import (
	"flag"
	"fmt"
	"log"
	"os"
	"strings"

	"golang.org/x/crypto/bcrypt"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"

	"vtube/models"
)

// Admin helper: create a user directly in the database, bypassing the
// HTTP registration flow (no avatar upload).
func main() {
	fullName := flag.String("full-name", "", "display name")
	email := flag.String("email", "", "email (lowercased)")
	username := flag.String("username", "", "username (lowercased)")
	password := flag.String("password", "", "plaintext password (min 6 chars)")
	flag.Parse()

	if *fullName == "" || *email == "" || *username == "" || *password == "" {
		fmt.Println("usage: create_user --full-name NAME --email E --username U --password P")
		os.Exit(2)
	}
	if len(*password) < 6 {
		log.Fatal("password too short (min 6)")
	}

	dsn := os.Getenv("DB_DSN")
	if strings.TrimSpace(dsn) == "" {
		log.Fatal("DB_DSN not set in environment")
	}
	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{})
	if err != nil {
		log.Fatalf("failed to open db: %v", err)
	}

	em := strings.ToLower(strings.TrimSpace(*email))
	un := strings.ToLower(strings.TrimSpace(*username))

	var existing models.User
	if err := db.Where("email = ? OR username = ?", em, un).First(&existing).Error; err == nil {
		fmt.Printf("user already exists (id=%d)\n", existing.ID)
		os.Exit(0)
	}

	hpw, err := bcrypt.GenerateFromPassword([]byte(*password), bcrypt.DefaultCost)
	if err != nil {
		log.Fatalf("bcrypt failed: %v", err)
	}
	user := models.User{FullName: *fullName, Email: em, Username: un, HashedPassword: hpw}
	if err := db.Create(&user).Error; err != nil {
		log.Fatalf("failed to create user: %v", err)
	}
	fmt.Printf("created user %s id=%d\n", un, user.ID)
}

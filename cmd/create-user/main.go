package main

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"strings"
	"syscall"

	"github.com/google/uuid"
	"github.com/stemsi/provex-backend/internal/config"
	"github.com/stemsi/provex-backend/internal/database"
	"github.com/stemsi/provex-backend/internal/logger"
	"github.com/stemsi/provex-backend/internal/model"
	"github.com/stemsi/provex-backend/internal/store/postgres"
	"golang.org/x/crypto/bcrypt"
	"golang.org/x/term"
)

func main() {
	// ─── Load Configuration ────────────────────────────────────────────
	cfg := config.Load()

	// ─── Initialize Logger ─────────────────────────────────────────────
	log := logger.Setup(cfg.LogLevel, cfg.LogFormat)

	ctx := context.Background()

	// ─── Connect to PostgreSQL ─────────────────────────────────────────
	pool, err := database.NewPostgresPool(ctx, cfg, log)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to connect to PostgreSQL")
	}
	defer pool.Close()

	userStore := postgres.NewUserStore(pool)

	// ─── CLI Input ─────────────────────────────────────────────────────
	reader := bufio.NewReader(os.Stdin)

	fmt.Println("=== Create New User ===")

	// Name
	fmt.Print("Enter Name: ")
	name, _ := reader.ReadString('\n')
	name = strings.TrimSpace(name)
	if name == "" {
		fmt.Println("Error: Name is required")
		return
	}

	// Email
	fmt.Print("Enter Email: ")
	email, _ := reader.ReadString('\n')
	email = strings.TrimSpace(email)
	if email == "" {
		fmt.Println("Error: Email is required")
		return
	}

	// Password
	fmt.Print("Enter Password: ")
	bytePassword, err := term.ReadPassword(int(syscall.Stdin))
	if err != nil {
		fmt.Println("\nError reading password")
		return
	}
	password := string(bytePassword)
	fmt.Println() // Newline after password input
	if len(password) < 6 {
		fmt.Println("Error: Password must be at least 6 characters")
		return
	}

	// Role
	fmt.Print("Enter Role (student/proctor/admin, default student): ")
	roleStr, _ := reader.ReadString('\n')
	role := model.Role(strings.TrimSpace(roleStr))
	if role == "" {
		role = model.RoleStudent
	}
	switch role {
	case model.RoleStudent, model.RoleProctor, model.RoleAdmin:
	default:
		fmt.Println("Error: Role must be student, proctor or admin")
		return
	}

	// Category
	fmt.Print("Enter Category ID (uuid, blank for random): ")
	categoryStr, _ := reader.ReadString('\n')
	categoryStr = strings.TrimSpace(categoryStr)
	categoryID := uuid.New()
	if categoryStr != "" {
		parsed, err := uuid.Parse(categoryStr)
		if err != nil {
			fmt.Println("Error: Category ID must be a valid UUID")
			return
		}
		categoryID = parsed
	}

	// ─── Logic ─────────────────────────────────────────────────────────

	// Hash Password
	hashedPassword, err := bcrypt.GenerateFromPassword([]byte(password), cfg.BcryptCost)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to hash password")
	}

	newUser := &model.User{
		Name:         name,
		Email:        email,
		PasswordHash: string(hashedPassword),
		CategoryID:   categoryID,
		Role:         role,
	}

	if err := userStore.CreateUser(ctx, newUser); err != nil {
		log.Fatal().Err(err).Msg("Failed to create user")
	}

	fmt.Printf("User created: %s (%s, role %s)\n", newUser.ID, newUser.Email, newUser.Role)
}

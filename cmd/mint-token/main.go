package main

import (
	"bufio"
	"fmt"
	"os"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/stemsi/hello-pdf-submission/internal/config"
	"github.com/stemsi/hello-pdf-submission/internal/logger"
	"github.com/stemsi/hello-pdf-submission/internal/model"
	"github.com/stemsi/hello-pdf-submission/internal/service"
	"golang.org/x/term"
)

// mint-token issues development tokens with the claims the host would
// normally send, so the block can be exercised without a learning platform.
func main() {
	// ─── Load Configuration ────────────────────────────────────────────
	cfg := config.Load()

	// ─── Initialize Logger ─────────────────────────────────────────────
	log := logger.Setup(cfg.LogLevel, cfg.LogFormat)

	// ─── CLI Input ─────────────────────────────────────────────────────
	reader := bufio.NewReader(os.Stdin)

	fmt.Println("=== Mint Development Token ===")

	// Signing secret
	if os.Getenv("JWT_SECRET") == "" {
		fmt.Print("Enter JWT secret: ")
		byteSecret, err := term.ReadPassword(int(syscall.Stdin))
		fmt.Println() // Newline after secret input
		if err != nil {
			fmt.Println("Error reading secret")
			return
		}
		if len(byteSecret) == 0 {
			fmt.Println("Error: Secret is required")
			return
		}
		cfg.JWTSecret = string(byteSecret)
	}

	// Token type
	fmt.Print("Token type [learner/author] (default learner): ")
	typeStr := prompt(reader)
	tokenType := service.TokenTypeLearner
	switch typeStr {
	case "", "learner":
	case "author":
		tokenType = service.TokenTypeAuthor
	default:
		fmt.Printf("Error: Unknown token type %q\n", typeStr)
		return
	}

	// Subject
	fmt.Print("Enter user id: ")
	subject := prompt(reader)
	if subject == "" {
		fmt.Println("Error: User id is required")
		return
	}

	// Course
	fmt.Print("Enter course id: ")
	courseID := prompt(reader)

	// Permissions
	var permissions []string
	if tokenType == service.TokenTypeAuthor {
		fmt.Printf("Permissions, comma separated (default %s): ", joinPermissions(model.AllPermissions))
		permissions = parsePermissions(prompt(reader))
		if permissions == nil {
			permissions = toStrings(model.AllPermissions)
		}
	}

	// Expiry
	fmt.Printf("Expiry in hours (default %d): ", int(cfg.JWTExpiry.Hours()))
	if hoursStr := prompt(reader); hoursStr != "" {
		hours, err := strconv.Atoi(hoursStr)
		if err != nil || hours <= 0 {
			fmt.Println("Error: Expiry must be a positive number")
			return
		}
		cfg.JWTExpiry = time.Duration(hours) * time.Hour
	}

	// ─── Logic ─────────────────────────────────────────────────────────
	token, err := service.NewAuthService(cfg).GenerateToken(tokenType, subject, courseID, permissions)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to mint token")
	}

	fmt.Printf("\n%s token for '%s', valid %s:\n%s\n", tokenType, subject, cfg.JWTExpiry, token)
}

func prompt(reader *bufio.Reader) string {
	line, _ := reader.ReadString('\n')
	return strings.TrimSpace(line)
}

// parsePermissions keeps only known permission codes. Returns nil on empty input.
func parsePermissions(raw string) []string {
	if raw == "" {
		return nil
	}
	known := make(map[string]bool, len(model.AllPermissions))
	for _, p := range model.AllPermissions {
		known[string(p)] = true
	}

	out := []string{}
	for _, p := range strings.Split(raw, ",") {
		p = strings.TrimSpace(p)
		if known[p] {
			out = append(out, p)
		} else if p != "" {
			fmt.Printf("Warning: ignoring unknown permission %q\n", p)
		}
	}
	return out
}

func toStrings(perms []model.Permission) []string {
	out := make([]string, len(perms))
	for i, p := range perms {
		out[i] = string(p)
	}
	return out
}

func joinPermissions(perms []model.Permission) string {
	return strings.Join(toStrings(perms), ",")
}

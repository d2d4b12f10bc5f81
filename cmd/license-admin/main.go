package main

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"emailbot-backend/config"
	"emailbot-backend/internal/database"
	"emailbot-backend/internal/license"
)

func main() {
	fmt.Println("========================================")
	fmt.Println(" License Administration Tool")
	fmt.Println("========================================")
	fmt.Println()

	cfg, err := config.LoadConfig(os.Getenv("CONFIG_FILE"))
	if err != nil {
		// The CLI only needs the database section, a missing JWT secret is fine
		cfg = &config.Config{}
		if os.Getenv("DB_HOST") == "" {
			fmt.Println("Warning: no configuration found, using database defaults")
		}
	}

	db, err := database.NewDB(database.Config{
		Host:     envOr("DB_HOST", cfg.DatabaseConfig.Host, "localhost"),
		Port:     envOrInt("DB_PORT", cfg.DatabaseConfig.Port, 5432),
		User:     envOr("DB_USER", cfg.DatabaseConfig.User, "emailbot"),
		Password: envOr("DB_PASSWORD", cfg.DatabaseConfig.Password, ""),
		Database: envOr("DB_NAME", cfg.DatabaseConfig.Database, "emailbot"),
		SSLMode:  envOr("DB_SSLMODE", cfg.DatabaseConfig.SSLMode, "disable"),
	})
	if err != nil {
		fmt.Printf("Failed to connect to database: %v\n", err)
		os.Exit(1)
	}
	defer db.Close()

	repo := database.NewRepository(db)
	svc := license.NewService(repo)
	reader := bufio.NewReader(os.Stdin)

	for {
		fmt.Println("\nOptions:")
		fmt.Println("  1. Issue single license")
		fmt.Println("  2. Issue batch of licenses")
		fmt.Println("  3. List licenses")
		fmt.Println("  4. Revoke a license")
		fmt.Println("  5. Exit")
		fmt.Print("\nSelect option: ")

		input, _ := reader.ReadString('\n')
		input = strings.TrimSpace(input)

		switch input {
		case "1":
			issueSingle(svc, reader)
		case "2":
			issueBatch(svc, reader)
		case "3":
			listLicenses(svc)
		case "4":
			revokeLicense(svc, reader)
		case "5":
			fmt.Println("Goodbye!")
			os.Exit(0)
		default:
			fmt.Println("Invalid option")
		}
	}
}

func promptCreateRequest(reader *bufio.Reader) license.CreateRequest {
	req := license.CreateRequest{MaxActivations: 1}

	fmt.Print("Max activations (default 1): ")
	if n, err := strconv.Atoi(readLine(reader)); err == nil && n > 0 {
		req.MaxActivations = n
	}

	fmt.Print("Validity in days (empty for no expiry): ")
	if days, err := strconv.Atoi(readLine(reader)); err == nil && days > 0 {
		expires := time.Now().AddDate(0, 0, days)
		req.ExpiresAt = &expires
	}

	fmt.Print("Notes (optional): ")
	if notes := readLine(reader); notes != "" {
		req.Notes = notes
	}

	return req
}

func issueSingle(svc *license.Service, reader *bufio.Reader) {
	fmt.Println("\n--- Issue License ---")

	req := promptCreateRequest(reader)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	lic, err := svc.Create(ctx, req, "")
	if err != nil {
		fmt.Printf("Failed to issue license: %v\n", err)
		return
	}

	fmt.Println("\n========================================")
	fmt.Printf("  License Key:     %s\n", lic.LicenseKey)
	fmt.Printf("  Max Activations: %d\n", lic.MaxActivations)
	if lic.ExpiresAt != nil {
		fmt.Printf("  Expires:         %s\n", lic.ExpiresAt.Format("2006-01-02"))
	} else {
		fmt.Printf("  Expires:         never\n")
	}
	fmt.Println("========================================")

	fmt.Print("\nSave to file? (y/n): ")
	if strings.ToLower(readLine(reader)) == "y" {
		filename := fmt.Sprintf("license_%s.txt", time.Now().Format("20060102_150405"))
		content := fmt.Sprintf("License Key: %s\nMax Activations: %d\nIssued: %s\n",
			lic.LicenseKey, lic.MaxActivations, time.Now().Format("2006-01-02 15:04:05"))
		os.WriteFile(filename, []byte(content), 0644)
		fmt.Printf("Saved to: %s\n", filename)
	}
}

func issueBatch(svc *license.Service, reader *bufio.Reader) {
	fmt.Println("\n--- Issue Batch of Licenses ---")

	fmt.Print("How many licenses to issue? ")
	count, err := strconv.Atoi(readLine(reader))
	if err != nil || count < 1 || count > 100 {
		fmt.Println("Invalid count (1-100)")
		return
	}

	req := promptCreateRequest(reader)

	ctx, cancel := context.WithTimeout(context.Background(), 60*time.Second)
	defer cancel()

	fmt.Printf("\nIssuing %d licenses...\n", count)
	fmt.Println("========================================")

	keys := make([]string, 0, count)
	for i := 0; i < count; i++ {
		lic, err := svc.Create(ctx, req, "")
		if err != nil {
			fmt.Printf("  %d. FAILED: %v\n", i+1, err)
			continue
		}
		keys = append(keys, lic.LicenseKey)
		fmt.Printf("  %d. %s\n", i+1, lic.LicenseKey)
	}
	fmt.Println("========================================")

	if len(keys) == 0 {
		return
	}

	filename := fmt.Sprintf("licenses_%s.txt", time.Now().Format("20060102_150405"))
	var content strings.Builder
	content.WriteString(fmt.Sprintf("# License Keys\n# Issued: %s\n# Count: %d\n\n",
		time.Now().Format("2006-01-02 15:04:05"), len(keys)))
	for i, key := range keys {
		content.WriteString(fmt.Sprintf("%d. %s\n", i+1, key))
	}
	os.WriteFile(filename, []byte(content.String()), 0644)
	fmt.Printf("\nSaved to: %s\n", filename)
}

func listLicenses(svc *license.Service) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	licenses, err := svc.List(ctx)
	if err != nil {
		fmt.Printf("Failed to list licenses: %v\n", err)
		return
	}

	fmt.Println("\n========================================")
	fmt.Printf(" %d license(s)\n", len(licenses))
	fmt.Println("========================================")
	for _, lic := range licenses {
		status := "active"
		if !lic.IsActive {
			status = "revoked"
		}
		expiry := "never"
		if lic.ExpiresAt != nil {
			expiry = lic.ExpiresAt.Format("2006-01-02")
		}
		fmt.Printf("  %s  %s  %d/%d slots  expires %s\n",
			lic.LicenseKey, status, lic.ActiveActivations, lic.MaxActivations, expiry)
	}
}

func revokeLicense(svc *license.Service, reader *bufio.Reader) {
	fmt.Println("\n--- Revoke License ---")
	fmt.Print("Enter license key or ID: ")

	id := readLine(reader)
	if id == "" {
		fmt.Println("Nothing given")
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	// Operators usually paste the key, not the row ID
	if license.KeyPattern.MatchString(license.NormalizeKey(id)) {
		lic, err := svc.GetByKey(ctx, id)
		if err != nil {
			fmt.Printf("Failed to look up license: %v\n", err)
			return
		}
		id = lic.ID
	}

	if err := svc.Revoke(ctx, id); err != nil {
		fmt.Printf("Failed to revoke: %v\n", err)
		return
	}

	fmt.Println("License revoked")
}

func readLine(reader *bufio.Reader) string {
	line, _ := reader.ReadString('\n')
	return strings.TrimSpace(line)
}

func envOr(key, fromConfig, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	if fromConfig != "" {
		return fromConfig
	}
	return fallback
}

func envOrInt(key string, fromConfig, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	if fromConfig != 0 {
		return fromConfig
	}
	return fallback
}

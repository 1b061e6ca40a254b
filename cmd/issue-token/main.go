package main

import (
	"bufio"
	"flag"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"golang.org/x/term"

	"github.com/stemsi/exstem-proctor/internal/config"
	"github.com/stemsi/exstem-proctor/internal/logger"
	"github.com/stemsi/exstem-proctor/internal/model"
	"github.com/stemsi/exstem-proctor/internal/service"
)

// issue-token signs a bearer token the server will accept. Identity lives
// outside this service, so this is how operators and test rigs get one.
func main() {
	cfg := config.Load()
	log := logger.Setup(cfg.LogLevel, cfg.LogFormat)

	kind := flag.String("type", "", "token type: candidate or admin")
	id := flag.Int("id", 0, "candidate or admin ID")
	perms := flag.String("perms", "", "comma-separated admin permissions, or \"all\"")
	ttl := flag.Duration("ttl", cfg.JWTExpiry, "token lifetime")
	askSecret := flag.Bool("ask-secret", false, "read the signing secret from the terminal instead of JWT_SECRET")
	flag.Parse()

	interactive := term.IsTerminal(int(os.Stdin.Fd()))
	reader := bufio.NewReader(os.Stdin)

	// ─── Input ─────────────────────────────────────────────────────────
	if *kind == "" && interactive {
		*kind = prompt(reader, "Token type (candidate/admin, default candidate): ")
	}
	if *kind == "" {
		*kind = string(service.TokenTypeCandidate)
	}

	if *id <= 0 && interactive {
		raw := prompt(reader, "User ID: ")
		n, err := strconv.Atoi(raw)
		if err != nil {
			fmt.Fprintln(os.Stderr, "Error: User ID must be a number")
			os.Exit(2)
		}
		*id = n
	}
	if *id <= 0 {
		fmt.Fprintln(os.Stderr, "Error: -id must be a positive number")
		os.Exit(2)
	}

	secret := cfg.JWTSecret
	if *askSecret {
		if !interactive {
			fmt.Fprintln(os.Stderr, "Error: -ask-secret needs a terminal")
			os.Exit(2)
		}
		fmt.Fprint(os.Stderr, "Signing secret: ")
		raw, err := term.ReadPassword(int(os.Stdin.Fd()))
		fmt.Fprintln(os.Stderr)
		if err != nil {
			log.Fatal().Err(err).Msg("Failed to read secret")
		}
		secret = strings.TrimSpace(string(raw))
		if secret == "" {
			fmt.Fprintln(os.Stderr, "Error: secret is empty")
			os.Exit(2)
		}
	}

	auth := service.NewAuthService(secret, *ttl)

	// ─── Sign ──────────────────────────────────────────────────────────
	var (
		token string
		err   error
	)
	switch service.TokenType(*kind) {
	case service.TokenTypeCandidate:
		token, err = auth.GenerateCandidateToken(*id)
	case service.TokenTypeAdmin:
		if *perms == "" && interactive {
			*perms = prompt(reader, "Permissions (comma-separated or \"all\"): ")
		}
		granted, unknown := resolvePermissions(*perms)
		if len(unknown) > 0 {
			fmt.Fprintf(os.Stderr, "Error: unknown permissions: %s\n", strings.Join(unknown, ", "))
			os.Exit(2)
		}
		if len(granted) == 0 {
			fmt.Fprintln(os.Stderr, "Error: an admin token needs at least one permission")
			os.Exit(2)
		}
		token, err = auth.GenerateAdminToken(*id, granted)
	default:
		fmt.Fprintf(os.Stderr, "Error: unknown token type %q\n", *kind)
		os.Exit(2)
	}
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to sign token")
	}

	log.Debug().
		Str("type", *kind).
		Int("user_id", *id).
		Time("expires_at", time.Now().Add(*ttl)).
		Msg("Token issued")
	fmt.Println(token)
}

func prompt(r *bufio.Reader, label string) string {
	fmt.Fprint(os.Stderr, label)
	line, _ := r.ReadString('\n')
	return strings.TrimSpace(line)
}

func resolvePermissions(raw string) ([]model.Permission, []string) {
	if strings.TrimSpace(raw) == "all" {
		return model.AllPermissions, nil
	}
	var parts []string
	for _, p := range strings.Split(raw, ",") {
		if p = strings.TrimSpace(p); p != "" {
			parts = append(parts, p)
		}
	}
	return model.ParsePermissions(parts)
}

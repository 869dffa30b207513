// ABOUTME: Mints signed user tokens with the server's JWT secret
// ABOUTME: Stands in for an external identity provider during development

package main

import (
	"errors"
	"flag"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/2389/tasksync/internal/auth"
	"github.com/2389/tasksync/internal/config"
)

func runToken(args []string) error {
	fs := flag.NewFlagSet("token", flag.ContinueOnError)
	sub := fs.String("sub", "", "principal id (default: a random UUID)")
	email := fs.String("email", "", "email claim")
	name := fs.String("name", "", "display name (user_metadata.full_name)")
	avatar := fs.String("avatar", "", "avatar URL (user_metadata.avatar_url)")
	ttl := fs.Duration("ttl", 30*24*time.Hour, "token lifetime")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if fs.NArg() > 0 {
		return fmt.Errorf("unexpected argument: %s", fs.Arg(0))
	}
	if *ttl <= 0 {
		return errors.New("--ttl must be positive")
	}

	cfg, err := config.Load(config.ServerPath())
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}
	signer, err := auth.NewJWTVerifier([]byte(cfg.Auth.JWTSecret))
	if err != nil {
		return fmt.Errorf("creating JWT signer: %w", err)
	}

	subject := strings.TrimSpace(*sub)
	if subject == "" {
		subject = uuid.NewString()
	}

	claims := auth.Claims{
		Email: *email,
		UserMetadata: auth.UserMetadata{
			FullName:  strings.TrimSpace(*name),
			AvatarURL: *avatar,
		},
	}
	claims.Subject = subject

	token, err := signer.Generate(claims, *ttl)
	if err != nil {
		return fmt.Errorf("generating token: %w", err)
	}

	fmt.Fprintf(os.Stderr, "principal %s, expires %s\n", subject, time.Now().Add(*ttl).UTC().Format("Jan 02, 2006"))
	fmt.Println(token)
	return nil
}

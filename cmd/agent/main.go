package main

import (
	"bufio"
	"context"
	"fmt"
	"log"
	"log/slog"
	"os"
	"strings"

	"golang.org/x/term"

	"github.com/mpetrenko/homeledger/internal/client/app"
	"github.com/mpetrenko/homeledger/internal/client/config"
	"github.com/mpetrenko/homeledger/internal/logging"
)

func main() {
	ctx := context.Background()

	cfg := config.LoadConfig()
	logger := logging.NewSlogLogger(slog.New(slog.NewJSONHandler(os.Stdout, nil)))

	a, err := app.NewApp(ctx, cfg, logger)
	if err != nil {
		log.Printf("%v", err)
		return
	}

	restored, err := a.RestoreSession(ctx)
	if err != nil {
		log.Printf("error restoring session: %v", err)
		return
	}
	if !restored {
		username, password, err := promptCredentials()
		if err != nil {
			log.Printf("error reading credentials: %v", err)
			return
		}
		if err := a.Login(ctx, username, password); err != nil {
			log.Printf("%v", err)
			return
		}
	}

	if err := a.Run(ctx); err != nil {
		log.Printf("%v", err)
	}
}

func promptCredentials() (string, string, error) {
	fmt.Print("Username: ")
	reader := bufio.NewReader(os.Stdin)
	username, err := reader.ReadString('\n')
	if err != nil {
		return "", "", err
	}

	fmt.Print("Password: ")
	password, err := term.ReadPassword(int(os.Stdin.Fd()))
	fmt.Println()
	if err != nil {
		return "", "", err
	}

	return strings.TrimSpace(username), string(password), nil
}

package main

import (
	"flag"
	"fmt"
	"os"

	"github.com/aktraiser/X-me/internal/client"
	"github.com/aktraiser/X-me/internal/domain"
	"github.com/aktraiser/X-me/internal/tui"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/joho/godotenv"
)

func main() {
	_ = godotenv.Load()

	var (
		server    string
		apiKey    string
		focusMode string
		mode      string
	)
	flag.StringVar(&server, "server", envOr("XME_SERVER_URL", "http://localhost:3001"), "X-me server URL")
	flag.StringVar(&apiKey, "api-key", os.Getenv("XME_ADMIN_API_KEY"), "API key sent with every request")
	flag.StringVar(&focusMode, "focus", domain.FocusWebSearch, "Focus mode: webSearch, marketResearch or uploads")
	flag.StringVar(&mode, "mode", domain.ModeBalanced, "Optimization mode: speed, balanced or quality")
	flag.Parse()

	model := tui.New(client.New(server, apiKey), focusMode, mode)
	if _, err := tea.NewProgram(model, tea.WithAltScreen()).Run(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

// FilePath: cmd/osemd/main.go
package main

import (
	"fmt"
	"log"
	"os"

	tm "github.com/buger/goterm"
	nuts "github.com/vaudience/go-nuts"

	"github.com/opensensemap/osem/internal/config"
	"github.com/opensensemap/osem/internal/server"
)

func main() {
	// Clear console and draw logo
	ClearConsole()
	DrawLogo()
	// Initialize version info
	nuts.InitVersion()
	nuts.L.Infof("[Main] Starting openSenseMap API Server v%s", nuts.GetVersion())

	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	// Create and start server
	srv := server.New(cfg)
	if err := srv.Start(); err != nil {
		nuts.L.Errorf("[Main] Server error: %v", err)
		os.Exit(1)
	}
}

// ClearConsole clears the console screen and draws the logo.
func ClearConsole() {
	tm.Clear()
	tm.MoveCursor(1, 1)
	tm.Flush()
}

func DrawLogo() {
	fmt.Println()
	lines := []string{
		"                        _____                      __  ___            ",
		"  ____  ____  ___  ____/ ___/___  ____  ________  /  |/  /___ _____   ",
		" / __ \\/ __ \\/ _ \\/ __ \\__ \\/ _ \\/ __ \\/ ___/ _ \\/ /|_/ / __ `/ __ \\  ",
		"/ /_/ / /_/ /  __/ / / /_/ /  __/ / / (__  )  __/ /  / / /_/ / /_/ /  ",
		"\\____/ .___/\\___/_/ /_/____/\\___/_/ /_/____/\\___/_/  /_/\\__,_/ .___/  ",
		"    /_/                                                     /_/       ",
		".....................................................................  " + nuts.GetVersion(),
	}

	for _, line := range lines {
		fmt.Println(line)
	}
}

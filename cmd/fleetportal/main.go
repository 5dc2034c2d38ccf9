package main

import (
	"log"

	"fleetportal/internal/app"
)

func main() {
	if err := app.New().Run(); err != nil {
		log.Fatalf("❌ fleetportal failed to start: %v", err)
	}
}

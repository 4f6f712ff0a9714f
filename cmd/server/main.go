package main

import (
	"log"

	"github.com/vivektakcode/leave-tracker/internal/app/server"
)

func main() {
	if err := server.Run(); err != nil {
		log.Fatalf("server failed: %v", err)
	}
}

// main.go
//
// Minimal entry point that delegates CLI handling to the Cobra root command in cmd/root.go

package main

import (
	"github.com/joho/godotenv"

	"github.com/rvila94/ALASCA-sub001/cmd"
)

func main() {
	// Values already in the environment win over .env.
	_ = godotenv.Load()
	cmd.Execute()
}

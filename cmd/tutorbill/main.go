// Package main is the entry point for tutorbill, the tutoring billing and
// makeup-credit ledger.
package main

import (
	"github.com/joho/godotenv"
)

func main() {
	// A missing .env is normal outside local development.
	_ = godotenv.Load()
	Execute()
}

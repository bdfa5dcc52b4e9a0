package db

import "embed"

//go:embed migrations/*.sql
var Migrations embed.FS

//go:embed seed/*.json
var SeedFiles embed.FS

// PortfolioSeed returns the embedded portfolio dataset.
func PortfolioSeed() ([]byte, error) {
	return SeedFiles.ReadFile("seed/portfolio.json")
}

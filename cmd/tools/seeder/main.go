package main

import (
	"database/sql"
	"flag"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/joho/godotenv"
	_ "github.com/lib/pq"
	"github.com/shopspring/decimal"

	"github.com/noah-isme/gastro-rechner/internal/settings"
	"github.com/noah-isme/gastro-rechner/internal/settlement"
)

type demoEntry struct {
	Name       string
	TotalSales string
	SalesCash  string
	Received   bool
	Owner      string
	HoursAgo   int
}

var demoEntries = []demoEntry{
	{"Mia", "412.50", "180.00", true, "7", 9},
	{"Tom", "298.10", "64.20", false, "8", 8},
	{"Lena", "530.00", "310.40", true, "9", 7},
	{"Guest", "120.00", "120.00", false, "", 5},
	{"Mia", "88.90", "12.00", false, "7", 2},
}

func main() {
	withDemo := flag.Bool("demo", true, "insert demo submissions when the table is empty")
	flag.Parse()

	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, relying on environment variables")
	}

	dbURL := os.Getenv("DATABASE_URL")
	if dbURL == "" {
		log.Fatal("DATABASE_URL is not set")
	}

	db, err := sql.Open("postgres", dbURL)
	if err != nil {
		log.Fatalf("Failed to open DB: %v", err)
	}
	defer db.Close()

	if err := db.Ping(); err != nil {
		log.Fatalf("Failed to ping DB: %v", err)
	}

	defaults := seedSettings(db)
	if *withDemo {
		seedSubmissions(db, defaults)
	}

	log.Println("Seeding completed successfully!")
}

func seedSettings(db *sql.DB) settings.Settings {
	d := settings.Defaults()
	fmt.Println("Seeding settings...")
	_, err := db.Exec(`
		INSERT INTO settings (id, change_fund_amount, tip_factor_percent, flow_cash_toggle_enabled, default_color_scheme, updated_at)
		VALUES (1, $1, $2, $3, $4, now())
		ON CONFLICT (id) DO NOTHING;
	`, d.ChangeFundAmount.StringFixed(settlement.Places), d.TipFactorPercent.StringFixed(settlement.Places), d.FlowCashToggleEnabled, string(d.DefaultColorScheme))
	if err != nil {
		log.Fatalf("Failed to seed settings: %v", err)
	}
	return d
}

func seedSubmissions(db *sql.DB, cfg settings.Settings) {
	var existing int
	if err := db.QueryRow(`SELECT COUNT(*) FROM submissions`).Scan(&existing); err != nil {
		log.Fatalf("Failed to count submissions: %v", err)
	}
	if existing > 0 {
		log.Printf("Skipping demo submissions, %d rows present", existing)
		return
	}

	fmt.Println("Seeding submissions...")
	now := time.Now().UTC()
	for _, e := range demoEntries {
		total := decimal.RequireFromString(e.TotalSales)
		tip, err := settlement.ComputeTeamTip(total, cfg.TipFactorPercent)
		if err != nil {
			log.Printf("Failed to compute tip for %s: %v", e.Name, err)
			continue
		}
		var snapshot any
		if e.Received {
			snapshot = cfg.ChangeFundAmount.StringFixed(settlement.Places)
		}
		created := now.Add(-time.Duration(e.HoursAgo) * time.Hour)
		_, err = db.Exec(`
			INSERT INTO submissions (name, total_sales, sales_cash, team_tip, change_fund_received, change_fund_snapshot, owner_id, created_at, last_modified_at)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $8);
		`, e.Name, total.StringFixed(settlement.Places), decimal.RequireFromString(e.SalesCash).StringFixed(settlement.Places),
			tip.StringFixed(settlement.Places), e.Received, snapshot, e.Owner, created)
		if err != nil {
			log.Printf("Failed to seed submission for %s: %v", e.Name, err)
		}
	}
}

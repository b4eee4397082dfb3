package main

import (
	"database/sql"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"strings"

	_ "modernc.org/sqlite"

	"reagentbank.io/internal/ledger"
)

func openDB(path string) *sql.DB {
	if strings.TrimSpace(path) == "" {
		fmt.Fprintln(os.Stderr, "missing -db")
		os.Exit(2)
	}
	if _, err := os.Stat(path); err != nil {
		fmt.Fprintln(os.Stderr, "open:", err)
		os.Exit(1)
	}
	db, err := sql.Open("sqlite", "file:"+path+"?mode=ro")
	if err != nil {
		fmt.Fprintln(os.Stderr, "open:", err)
		os.Exit(1)
	}
	return db
}

type entryRow struct {
	Owner    string `json:"owner"`
	ItemID   uint32 `json:"item_id"`
	Category string `json:"category"`
	Quantity uint32 `json:"quantity"`
}

// entriesCmd dumps stored rows, optionally narrowed to one owner or category.
func entriesCmd(args []string) {
	fs := flag.NewFlagSet("entries", flag.ExitOnError)
	dbPath := fs.String("db", "./data/reagentbank.sqlite", "sqlite ledger path")
	account := fs.Uint64("account", 0, "account id (shared-mode owner)")
	character := fs.Uint64("character", 0, "character id (individual-mode owner)")
	category := fs.String("category", "", "category name filter")
	limit := fs.Int("limit", 100, "result limit")
	_ = fs.Parse(args)

	q := `SELECT account_id, character_id, item_id, category, quantity FROM reagent_bank WHERE 1=1`
	var qargs []any
	if *account != 0 {
		q += ` AND account_id=?`
		qargs = append(qargs, *account)
	}
	if *character != 0 {
		q += ` AND character_id=?`
		qargs = append(qargs, *character)
	}
	if s := strings.TrimSpace(*category); s != "" {
		c, err := ledger.ParseCategory(s)
		if err != nil {
			fmt.Fprintln(os.Stderr, "bad -category:", err)
			os.Exit(2)
		}
		q += ` AND category=?`
		qargs = append(qargs, uint8(c))
	}
	q += ` ORDER BY account_id, character_id, category, item_id`
	if *limit > 0 {
		q += ` LIMIT ?`
		qargs = append(qargs, *limit)
	}

	db := openDB(*dbPath)
	defer db.Close()
	rows, err := db.Query(q, qargs...)
	if err != nil {
		fmt.Fprintln(os.Stderr, "query:", err)
		os.Exit(1)
	}
	defer rows.Close()
	for rows.Next() {
		var (
			owner ledger.OwnerKey
			r     entryRow
			cat   uint8
		)
		if err := rows.Scan(&owner.Account, &owner.Character, &r.ItemID, &cat, &r.Quantity); err != nil {
			fmt.Fprintln(os.Stderr, "scan:", err)
			os.Exit(1)
		}
		r.Owner = owner.String()
		r.Category = ledger.Category(cat).String()
		printJSON(r)
	}
	if err := rows.Err(); err != nil {
		fmt.Fprintln(os.Stderr, "rows:", err)
		os.Exit(1)
	}
}

type categoryStat struct {
	Category string `json:"category"`
	Rows     int    `json:"rows"`
	Owners   int    `json:"owners"`
	Quantity int64  `json:"quantity"`
}

// statsCmd prints per-category totals across all owners.
func statsCmd(args []string) {
	fs := flag.NewFlagSet("stats", flag.ExitOnError)
	dbPath := fs.String("db", "./data/reagentbank.sqlite", "sqlite ledger path")
	_ = fs.Parse(args)

	db := openDB(*dbPath)
	defer db.Close()
	rows, err := db.Query(`SELECT category, COUNT(*), COUNT(DISTINCT account_id || ':' || character_id), COALESCE(SUM(quantity), 0)
		FROM reagent_bank GROUP BY category ORDER BY category`)
	if err != nil {
		fmt.Fprintln(os.Stderr, "query:", err)
		os.Exit(1)
	}
	defer rows.Close()
	for rows.Next() {
		var (
			s   categoryStat
			cat uint8
		)
		if err := rows.Scan(&cat, &s.Rows, &s.Owners, &s.Quantity); err != nil {
			fmt.Fprintln(os.Stderr, "scan:", err)
			os.Exit(1)
		}
		s.Category = ledger.Category(cat).String()
		printJSON(s)
	}
	if err := rows.Err(); err != nil {
		fmt.Fprintln(os.Stderr, "rows:", err)
		os.Exit(1)
	}
}

func printJSON(v any) {
	enc := json.NewEncoder(os.Stdout)
	enc.SetEscapeHTML(false)
	_ = enc.Encode(v)
}

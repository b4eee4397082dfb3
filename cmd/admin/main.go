package main

import (
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"os"
	"strings"
	"time"

	"reagentbank.io/internal/ledger"
	"reagentbank.io/internal/persistence/auditlog"
)

func main() {
	if len(os.Args) >= 2 {
		switch os.Args[1] {
		case "entries":
			entriesCmd(os.Args[2:])
			return
		case "stats":
			statsCmd(os.Args[2:])
			return
		case "audit":
			auditCmd(os.Args[2:])
			return
		case "bank":
			bankCmd(os.Args[2:])
			return
		}
	}
	fmt.Fprintln(os.Stderr, "usage: admin <entries|stats|audit|bank> [flags]")
	os.Exit(2)
}

// auditCmd prints audit trail records as JSON lines, optionally filtered.
func auditCmd(args []string) {
	fs := flag.NewFlagSet("audit", flag.ExitOnError)
	dir := fs.String("dir", "./data/audit", "audit log directory")
	account := fs.Uint64("account", 0, "owner account id filter")
	character := fs.Uint64("character", 0, "owner character id filter")
	itemID := fs.Uint("item", 0, "item id filter")
	op := fs.String("op", "", "op filter (deposit, withdraw, compensate)")
	since := fs.String("since", "", "RFC3339 lower bound on change time")
	limit := fs.Int("limit", 0, "stop after this many records (0 = all)")
	_ = fs.Parse(args)

	f := auditFilter{
		owner:  ledger.OwnerKey{Account: *account, Character: *character},
		itemID: uint32(*itemID),
		op:     ledger.Op(strings.TrimSpace(*op)),
	}
	if s := strings.TrimSpace(*since); s != "" {
		t, err := time.Parse(time.RFC3339, s)
		if err != nil {
			fmt.Fprintln(os.Stderr, "bad -since:", err)
			os.Exit(2)
		}
		f.since = t
	}

	files, err := auditlog.Files(*dir)
	if err != nil {
		fmt.Fprintln(os.Stderr, "list:", err)
		os.Exit(1)
	}
	enc := json.NewEncoder(os.Stdout)
	n := 0
	for _, path := range files {
		err := auditlog.Scan(path, func(c ledger.Change) error {
			if !f.match(c) {
				return nil
			}
			n++
			if err := enc.Encode(c); err != nil {
				return err
			}
			if *limit > 0 && n >= *limit {
				return errLimit
			}
			return nil
		})
		if errors.Is(err, errLimit) {
			return
		}
		if err != nil {
			fmt.Fprintln(os.Stderr, "read audit:", err)
			os.Exit(1)
		}
	}
}

var errLimit = errors.New("limit reached")

type auditFilter struct {
	owner  ledger.OwnerKey
	itemID uint32
	op     ledger.Op
	since  time.Time
}

func (f auditFilter) match(c ledger.Change) bool {
	if f.owner.Account != 0 && c.Owner.Account != f.owner.Account {
		return false
	}
	if f.owner.Character != 0 && c.Owner.Character != f.owner.Character {
		return false
	}
	if f.itemID != 0 && c.ItemID != f.itemID {
		return false
	}
	if f.op != "" && c.Op != f.op {
		return false
	}
	if !f.since.IsZero() && c.At.Before(f.since) {
		return false
	}
	return true
}

package main

import (
	"chat-client/auth"
	"flag"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/olekukonko/tablewriter"
	"github.com/samber/lo"
)

// Prints what the chat client persisted, without the token itself.
func main() {
	dbPath := flag.String("db", "", "Path to the chat client badger directory")
	prefix := flag.String("prefix", "session:", "Prefix to scan")
	flag.Parse()
	if *dbPath == "" {
		log.Fatal("-db is required")
	}

	db, err := badger.Open(badger.DefaultOptions(*dbPath).
		WithReadOnly(true).
		WithLogger(nil).
		WithBypassLockGuard(true))
	if err != nil {
		log.Fatal("Error while opening Badger: ", err)
	}
	defer db.Close()

	table := tablewriter.NewWriter(os.Stdout)
	table.SetHeader([]string{"Key", "Size", "Detail"})
	table.SetAutoWrapText(false)
	table.SetHeaderAlignment(tablewriter.ALIGN_LEFT)
	table.SetAlignment(tablewriter.ALIGN_LEFT)
	table.SetBorder(false)
	table.SetTablePadding("\t")

	err = db.View(func(txn *badger.Txn) error {
		it := txn.NewIterator(badger.DefaultIteratorOptions)
		defer it.Close()

		prefixBytes := []byte(*prefix)
		for it.Seek(prefixBytes); it.ValidForPrefix(prefixBytes); it.Next() {
			item := it.Item()
			key := string(item.Key())
			err := item.Value(func(v []byte) error {
				table.Append([]string{key, fmt.Sprintf("%d B", len(v)), detail(key, v)})
				return nil
			})
			if err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		log.Fatal(err)
	}

	table.Render()
}

func detail(key string, v []byte) string {
	if key != "session:token" {
		return lo.Ellipsis(string(v), 80)
	}
	exp, ok := auth.TokenExpiry(string(v))
	switch {
	case !ok:
		return "opaque token"
	case auth.IsExpired(string(v), time.Now()):
		return "expired at " + exp.Format(time.RFC3339)
	default:
		return "expires at " + exp.Format(time.RFC3339)
	}
}

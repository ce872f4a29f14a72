// Command inspect dumps the conversation store for debugging: the room
// directory and, optionally, one room's message log. It opens Badger
// read-only so it can run next to a live server.
package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/gookit/color"
	"github.com/olekukonko/tablewriter"
)

type roomRecord struct {
	DispatcherID string `json:"dispatcherId"`
	LastMessage  string `json:"lastMessage"`
	Timestamp    int64  `json:"timestamp"`
}

type messageRecord struct {
	ID        string `json:"id"`
	DriverID  string `json:"driverId"`
	Message   string `json:"message"`
	Seen      bool   `json:"seen"`
	Timestamp int64  `json:"timestamp"`
}

func main() {
	dbPath := flag.String("db", "./data/badger", "Path to badger DB")
	room := flag.String("room", "", "Dump the message log of one room instead of the directory")
	flag.Parse()

	opts := badger.DefaultOptions(*dbPath).
		WithReadOnly(true).
		WithBypassLockGuard(true).
		WithLoggingLevel(badger.ERROR)

	db, err := badger.Open(opts)
	if err != nil {
		log.Fatal("Error while opening Badger: ", err)
	}
	defer db.Close()

	if *room != "" {
		err = dumpMessages(db, *room)
	} else {
		err = dumpRooms(db)
	}
	if err != nil {
		log.Fatal(err)
	}
}

func dumpRooms(db *badger.DB) error {
	table := newTable("Room", "Dispatcher", "Last Message", "Timestamp")

	err := scan(db, "chat:", func(key string, value []byte) {
		var record roomRecord
		if err := json.Unmarshal(value, &record); err != nil {
			fmt.Printf("Error unmarshaling key %s: %v\n", key, err)
			return
		}
		table.Append([]string{
			key[len("chat:"):],
			record.DispatcherID,
			truncate(record.LastMessage, 48),
			formatTimestamp(record.Timestamp),
		})
	})
	if err != nil {
		return err
	}
	table.Render()
	return nil
}

func dumpMessages(db *badger.DB, room string) error {
	table := newTable("Key", "ID", "Driver", "Message", "Seen", "Timestamp")

	err := scan(db, "msg:"+room+":", func(key string, value []byte) {
		var record messageRecord
		if err := json.Unmarshal(value, &record); err != nil {
			fmt.Printf("Error unmarshaling key %s: %v\n", key, err)
			return
		}
		seen := color.Green.Sprint("seen")
		if !record.Seen {
			seen = color.Red.Sprint("unseen")
		}
		table.Append([]string{
			key,
			record.ID,
			record.DriverID,
			truncate(record.Message, 48),
			seen,
			formatTimestamp(record.Timestamp),
		})
	})
	if err != nil {
		return err
	}
	table.Render()
	return nil
}

func scan(db *badger.DB, prefix string, visit func(key string, value []byte)) error {
	return db.View(func(txn *badger.Txn) error {
		it := txn.NewIterator(badger.DefaultIteratorOptions)
		defer it.Close()

		prefixBytes := []byte(prefix)
		for it.Seek(prefixBytes); it.ValidForPrefix(prefixBytes); it.Next() {
			item := it.Item()
			key := string(item.Key())
			err := item.Value(func(value []byte) error {
				visit(key, value)
				return nil
			})
			if err != nil {
				return err
			}
		}
		return nil
	})
}

func newTable(headers ...string) *tablewriter.Table {
	table := tablewriter.NewWriter(os.Stdout)
	table.SetHeader(headers)
	table.SetAutoWrapText(false)
	table.SetAutoFormatHeaders(true)
	table.SetHeaderAlignment(tablewriter.ALIGN_LEFT)
	table.SetAlignment(tablewriter.ALIGN_LEFT)
	table.SetCenterSeparator("")
	table.SetColumnSeparator("")
	table.SetRowSeparator("")
	table.SetHeaderLine(false)
	table.SetBorder(false)
	table.SetTablePadding("\t")
	return table
}

func truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	return s[:max] + "..."
}

func formatTimestamp(millis int64) string {
	if millis == 0 {
		return "-"
	}
	return time.UnixMilli(millis).UTC().Format(time.RFC3339)
}

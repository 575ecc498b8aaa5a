package main

import (
	"fmt"
	"log/slog"
	"os"

	configlibsql "courtwatch/lib/configutil/libsql"
	historydb "courtwatch/services/history/db"
)

func CreateHistoryDB() error {
	db, err := configlibsql.Struct{File: "<dev_state>/history.db"}.OpenWithSchema(historydb.Schema)
	if err != nil {
		return err
	}
	fmt.Println("history database ready at dev/.state/history.db")
	return db.Close()
}

const starterConfig = `{
  // your phone number registered with the booking site
  phone_number: "",
  dates: { next_days: 2 },
  credentials: { dir: "<dev_state>/credentials" },
  browser: { headless: false },
  login: { otp_file: "<dev_state>/otp_code" },
  telegram: { bot_token: "", chat_id: "" },
  history: { database: { file: "<dev_state>/history.db" } },
}
`

func WriteStarterConfig() error {
	_, err := os.Stat("courtwatch.json5")
	if err == nil {
		fmt.Println("config already present at courtwatch.json5")
		return nil
	}
	fmt.Println("writing starter config to courtwatch.json5")
	return os.WriteFile("courtwatch.json5", []byte(starterConfig), 0600)
}

func PrintConfigLocations() {
	slog.Info("fill in courtwatch.json5 (or courtwatch.local.json5) before running `go run ./cmd/courtwatch login`. the live API tests read dev/.state/academy.json5 and are skipped without it.")
}

package database

import (
	"context"
	"database/sql"
	"fmt"
	"log"

	_ "github.com/lib/pq"
	"go.mau.fi/whatsmeow/store/sqlstore"
	waLog "go.mau.fi/whatsmeow/util/log"
)

// Container holds every whatsmeow device (one per instance).
var Container *sqlstore.Container

// AppDB holds our own tables: instance records and the message log.
var AppDB *sql.DB

func InitWhatsmeow(dbURL string) {
	dbLog := waLog.Stdout("Database", "WARN", true)
	container, err := sqlstore.New(context.Background(), "postgres", dbURL, dbLog)
	if err != nil {
		log.Fatal("Failed to init whatsmeow container:", err)
	}
	Container = container
	log.Println("Whatsmeow device container connected successfully")
}

func InitAppDB(appDbURL string) {
	db, err := sql.Open("postgres", appDbURL)
	if err != nil {
		log.Fatal("Failed to connect app DB:", err)
	}
	AppDB = db
	if err := AppDB.Ping(); err != nil {
		log.Fatal("Failed to ping app DB:", err)
	}
	log.Println("App DB connected successfully")
}

// InitSchema ensures our custom tables exist. Safe to run on every boot.
func InitSchema() error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS instances (
			instance_id   TEXT PRIMARY KEY,
			jid           TEXT,
			phone_number  TEXT,
			status        TEXT NOT NULL DEFAULT 'initializing',
			created_at    TIMESTAMPTZ NOT NULL DEFAULT now(),
			connected_at  TIMESTAMPTZ,
			updated_at    TIMESTAMPTZ NOT NULL DEFAULT now()
		)`,
		`CREATE TABLE IF NOT EXISTS messages (
			id           BIGSERIAL PRIMARY KEY,
			instance_id  TEXT NOT NULL,
			message_id   TEXT NOT NULL,
			chat_id      TEXT NOT NULL,
			sender_id    TEXT,
			from_me      BOOLEAN NOT NULL DEFAULT false,
			body         TEXT,
			media_type   TEXT,
			ts           BIGINT NOT NULL,
			UNIQUE (instance_id, chat_id, message_id)
		)`,
		`CREATE INDEX IF NOT EXISTS idx_messages_chat ON messages (instance_id, chat_id, ts DESC)`,
	}
	for _, stmt := range stmts {
		if _, err := AppDB.Exec(stmt); err != nil {
			return fmt.Errorf("ensure schema: %w", err)
		}
	}
	log.Println("Schema ensured")
	return nil
}

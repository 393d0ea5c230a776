package main

import (
	"database/sql"
	"flag"
	"fmt"
	"log"
	"os"

	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/pressly/goose/v3"

	"chatrex/migrations"
)

func main() {
	dsn := flag.String("dsn", os.Getenv("PG_DSN"), "строка подключения к Postgres")
	flag.Parse()

	args := flag.Args()
	if len(args) == 0 || *dsn == "" {
		fmt.Fprintln(os.Stderr, "Использование: migrate [-dsn строка] <команда>")
		fmt.Fprintln(os.Stderr, "")
		fmt.Fprintln(os.Stderr, "Команды:")
		fmt.Fprintln(os.Stderr, "  up          Применить все миграции")
		fmt.Fprintln(os.Stderr, "  down        Откатить одну миграцию")
		fmt.Fprintln(os.Stderr, "  status      Показать статус миграций")
		fmt.Fprintln(os.Stderr, "  version     Показать текущую версию")
		os.Exit(1)
	}

	db, err := sql.Open("pgx", *dsn)
	if err != nil {
		log.Fatalf("открытие БД: %v", err)
	}
	defer func() { _ = db.Close() }()

	goose.SetBaseFS(migrations.FS)
	if err := goose.SetDialect("postgres"); err != nil {
		log.Fatalf("set dialect: %v", err)
	}

	cmd := args[0]
	switch cmd {
	case "up":
		err = goose.Up(db, ".")
	case "down":
		err = goose.Down(db, ".")
	case "status":
		err = goose.Status(db, ".")
	case "version":
		err = goose.Version(db, ".")
	default:
		log.Fatalf("неизвестная команда: %s", cmd)
	}

	if err != nil {
		log.Fatalf("%s: %v", cmd, err)
	}
}

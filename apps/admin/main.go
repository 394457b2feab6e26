package main

import (
	"database/sql"
	"log"
	"os"

	"github.com/go-playground/validator/v10"

	"github.com/EllowDigital/GSAI-IN-sub000/core"
	"github.com/EllowDigital/GSAI-IN-sub000/core/fee"
	"github.com/EllowDigital/GSAI-IN-sub000/core/progression"
	"github.com/EllowDigital/GSAI-IN-sub000/core/student"
	"github.com/EllowDigital/GSAI-IN-sub000/services/email"
	"github.com/EllowDigital/GSAI-IN-sub000/services/logger"
	"github.com/EllowDigital/GSAI-IN-sub000/storage/database"
	"github.com/EllowDigital/GSAI-IN-sub000/storage/database/inmem"
	"github.com/EllowDigital/GSAI-IN-sub000/storage/database/sqlx"
)

var logger *log.Logger

func main() {
	defer os.Exit(0)

	logger = log.New(os.Stderr, "ADMIN : ", log.LstdFlags|log.Lmicroseconds|log.Lshortfile)
	conf := core.NewConfig()

	appLogger := logsvc.NewRollbarLogger(logger, conf)
	defer appLogger.Close()

	var (
		db       *sql.DB
		students student.Repository
		fees     fee.Repository
		progress progression.Repository
	)
	if conf.Database.InMemory {
		mem := inmemdb.Open()
		students = inmemdb.NewStudentRepository(mem)
		fees = inmemdb.NewFeeRepository(mem)
		progress = inmemdb.NewProgressionRepository(mem)
	} else {
		xdb, err := database.Open(conf)
		errAndDie(err)
		defer xdb.Close()
		db = xdb.DB
		students = sqlxrepos.NewStudentRepository(xdb)
		fees = sqlxrepos.NewFeeRepository(xdb)
		progress = sqlxrepos.NewProgressionRepository(xdb)
	}

	var mailSvc core.EmailService
	if conf.Debug {
		mailSvc = emailsvc.NewConsoleService(conf)
	} else {
		mailSvc = emailsvc.NewSendgridService(conf, appLogger)
	}

	catalog, err := progression.CatalogFromConfig(conf.Disciplines)
	errAndDie(err)

	validate := validator.New()
	core.InitValidators(validate, core.NewTranslator())

	// start CLI
	cli := commandLine{
		db:          db,
		out:         os.Stdout,
		studentSvc:  student.NewService(students, validate),
		feeSvc:      fee.NewService(fees, students, mailSvc, validate, appLogger),
		progressSvc: progression.NewService(progress, students, catalog, nil, validate),
	}
	if err := cli.run(os.Args); err != nil {
		if err != errHelp {
			logger.Printf("\nerror: %s\n", err)
		}
		os.Exit(1)
	}
}

func errAndDie(err error) {
	if err != nil {
		logger.Fatal(err)
	}
}

package main

import (
	"context"
	"expvar"
	"fmt"
	"log"
	"net/http"
	_ "net/http/pprof" // /debug/pprof
	"os"

	"github.com/go-playground/validator/v10"

	echoapi "github.com/EllowDigital/GSAI-IN-sub000/apps/api/echo"
	"github.com/EllowDigital/GSAI-IN-sub000/core"
	"github.com/EllowDigital/GSAI-IN-sub000/core/fee"
	"github.com/EllowDigital/GSAI-IN-sub000/core/progression"
	"github.com/EllowDigital/GSAI-IN-sub000/core/student"
	"github.com/EllowDigital/GSAI-IN-sub000/services/email"
	"github.com/EllowDigital/GSAI-IN-sub000/services/logger"
	"github.com/EllowDigital/GSAI-IN-sub000/services/scheduler"
	"github.com/EllowDigital/GSAI-IN-sub000/storage/database"
	"github.com/EllowDigital/GSAI-IN-sub000/storage/database/inmem"
	"github.com/EllowDigital/GSAI-IN-sub000/storage/database/sqlx"
)

type repositories struct {
	students student.Repository
	fees     fee.Repository
	progress progression.Repository
	close    func() error
}

func main() {
	// =========================================================================
	// Set up Dependencies

	conf := core.NewConfig()

	// set up loggers
	logger := logsvc.NewRollbarLogger(
		log.New(os.Stdout, "API : ", log.LstdFlags|log.Lmicroseconds|log.Lshortfile),
		conf,
	)
	defer logger.Close()

	dbLogger := logsvc.NewRollbarLogger(
		log.New(os.Stdout, "DB : ", log.LstdFlags|log.Lmicroseconds|log.Lshortfile),
		conf,
	)

	// set up DB
	repos, err := setUpRepositories(conf)
	if err != nil {
		logger.Fatal(fmt.Sprintf("setting up database: %v", err), err)
	}
	defer func() {
		if err = repos.close(); err != nil {
			dbLogger.Fatal("Failed to close", err)
		}
	}()

	// set up services
	var mailSvc core.EmailService
	if conf.Debug {
		mailSvc = emailsvc.NewConsoleService(conf)
	} else {
		mailSvc = emailsvc.NewSendgridService(conf, logger)
	}

	catalog, err := progression.CatalogFromConfig(conf.Disciplines)
	if err != nil {
		logger.Fatal(fmt.Sprintf("loading discipline catalog: %v", err), err)
	}

	// =========================================================================
	// Initialize App

	logger.Info(fmt.Sprintf("Application initializing : version %q", conf.Build))
	defer logger.Info("Application stopped")

	validate := validator.New()
	translator := core.NewTranslator()
	core.InitValidators(validate, translator)

	studSvc := student.NewService(repos.students, validate)
	feeSvc := fee.NewService(repos.fees, repos.students, mailSvc, validate, logger)
	progressSvc := progression.NewService(repos.progress, repos.students, catalog, nil, validate)

	// =========================================================================
	// Start Reminders Scheduler

	if conf.Reminders.Enabled {
		sched, err := schedulersvc.New(conf.Reminders, feeSvc, logger)
		if err != nil {
			logger.Fatal(fmt.Sprintf("setting up reminders scheduler: %v", err), err)
		}
		sched.Start()
		defer func() { <-sched.Stop().Done() }()
		logger.Info(fmt.Sprintf("fee reminders scheduled: %q", conf.Reminders.Schedule))
	}

	// =========================================================================
	// Start Debug Service
	//
	// /debug/pprof - Added to the default mux by importing the net/http/pprof package.
	// /debug/vars - Added to the default mux by importing the expvar package.

	// Expose important info under /debug/vars.
	expvar.NewString("build").Set(conf.Build)
	expvar.NewString("env").Set(conf.Env)

	go func() {
		if err := http.ListenAndServe(conf.Server.DebugHost, http.DefaultServeMux); err != nil {
			logger.Error(fmt.Sprintf("debug server closed: %v", err), err)
		}
	}()

	// =========================================================================
	// Start API Service

	server := echoapi.NewServer(
		echoapi.ServerDeps{
			Conf:        conf,
			Logger:      logger,
			StudentSvc:  studSvc,
			FeeSvc:      feeSvc,
			ProgressSvc: progressSvc,
			Validate:    validate,
			Translator:  translator,
		},
	)
	server.Start()

	// =========================================================================
	// Shutdown

	select {
	case err = <-server.Errors():
		logger.Fatal(fmt.Sprintf("server error: %v", err), err)

	case sig := <-server.ShutdownSignal():
		logger.Info(fmt.Sprintf("%v: Start shutdown...", sig))

		// give outstanding requests a deadline for completion
		ctx, cancel := context.WithTimeout(context.Background(), conf.Server.ShutdownTimeout)
		defer cancel()

		// asking listener to shutdown and shed load
		if err = server.Shutdown(ctx); err != nil {
			logger.Error(fmt.Sprintf("could not stop server gracefully: %v", err), err)

			if err = server.Close(); err != nil {
				logger.Fatal(fmt.Sprintf("could not force stop server: %v", err), err)
			}
		}
	}
}

// setUpRepositories opens (creating & migrating if needed) the postgres DB,
// or an in-memory store when conf.Database.InMemory is set.
func setUpRepositories(conf *core.Config) (repositories, error) {
	if conf.Database.InMemory {
		db := inmemdb.Open()
		return repositories{
			students: inmemdb.NewStudentRepository(db),
			fees:     inmemdb.NewFeeRepository(db),
			progress: inmemdb.NewProgressionRepository(db),
			close:    func() error { return nil },
		}, nil
	}

	if err := database.CreateIfNotExist(conf); err != nil {
		return repositories{}, err
	}
	db, err := database.Open(conf)
	if err != nil {
		return repositories{}, err
	}
	if err = database.Migrate(db.DB); err != nil {
		_ = db.Close()
		return repositories{}, err
	}
	return repositories{
		students: sqlxrepos.NewStudentRepository(db),
		fees:     sqlxrepos.NewFeeRepository(db),
		progress: sqlxrepos.NewProgressionRepository(db),
		close:    db.Close,
	}, nil
}

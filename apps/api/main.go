package main

import (
	"context"
	"database/sql"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jmoiron/sqlx"

	echoapi "github.com/trezcool/mazoezi/apps/api/echo"
	"github.com/trezcool/mazoezi/core"
	"github.com/trezcool/mazoezi/core/journal"
	"github.com/trezcool/mazoezi/core/user"
	emailsvc "github.com/trezcool/mazoezi/services/email"
	logsvc "github.com/trezcool/mazoezi/services/logger"
	"github.com/trezcool/mazoezi/storage/database"
	sqlxrepos "github.com/trezcool/mazoezi/storage/database/sqlx"
)

func main() {
	conf, err := core.LoadConfig()
	if err != nil {
		log.Fatalf("loading config: %v", err)
	}

	// set up logger
	logger := logsvc.NewRollbarLogger(
		log.New(os.Stdout, "API : ", log.LstdFlags|log.Lmicroseconds|log.Lshortfile),
		conf,
	)
	logger.Enable(!conf.Debug)

	user.Init(conf)

	// set up DB
	db, err := setUpDB(conf)
	if err != nil {
		logger.Fatal(fmt.Sprintf("setting up database: %v", err), err)
	}
	defer func() {
		if err = db.Close(); err != nil {
			logger.Error(fmt.Sprintf("closing database: %v", err), err)
		}
	}()
	sdb := sqlx.NewDb(db, conf.Database.Engine)
	usrRepo := sqlxrepos.NewUserRepository(sdb)
	jnlRepo := sqlxrepos.NewJournalRepository(sdb)

	// set up services
	var mailSvc core.EmailService
	if conf.Debug {
		mailSvc = emailsvc.NewConsoleService(conf)
	} else {
		mailSvc = emailsvc.NewSendgridService(conf, logger)
	}
	usrSvc := user.NewService(usrRepo, mailSvc)
	jnlSvc := journal.NewService(jnlRepo, usrRepo, mailSvc, logger)

	logger.Info(fmt.Sprintf("Application initializing : version %q", conf.Build))
	defer logger.Info("Application stopped")

	// start API server (graceful shutdown on SIGINT|SIGTERM or on a caught shutdown error)
	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, os.Interrupt, syscall.SIGTERM)

	app := echoapi.NewServer(
		&echoapi.Options{
			Address:    conf.Server.Address(),
			Logger:     logger,
			Shutdown:   func() { shutdown <- syscall.SIGTERM },
			UserSvc:    usrSvc,
			JournalSvc: jnlSvc,
		},
	)
	go app.Start()

	sig := <-shutdown
	logger.Info(fmt.Sprintf("%v: Start shutdown...", sig))

	// give outstanding requests a deadline for completion
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Second)
	defer cancel()
	if err = app.Stop(ctx); err != nil {
		logger.Error(fmt.Sprintf("could not stop server gracefully: %v", err), err)
	}
}

func setUpDB(conf *core.Config) (*sql.DB, error) {
	if err := database.CreateIfNotExist(conf); err != nil {
		return nil, err
	}

	db, err := database.Open(conf)
	if err != nil {
		return nil, err
	}

	if err = database.Migrate(db); err != nil {
		return nil, err
	}
	return db, nil
}

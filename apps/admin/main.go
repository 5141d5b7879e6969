package main

import (
	"log"
	"os"

	"github.com/go-playground/validator/v10"

	"github.com/trezcool/admitflow/core"
	"github.com/trezcool/admitflow/core/comms"
	"github.com/trezcool/admitflow/core/lead"
	"github.com/trezcool/admitflow/core/user"
	emailsvc "github.com/trezcool/admitflow/services/email"
	logsvc "github.com/trezcool/admitflow/services/logger"
	smssvc "github.com/trezcool/admitflow/services/sms"
	"github.com/trezcool/admitflow/storage/database"
	sqlxrepos "github.com/trezcool/admitflow/storage/database/sqlx"
)

func main() {
	conf := core.NewConfig()
	logger := logsvc.NewRollbarLogger(log.New(os.Stdout, "ADMIN : ", log.LstdFlags|log.Lmicroseconds|log.Lshortfile), conf)
	logger.Enable(false)

	// set up DB
	if err := database.CreateIfNotExist(conf); err != nil {
		logger.Fatal("creating database", err)
	}
	db, err := database.OpenSqlx(conf)
	if err != nil {
		logger.Fatal("opening database", err)
	}
	defer db.Close()

	usrRepo := sqlxrepos.NewUserRepository(db)
	mailSvc := emailsvc.NewConsoleService(conf, logger)
	usrSvc := user.NewService(usrRepo, mailSvc, conf, logger)
	leadSvc := lead.NewService(sqlxrepos.NewLeadRepository(db), sqlxrepos.NewTransactor(db), sqlxrepos.NewSequencer(db), usrSvc, mailSvc, logger)
	validate := validator.New()
	core.InitValidators(validate, core.NewTranslator())

	// start CLI
	cli := commandLine{
		db:       db.DB,
		usrRepo:  usrRepo,
		commsSvc: comms.NewService(sqlxrepos.NewCommsRepository(db), leadSvc, smssvc.NewConsoleGateway(nil), logger),
		validate: validate,
		out:      os.Stdout,
	}
	if err := cli.run(os.Args); err != nil {
		if err != errHelp {
			logger.Error("command failed", err)
		}
		_ = db.Close()
		os.Exit(1)
	}
}

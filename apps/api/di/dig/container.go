package dig_container

import (
	"context"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"
	"github.com/robfig/cron/v3"
	"go.uber.org/dig"

	echoapi "github.com/trezcool/admitflow/apps/api/echo"
	"github.com/trezcool/admitflow/core"
	"github.com/trezcool/admitflow/core/analytics"
	"github.com/trezcool/admitflow/core/catalog"
	"github.com/trezcool/admitflow/core/comms"
	"github.com/trezcool/admitflow/core/joining"
	"github.com/trezcool/admitflow/core/lead"
	"github.com/trezcool/admitflow/core/payment"
	"github.com/trezcool/admitflow/core/user"
	emailsvc "github.com/trezcool/admitflow/services/email"
	logsvc "github.com/trezcool/admitflow/services/logger"
	smssvc "github.com/trezcool/admitflow/services/sms"
	"github.com/trezcool/admitflow/storage/database"
	inmemdb "github.com/trezcool/admitflow/storage/database/inmem"
	sqlxrepos "github.com/trezcool/admitflow/storage/database/sqlx"
)

const smsSyncTimeout = time.Minute

type DBLoggerParam struct {
	dig.In
	Logger core.Logger `name:"dbLogger"`
}

// StoreParam exposes the opened database with its logger, for closing on exit.
type StoreParam struct {
	dig.In
	DB     *sqlx.DB
	Logger core.Logger `name:"dbLogger"`
}

type CronLoggerParam struct {
	dig.In
	Logger core.Logger `name:"cronLogger"`
}

// Store holds the repositories of the selected storage engine.
// DB is nil when running in memory.
type Store struct {
	dig.Out

	DB            *sqlx.DB
	Transactor    core.Transactor
	Sequencer     core.Sequencer
	UserRepo      user.Repository
	LeadRepo      lead.Repository
	CommsRepo     comms.Repository
	CatalogRepo   catalog.Repository
	JoiningRepo   joining.Repository
	PaymentRepo   payment.Repository
	AnalyticsRepo analytics.Repository
}

func newRollbarLogger(conf *core.Config, prefix string, flags int) core.Logger {
	stdLogger := log.New(os.Stdout, prefix, flags)
	logger := logsvc.NewRollbarLogger(stdLogger, conf)
	logger.Enable(!conf.Debug && conf.RollbarToken != "")
	return logger
}

func newLogger(conf *core.Config) core.Logger {
	return newRollbarLogger(conf, "API : ", log.LstdFlags)
}

func newDBLogger(conf *core.Config) core.Logger {
	return newRollbarLogger(conf, "DB : ", log.LstdFlags|log.Lmicroseconds|log.Lshortfile)
}

func newCronLogger(conf *core.Config) core.Logger {
	return newRollbarLogger(conf, "CRON : ", log.LstdFlags)
}

func newStore(conf *core.Config, loggerParam DBLoggerParam) Store {
	if conf.Database.InMemory {
		loggerParam.Logger.Warn("using in-memory storage: data is lost on restart")
		db := inmemdb.Open()
		return Store{
			Transactor:    inmemdb.NewTransactor(db),
			Sequencer:     inmemdb.NewSequencer(db),
			UserRepo:      inmemdb.NewUserRepository(db),
			LeadRepo:      inmemdb.NewLeadRepository(db),
			CommsRepo:     inmemdb.NewCommsRepository(db),
			CatalogRepo:   inmemdb.NewCatalogRepository(db),
			JoiningRepo:   inmemdb.NewJoiningRepository(db),
			PaymentRepo:   inmemdb.NewPaymentRepository(db),
			AnalyticsRepo: inmemdb.NewAnalyticsRepository(db),
		}
	}

	setUp := func() (*sqlx.DB, error) {
		if err := database.CreateIfNotExist(conf); err != nil {
			return nil, err
		}
		db, err := database.OpenSqlx(conf)
		if err != nil {
			return nil, err
		}
		if err = database.Migrate(db.DB); err != nil {
			_ = db.Close()
			return nil, err
		}
		return db, nil
	}

	db, err := setUp()
	if err != nil {
		loggerParam.Logger.Fatal(fmt.Sprintf("setting up database: %v", err), err)
	}
	return Store{
		DB:            db,
		Transactor:    sqlxrepos.NewTransactor(db),
		Sequencer:     sqlxrepos.NewSequencer(db),
		UserRepo:      sqlxrepos.NewUserRepository(db),
		LeadRepo:      sqlxrepos.NewLeadRepository(db),
		CommsRepo:     sqlxrepos.NewCommsRepository(db),
		CatalogRepo:   sqlxrepos.NewCatalogRepository(db),
		JoiningRepo:   sqlxrepos.NewJoiningRepository(db),
		PaymentRepo:   sqlxrepos.NewPaymentRepository(db),
		AnalyticsRepo: sqlxrepos.NewAnalyticsRepository(db),
	}
}

func newEmailService(conf *core.Config, logger core.Logger) core.EmailService {
	if conf.Debug || conf.SendgridApiKey == "" {
		return emailsvc.NewConsoleService(conf, logger)
	}
	return emailsvc.NewSendgridService(conf, logger)
}

func newSMSGateway(conf *core.Config) core.SMSGateway {
	if conf.Debug || conf.SMS.BaseURL == "" {
		return smssvc.NewConsoleGateway(log.New(os.Stdout, "SMS : ", log.LstdFlags))
	}
	return smssvc.NewHTTPGateway(conf)
}

// newScheduler registers the background jobs; the caller starts & stops it.
func newScheduler(conf *core.Config, commsSvc comms.Service, loggerParam CronLoggerParam) (*cron.Cron, error) {
	logger := loggerParam.Logger
	c := cron.New(cron.WithChain(cron.Recover(cronLogger{logger})))

	_, err := c.AddFunc(conf.SMS.SyncSchedule, func() {
		ctx, cancel := context.WithTimeout(context.Background(), smsSyncTimeout)
		defer cancel()

		n, err := commsSvc.SyncPending(ctx)
		if err != nil {
			logger.Error(fmt.Sprintf("syncing sms delivery status: %v", err), err)
			return
		}
		if n > 0 {
			logger.Info(fmt.Sprintf("synced delivery status of %d sms", n))
		}
	})
	if err != nil {
		return nil, errors.Wrapf(err, "scheduling sms sync %q", conf.SMS.SyncSchedule)
	}
	return c, nil
}

// cronLogger adapts core.Logger to cron.Logger.
type cronLogger struct {
	logger core.Logger
}

func (l cronLogger) Info(msg string, keysAndValues ...interface{}) {
	l.logger.Debug(fmt.Sprintf("%s %v", msg, keysAndValues))
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	l.logger.Error(fmt.Sprintf("%s: %v %v", msg, err, keysAndValues), err)
}

// New returns a new dependency injection dig.Container
func New() *dig.Container {
	c := dig.New()

	must(c.Provide(core.NewConfig))
	must(c.Provide(newLogger))
	must(c.Provide(newDBLogger, dig.Name("dbLogger")))
	must(c.Provide(newCronLogger, dig.Name("cronLogger")))
	must(c.Provide(newStore))
	must(c.Provide(newEmailService))
	must(c.Provide(newSMSGateway))
	must(c.Provide(validator.New))
	must(c.Provide(core.NewTranslator))

	must(c.Provide(user.NewService))
	must(c.Provide(lead.NewService))
	must(c.Provide(comms.NewService))
	must(c.Provide(catalog.NewService))
	must(c.Provide(joining.NewService))
	must(c.Provide(payment.NewService))
	must(c.Provide(analytics.NewService))

	must(c.Provide(echoapi.NewServer))
	must(c.Provide(newScheduler))

	return c
}

// must exits program if err happened
func must(err error) {
	if err != nil {
		log.Fatal(errors.Wrap(err, "failed to provide dependency").Error())
	}
}

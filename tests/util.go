package testutil

import (
	"context"
	"io"
	"log"
	"net/http/httptest"
	"testing"
	"time"

	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"

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
	inmemdb "github.com/trezcool/admitflow/storage/database/inmem"
)

// Env is a fully wired set of services backed by an in-memory database.
type Env struct {
	Conf       *core.Config
	Logger     core.Logger
	Validate   *validator.Validate
	Translator ut.Translator
	DB         *inmemdb.DB
	SMS        *smssvc.ConsoleGateway

	UserRepo    user.Repository
	LeadRepo    lead.Repository
	CommsRepo   comms.Repository
	CatalogRepo catalog.Repository
	JoiningRepo joining.Repository

	UserSvc      user.Service
	LeadSvc      lead.Service
	CommsSvc     comms.Service
	CatalogSvc   catalog.Service
	JoiningSvc   joining.Service
	PaymentSvc   payment.Service
	AnalyticsSvc analytics.Service
}

func NewLogger(conf *core.Config) core.Logger {
	logger := logsvc.NewRollbarLogger(log.New(io.Discard, "", 0), conf)
	logger.Enable(false)
	return logger
}

// NewValidator returns a validator with every custom tag registered.
func NewValidator() (*validator.Validate, ut.Translator) {
	validate := validator.New()
	translator := core.NewTranslator()
	core.InitValidators(validate, translator)
	user.InitValidators(validate, translator)
	lead.InitValidators(validate, translator)
	comms.InitValidators(validate, translator)
	catalog.InitValidators(validate, translator)
	return validate, translator
}

func NewEnv(t *testing.T) *Env {
	t.Helper()

	conf := core.NewTestConfig()
	logger := NewLogger(conf)
	validate, translator := NewValidator()
	core.ParseEmailTemplates(conf, logger)
	user.LoadCommonPasswords(logger)
	emailsvc.ResetSentMessages()

	db := inmemdb.Open()
	tx := inmemdb.NewTransactor(db)
	seq := inmemdb.NewSequencer(db)
	mailSvc := emailsvc.NewConsoleServiceMock(conf)
	gateway := smssvc.NewConsoleGateway(nil)

	env := &Env{
		Conf:        conf,
		Logger:      logger,
		Validate:    validate,
		Translator:  translator,
		DB:          db,
		SMS:         gateway,
		UserRepo:    inmemdb.NewUserRepository(db),
		LeadRepo:    inmemdb.NewLeadRepository(db),
		CommsRepo:   inmemdb.NewCommsRepository(db),
		CatalogRepo: inmemdb.NewCatalogRepository(db),
		JoiningRepo: inmemdb.NewJoiningRepository(db),
	}
	env.UserSvc = user.NewServiceMock(env.UserRepo, mailSvc, conf, logger)
	env.LeadSvc = lead.NewService(env.LeadRepo, tx, seq, env.UserSvc, mailSvc, logger)
	env.CommsSvc = comms.NewService(env.CommsRepo, env.LeadSvc, gateway, logger)
	env.CatalogSvc = catalog.NewService(env.CatalogRepo)
	env.JoiningSvc = joining.NewService(env.JoiningRepo, tx, seq, env.LeadSvc, env.CatalogSvc, logger)
	env.PaymentSvc = payment.NewService(inmemdb.NewPaymentRepository(db))
	env.AnalyticsSvc = analytics.NewService(inmemdb.NewAnalyticsRepository(db), env.LeadSvc, env.CommsSvc)
	return env
}

func CreateUser(
	t *testing.T,
	repo user.Repository,
	name, uname, email, pwd string,
	role string,
	isActive bool,
	createdAt ...time.Time,
) user.User {
	t.Helper()

	tstamp := time.Now().UTC()
	if len(createdAt) > 0 {
		tstamp = createdAt[0].UTC()
	}
	usr := user.User{
		Name:      name,
		Username:  uname,
		Email:     email,
		Role:      role,
		IsActive:  isActive,
		CreatedAt: tstamp,
		UpdatedAt: tstamp,
	}
	if pwd != "" {
		if err := usr.SetPassword(pwd); err != nil {
			t.Fatalf("CreateUser() failed: %v", err)
		}
	}
	usr, err := repo.CreateUser(context.Background(), usr)
	if err != nil {
		t.Fatalf("CreateUser() failed: %v", err)
	}
	return usr
}

func CreateLead(t *testing.T, svc lead.Service, actor user.User, name, phone string) lead.Lead {
	t.Helper()

	l, err := svc.Create(context.Background(), lead.NewLead{Name: name, Phone: phone}, actor)
	if err != nil {
		t.Fatalf("CreateLead() failed: %v", err)
	}
	return l
}

func AssignLeads(t *testing.T, svc lead.Service, counsellor, actor user.User, leads ...lead.Lead) {
	t.Helper()

	ids := make([]string, 0, len(leads))
	for _, l := range leads {
		ids = append(ids, l.ID)
	}
	if _, err := svc.Assign(context.Background(), ids, counsellor.ID, actor); err != nil {
		t.Fatalf("AssignLeads() failed: %v", err)
	}
}

func CreateTemplate(t *testing.T, svc comms.Service, name, dltID, content string) comms.MessageTemplate {
	t.Helper()

	tmpl, err := svc.CreateTemplate(context.Background(), comms.NewTemplate{Name: name, DLTTemplateID: dltID, Content: content})
	if err != nil {
		t.Fatalf("CreateTemplate() failed: %v", err)
	}
	return tmpl
}

// NewAPIServer serves the HTTP API over env on a local listener until the test ends.
func NewAPIServer(t *testing.T, env *Env) *httptest.Server {
	t.Helper()

	srv := echoapi.NewServer(echoapi.ServerDeps{
		Conf:         env.Conf,
		Logger:       env.Logger,
		Validate:     env.Validate,
		Translator:   env.Translator,
		UserSvc:      env.UserSvc,
		LeadSvc:      env.LeadSvc,
		CommsSvc:     env.CommsSvc,
		JoiningSvc:   env.JoiningSvc,
		CatalogSvc:   env.CatalogSvc,
		PaymentSvc:   env.PaymentSvc,
		AnalyticsSvc: env.AnalyticsSvc,
	})
	ts := httptest.NewServer(srv)
	t.Cleanup(func() {
		ts.Close()
		_ = srv.Close()
	})
	return ts
}

package echoapi

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/labstack/gommon/log"
	"go.uber.org/dig"

	"github.com/trezcool/admitflow/core"
	"github.com/trezcool/admitflow/core/analytics"
	"github.com/trezcool/admitflow/core/catalog"
	"github.com/trezcool/admitflow/core/comms"
	"github.com/trezcool/admitflow/core/joining"
	"github.com/trezcool/admitflow/core/lead"
	"github.com/trezcool/admitflow/core/payment"
	"github.com/trezcool/admitflow/core/user"
)

type (
	ServerDeps struct {
		dig.In

		Conf         *core.Config
		Logger       core.Logger
		Validate     *validator.Validate
		Translator   ut.Translator
		UserSvc      user.Service
		LeadSvc      lead.Service
		CommsSvc     comms.Service
		JoiningSvc   joining.Service
		CatalogSvc   catalog.Service
		PaymentSvc   payment.Service
		AnalyticsSvc analytics.Service
	}

	Server struct {
		app      *echo.Echo
		conf     *core.Config
		errors   chan error
		shutdown chan os.Signal
	}
)

// NewServer builds the echo app with every API registered under /v1.
func NewServer(deps ServerDeps) *Server {
	s := &Server{
		app:      echo.New(),
		conf:     deps.Conf,
		errors:   make(chan error, 1),
		shutdown: make(chan os.Signal, 1),
	}
	signal.Notify(s.shutdown, os.Interrupt, syscall.SIGTERM)
	s.setup(deps)
	return s
}

func (s *Server) setup(deps ServerDeps) {
	conf := deps.Conf

	s.app.HideBanner = true
	s.app.Debug = conf.Debug && !conf.TestMode
	s.app.JSONSerializer = sonicSerializer{}
	s.app.HTTPErrorHandler = newAppHTTPErrorHandler(deps.Logger, deps.Translator, s.signalShutdown)

	s.app.Pre(middleware.RemoveTrailingSlash())
	if !conf.TestMode {
		s.app.Use(middleware.Logger())
	}
	// do not recover in DEV|TEST mode
	if !(conf.Debug || conf.TestMode) {
		s.app.Use(middleware.RecoverWithConfig(middleware.RecoverConfig{LogLevel: log.ERROR}))
	}
	s.app.Use(middleware.CORSWithConfig(middleware.CORSConfig{
		AllowOrigins:     []string{conf.FrontendBaseURL},
		AllowCredentials: true,
	}))

	s.app.GET("/", home)

	v1 := s.app.Group("/v1")
	auth := newAuth(conf, deps.UserSvc)
	jwt := auth.middleware()

	registerAuthAPI(v1, jwt, auth, deps.UserSvc, deps.Validate, deps.Logger)
	registerUserAPI(v1, jwt, auth, deps.UserSvc, deps.Validate)
	registerLeadAPI(v1, jwt, auth, deps.LeadSvc, deps.CommsSvc, deps.Validate)
	registerCommsAPI(v1, jwt, auth, deps.CommsSvc, deps.Validate)
	registerJoiningAPI(v1, jwt, auth, deps.JoiningSvc, deps.Validate)
	registerCatalogAPI(v1, jwt, auth, deps.CatalogSvc, deps.Validate)
	registerPaymentAPI(v1, jwt, auth, deps.PaymentSvc, deps.Validate)
	registerAnalyticsAPI(v1, jwt, auth, deps.AnalyticsSvc)
}

// Start blocks until the server stops; failures are reported on Errors().
func (s *Server) Start() {
	if err := s.app.Start(s.conf.Server.Address()); err != nil && err != http.ErrServerClosed {
		s.errors <- err
	}
}

func (s *Server) Errors() <-chan error {
	return s.errors
}

func (s *Server) ShutdownSignal() <-chan os.Signal {
	return s.shutdown
}

func (s *Server) signalShutdown() {
	s.shutdown <- syscall.SIGTERM
}

func (s *Server) Shutdown(ctx context.Context) error {
	return s.app.Shutdown(ctx)
}

func (s *Server) Close() error {
	return s.app.Close()
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) { // for tests
	s.app.ServeHTTP(w, r)
}

func home(ctx echo.Context) error {
	return ctx.JSON(http.StatusOK, core.OKMessage("Welcome to Admitflow API!"))
}

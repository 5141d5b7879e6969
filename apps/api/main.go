package main

import (
	"context"
	"expvar"
	"fmt"
	"log"
	"net/http"
	_ "net/http/pprof"

	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	"github.com/robfig/cron/v3"

	dig_container "github.com/trezcool/admitflow/apps/api/di/dig"
	echoapi "github.com/trezcool/admitflow/apps/api/echo"
	"github.com/trezcool/admitflow/core"
	"github.com/trezcool/admitflow/core/catalog"
	"github.com/trezcool/admitflow/core/comms"
	"github.com/trezcool/admitflow/core/lead"
	"github.com/trezcool/admitflow/core/user"
)

type appParams struct {
	conf       *core.Config
	apiLogger  core.Logger
	store      dig_container.StoreParam
	validate   *validator.Validate
	translator ut.Translator
	server     *echoapi.Server
	scheduler  *cron.Cron
}

func main() {
	c := dig_container.New()

	must(c.Invoke(func(
		conf *core.Config,
		apiLogger core.Logger,
		store dig_container.StoreParam,
		validate *validator.Validate,
		translator ut.Translator,
		server *echoapi.Server,
		scheduler *cron.Cron,
	) {
		run(appParams{
			conf:       conf,
			apiLogger:  apiLogger,
			store:      store,
			validate:   validate,
			translator: translator,
			server:     server,
			scheduler:  scheduler,
		})
	}))
}

func run(p appParams) {
	conf, apiLogger := p.conf, p.apiLogger

	// =========================================================================
	// Initialize App

	apiLogger.Info(fmt.Sprintf("Application initializing : version %q", conf.Build))

	core.InitValidators(p.validate, p.translator)
	user.InitValidators(p.validate, p.translator)
	lead.InitValidators(p.validate, p.translator)
	comms.InitValidators(p.validate, p.translator)
	catalog.InitValidators(p.validate, p.translator)

	core.ParseEmailTemplates(conf, apiLogger)

	user.LoadCommonPasswords(apiLogger)

	if db := p.store.DB; db != nil {
		defer func() {
			if err := db.Close(); err != nil {
				p.store.Logger.Fatal("Failed to close", err)
			}
		}()
	}
	defer apiLogger.Info("Application stopped")

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
			apiLogger.Error(fmt.Sprintf("debug server closed: %v", err), err)
		}
	}()

	// =========================================================================
	// Start Background Jobs

	p.scheduler.Start()
	defer func() {
		<-p.scheduler.Stop().Done()
	}()

	// =========================================================================
	// Start API Service

	go func() {
		apiLogger.Info(fmt.Sprintf("API listening on %s", conf.Server.Address()))
		p.server.Start()
	}()

	// =========================================================================
	// Shutdown

	select {
	case err := <-p.server.Errors():
		apiLogger.Fatal(fmt.Sprintf("server error: %v", err), err)

	case sig := <-p.server.ShutdownSignal():
		apiLogger.Info(fmt.Sprintf("%v: Start shutdown...", sig))

		// give outstanding requests a deadline for completion
		ctx, cancel := context.WithTimeout(context.Background(), conf.Server.ShutdownTimeout)
		defer cancel()

		// asking listener to shut down and shed load
		if err := p.server.Shutdown(ctx); err != nil {
			apiLogger.Error(fmt.Sprintf("could not stop server gracefully: %v", err), err)

			if err = p.server.Close(); err != nil {
				apiLogger.Fatal(fmt.Sprintf("could not force stop server: %v", err), err)
			}
		}
	}
}

func must(err error) {
	if err != nil {
		log.Fatal(err)
	}
}

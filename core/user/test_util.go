package user

import (
	"github.com/trezcool/admitflow/core"
)

// NewServiceMock returns a Service wired for tests: pair it with a synchronous email service
// mock so that reset emails are sent before the request returns.
func NewServiceMock(repo Repository, mailSvc core.EmailService, conf *core.Config, logger core.Logger) Service {
	if conf == nil {
		conf = core.NewTestConfig()
	}
	return &service{
		repo:    repo,
		mailSvc: mailSvc,
		conf:    conf,
		logger:  logger,
	}
}

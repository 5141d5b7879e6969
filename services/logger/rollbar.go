package logsvc

import (
	"log"
	"regexp"
	"strings"

	"github.com/rollbar/rollbar-go"
	"github.com/rollbar/rollbar-go/errors"

	"github.com/trezcool/admitflow/core"
)

// student contact details & credentials never leave the CRM
var scrubFields = regexp.MustCompile(`(?i)password|token|secret|api_?key|phone|contact_?number|email`)

// RollbarLogger prints every entry to a std logger and reports it to Rollbar when enabled.
// Leads are reported by ID and enquiry number only.
type RollbarLogger struct {
	std *log.Logger
}

var _ core.Logger = (*RollbarLogger)(nil)

func NewRollbarLogger(std *log.Logger, conf *core.Config) *RollbarLogger {
	rollbar.SetToken(conf.RollbarToken)
	rollbar.SetEnvironment(strings.ToLower(conf.Env))
	rollbar.SetServerHost(conf.Server.Host)
	rollbar.SetCodeVersion(conf.Build)
	rollbar.SetStackTracer(errors.StackTracer)
	rollbar.SetScrubFields(scrubFields)
	rollbar.SetCustom(map[string]interface{}{"app": conf.AppName})
	rollbar.SetEnabled(conf.RollbarToken != "" && !conf.TestMode)
	return &RollbarLogger{std: std}
}

func (l RollbarLogger) Enable(enabled bool) {
	rollbar.SetEnabled(enabled)
}

// prepare turns logger args into rollbar args: msg, errors, then one extras map holding
// the given maps and the lead context. The first user found becomes the rollbar person.
func (l RollbarLogger) prepare(msg string, args []interface{}) []interface{} {
	var person core.LogPerson
	extras := make(map[string]interface{})
	newArgs := make([]interface{}, 0, len(args)+2)
	newArgs = append(newArgs, msg)

	for _, arg := range args {
		switch v := arg.(type) {
		case core.LogPerson:
			if person == nil {
				person = v
			}
		case core.LogLead:
			id, enq := v.LogLead()
			extras["lead_id"] = id
			if enq != "" {
				extras["enquiry_number"] = enq
			}
		case map[string]interface{}:
			for k, val := range v {
				extras[k] = val
			}
		default:
			newArgs = append(newArgs, arg)
		}
	}

	if person != nil {
		id, username, email := person.LogIdentity()
		rollbar.SetPerson(id, username, email)
	} else {
		rollbar.ClearPerson()
	}
	if len(extras) > 0 {
		newArgs = append(newArgs, extras)
	}
	return newArgs
}

func (l RollbarLogger) print(level, msg string, args []interface{}) {
	var ctx []string
	for _, arg := range args {
		switch v := arg.(type) {
		case core.LogPerson:
			id, _, _ := v.LogIdentity()
			ctx = append(ctx, "user="+id)
		case core.LogLead:
			id, enq := v.LogLead()
			ctx = append(ctx, "lead="+id)
			if enq != "" {
				ctx = append(ctx, "enquiry="+enq)
			}
		}
	}
	if len(ctx) > 0 {
		msg += " [" + strings.Join(ctx, " ") + "]"
	}
	l.std.Printf("[%s] %s", level, msg)

	for _, arg := range args {
		switch arg.(type) {
		case core.LogPerson, core.LogLead:
		default:
			l.std.Printf("%+v", arg)
		}
	}
}

func (l RollbarLogger) Debug(msg string, args ...interface{}) {
	rollbar.Debug(l.prepare(msg, args)...)
	l.print("DEBUG", msg, args)
}

func (l RollbarLogger) Info(msg string, args ...interface{}) {
	rollbar.Info(l.prepare(msg, args)...)
	l.print("INFO", msg, args)
}

func (l RollbarLogger) Warn(msg string, args ...interface{}) {
	rollbar.Warning(l.prepare(msg, args)...)
	l.print("WARN", msg, args)
}

func (l RollbarLogger) Error(msg string, args ...interface{}) {
	rollbar.Error(l.prepare(msg, args)...)
	l.print("ERROR", msg, args)
}

func (l RollbarLogger) Fatal(msg string, args ...interface{}) {
	rollbar.Critical(l.prepare(msg, args)...)
	l.print("FATAL", msg, args)
	l.std.Fatal(msg)
}

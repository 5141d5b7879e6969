package core

// Logger logs messages with optional context arguments.
// expected args: error | map[string]interface{} | a value identifying the current user
type Logger interface {
	Debug(msg string, args ...interface{})
	Info(msg string, args ...interface{})
	Warn(msg string, args ...interface{})
	Error(msg string, args ...interface{})
	Fatal(msg string, args ...interface{})
}

// LogPerson is implemented by values that identify a logged in user.
type LogPerson interface {
	LogIdentity() (id, username, email string)
}

// LogLead is implemented by values tied to a lead. Loggers record only these identifiers,
// never the student's contact details.
type LogLead interface {
	LogLead() (id, enquiryNumber string)
}

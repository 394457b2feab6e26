package core

// Person identifies the authenticated caller attached to a log entry.
type Person struct {
	ID    string
	Email string
	Role  string
}

// Logger is implemented by services/logger.
// expected args: error | map[string]interface{} | Person
type Logger interface {
	Debug(msg string, args ...interface{})
	Info(msg string, args ...interface{})
	Warn(msg string, args ...interface{})
	Error(msg string, args ...interface{})
	Fatal(msg string, args ...interface{})
}

package errors

import "sync"

var (
	defaultHandler *ErrorHandler
	once           sync.Once
)

// GetDefaultHandler lazily builds the process-wide handler.
func GetDefaultHandler() (*ErrorHandler, error) {
	var err error
	once.Do(func() {
		defaultHandler, err = NewErrorHandler()
	})
	return defaultHandler, err
}

// HandleError reports err through the default handler. Falls back to stderr when no log file
// can be opened.
func HandleError(err error) {
	handler, handlerErr := GetDefaultHandler()
	if handlerErr != nil || handler == nil {
		handler = newConsoleOnlyHandler()
	}
	handler.Handle(err)
}

// resetDefaultHandler resets the singleton for testing purposes
func resetDefaultHandler() {
	defaultHandler = nil
	once = sync.Once{}
}

package testutils

import (
	"fmt"
	"runtime"
	"testing"
)

// ErrorHere reports a test error annotated with the file and line of
// the caller, so failures inside shared helpers still point at the
// test that triggered them.
func ErrorHere(test *testing.T, str string, args ...interface{}) {
	_, file, line, _ := runtime.Caller(1)
	info := fmt.Sprintf("[%s:%d] ", file, line)
	test.Errorf(info+str, args...)
}

// FatalHere is ErrorHere, but stops the test.
func FatalHere(test *testing.T, str string, args ...interface{}) {
	_, file, line, _ := runtime.Caller(1)
	info := fmt.Sprintf("[%s:%d] ", file, line)
	test.Fatalf(info+str, args...)
}

package monitoring

import (
	"fmt"
	"testing"
)

func TestSetLogger(t *testing.T) {
	original := Logf
	defer func() { Logf = original }()

	var got string
	SetLogger(func(format string, v ...interface{}) { got = fmt.Sprintf(format, v...) })
	Logf("level %d done", 3)
	if got != "level 3 done" {
		t.Errorf("custom logger got %q", got)
	}

	got = ""
	SetLogger(nil)
	Logf("dropped")
	if got != "" {
		t.Errorf("no-op logger forwarded %q", got)
	}
}

func TestLogf_Default(t *testing.T) {
	if Logf == nil {
		t.Fatal("Logf should not be nil by default")
	}
}

package log

import (
	stdlog "log"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestLevels(t *testing.T) {
	var buf strings.Builder
	out, flags := stdlog.Writer(), stdlog.Flags()
	SetOutput(&buf)
	stdlog.SetFlags(0)
	defer func() {
		SetOutput(out)
		stdlog.SetFlags(flags)
		SetVerbose(false)
	}()

	Infof("hidden %d", 1)
	Warningf("ignoring #%s", "define")
	SetVerbose(true)
	Infof("parsed %d files", 2)

	assert.Equal(t, "WARNING: ignoring #define\nparsed 2 files\n", buf.String())
}

package buildinfo

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestContextDefaults(t *testing.T) {
	t.Parallel()

	var nilCtx *Context
	assert.Equal(t, "dev", nilCtx.GetVersion())
	assert.Equal(t, "unknown", nilCtx.GetBuildDate())

	c := &Context{Version: "v1.2.0", BuildDate: "2025-03-14"}
	assert.Equal(t, "shiftledger@v1.2.0", c.Release())
	assert.Equal(t, "v1.2.0 (built 2025-03-14)", c.String())
	assert.Equal(t, "shiftledger@dev", (&Context{}).Release())
}

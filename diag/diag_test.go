package diag

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestWarningsCollectAndFilter(t *testing.T) {
	var ws Warnings
	ws.NumericFormat("Connector@port", "80a", errors.New("invalid syntax"))
	ws.Add(Warning{Kind: Ignored, Subject: "wrapper.conf line 3"})

	assert.Equal(t, 2, ws.Len())
	num := ws.OfKind(NumericFormat)
	if assert.Len(t, num, 1) {
		assert.Equal(t, "Connector@port", num[0].Subject)
		assert.Equal(t, `numeric-format: Connector@port (value "80a"): invalid syntax`, num[0].String())
	}
}

func TestNilWarningsIsSafe(t *testing.T) {
	var ws *Warnings
	ws.NumericFormat("x", "y", nil)
	assert.Equal(t, 0, ws.Len())
	assert.Nil(t, ws.Items())
}

func TestBooleanFormat(t *testing.T) {
	var ws Warnings
	ws.BooleanFormat("Context@reloadable", "yes")
	got := ws.OfKind(BooleanFormat)
	if assert.Len(t, got, 1) {
		assert.Equal(t, `boolean-format: Context@reloadable (value "yes")`, got[0].String())
	}
}

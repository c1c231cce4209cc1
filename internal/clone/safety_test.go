package clone

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidate(t *testing.T) {
	rules := Rules{Marker: "_test", LiveDatabase: "shop"}

	tests := []struct {
		name   string
		source string
		target string
		rules  Rules
		reason string
	}{
		{name: "ok", source: "shop", target: "shop_test"},
		{name: "ok other source", source: "erp", target: "erp_test_2"},
		{name: "no marker", source: "shop", target: "production", reason: "does not contain the marker"},
		{name: "target is live", source: "erp", target: "shop", reason: "live database"},
		{name: "live carries marker", source: "erp", target: "shop_test", rules: Rules{Marker: "_test", LiveDatabase: "shop_test"}, reason: "live database"},
		{name: "target is source", source: "shop_test", target: "shop_test", reason: "is the source"},
		{name: "source is a copy", source: "shop_test", target: "shop_test2", reason: "itself a copy"},
		{name: "empty target", source: "shop", reason: "target database is empty"},
		{name: "empty source", target: "shop_test", reason: "source database is empty"},
		{name: "no marker configured", source: "shop", target: "shop_test", rules: Rules{LiveDatabase: "shop"}, reason: "no target marker"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := rules
			if tt.rules != (Rules{}) {
				r = tt.rules
			}
			err := r.Validate(Request{SourceDatabase: tt.source, TargetDatabase: tt.target})
			if tt.reason == "" {
				require.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.True(t, errors.Is(err, ErrPreflightRejected))
			var pe *PreflightError
			require.True(t, errors.As(err, &pe))
			assert.Contains(t, pe.Reason, tt.reason)
		})
	}
}

func TestDefaultTarget(t *testing.T) {
	assert.Equal(t, "shop_test", Rules{Marker: "_test"}.DefaultTarget("shop"))
}

func TestOutcomeString(t *testing.T) {
	assert.Equal(t, "Success(shop -> shop_test)", Outcome{Source: "shop", Target: "shop_test"}.String())
	assert.Equal(t, "Failed(DumpSource, boom)", Outcome{Stage: StageDumpSource, Detail: "boom"}.String())
	assert.False(t, Outcome{Stage: StageRestoreTarget}.DataIntact())
	assert.True(t, Outcome{Stage: StagePostProcess}.DataIntact())
}

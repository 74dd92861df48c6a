package sim

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParams_Float_MissingIsConfigError(t *testing.T) {
	_, err := Params{}.Float("lamp", "voltage")

	var cerr *ConfigError
	require.True(t, errors.As(err, &cerr))
	assert.Contains(t, cerr.Error(), `"lamp:voltage"`)
}

func TestParams_Float_ConvertsIntegers(t *testing.T) {
	p := Params{ParamKey("lamp", "voltage"): 220}

	v, err := p.Float("lamp", "voltage")

	require.NoError(t, err)
	assert.Equal(t, 220.0, v)
}

func TestParams_Float_RejectsText(t *testing.T) {
	_, err := Params{"lamp:voltage": "high"}.Float("lamp", "voltage")
	assert.Error(t, err)
}

func TestParams_FloatOr_DefaultWhenAbsent(t *testing.T) {
	v, err := Params{}.FloatOr("lamp", "basePower", 40)
	require.NoError(t, err)
	assert.Equal(t, 40.0, v)
}

func TestParams_DurationOr_AcceptsStringsAndSeconds(t *testing.T) {
	p := Params{"m:step": "10m", "m:other": 90, "m:bad": "soon"}

	d, err := p.DurationOr("m", "step", time.Hour)
	require.NoError(t, err)
	assert.Equal(t, 10*time.Minute, d)

	d, err = p.DurationOr("m", "other", time.Hour)
	require.NoError(t, err)
	assert.Equal(t, 90*time.Second, d)

	d, err = p.DurationOr("m", "absent", time.Hour)
	require.NoError(t, err)
	assert.Equal(t, time.Hour, d)

	_, err = p.DurationOr("m", "bad", time.Hour)
	assert.Error(t, err)
}

func TestParams_MandatoryDurationAndText(t *testing.T) {
	p := Params{"m:step": "1h", "m:name": "kitchen", "m:count": 3}

	d, err := p.Duration("m", "step")
	require.NoError(t, err)
	assert.Equal(t, time.Hour, d)
	_, err = p.Duration("m", "absent")
	assert.ErrorContains(t, err, `missing mandatory run parameter "m:absent"`)

	name, err := p.Text("m", "name")
	require.NoError(t, err)
	assert.Equal(t, "kitchen", name)
	_, err = p.Text("m", "count")
	assert.ErrorContains(t, err, "want text")
}

func TestParams_Merge_OtherWins(t *testing.T) {
	base := Params{"a:x": 1, "a:y": 2}
	merged := base.Merge(Params{"a:y": 3})

	assert.Equal(t, Params{"a:x": 1, "a:y": 3}, merged)
	assert.Equal(t, 2, base["a:y"], "receiver must not be modified")
}

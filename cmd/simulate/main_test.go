package main

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestOperationMetrics(t *testing.T) {
	var om OperationMetrics
	for i := 1; i <= 100; i++ {
		om.Record(time.Duration(i)*time.Millisecond, i%10 != 0, i%10 == 0)
	}
	om.Record(time.Millisecond, false, false)

	assert.EqualValues(t, 101, om.Total)
	assert.EqualValues(t, 90, om.Success)
	assert.EqualValues(t, 10, om.Conflict)
	assert.EqualValues(t, 1, om.Error)

	_, lo, hi, p50, p95 := om.Stats()
	assert.Equal(t, time.Millisecond, lo)
	assert.Equal(t, 100*time.Millisecond, hi)
	assert.Equal(t, 50*time.Millisecond, p50)
	assert.Equal(t, 95*time.Millisecond, p95)
}

func TestValidateConfig(t *testing.T) {
	ok := SimConfig{Rounds: 1, Racers: 2, CancelRate: 0.5}
	assert.NoError(t, validateConfig(ok))

	for name, cfg := range map[string]SimConfig{
		"no rounds":    {Rounds: 0, Racers: 2},
		"single racer": {Rounds: 1, Racers: 1},
		"cancel rate":  {Rounds: 1, Racers: 2, CancelRate: 1.5},
	} {
		assert.Error(t, validateConfig(cfg), name)
	}
}

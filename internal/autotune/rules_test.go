package autotune

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDerive_ZieglerNichols(t *testing.T) {
	got, err := Derive(ZieglerNichols, 10, 60)
	require.NoError(t, err)

	kp := 10.0 / 34
	assert.InDelta(t, 0.2941176, got.Kp, 1e-6)
	assert.InDelta(t, kp/1.5, got.Ki, 1e-6)
	assert.InDelta(t, kp*0.375, got.Kd, 1e-6)
	assert.InDelta(t, 0.1960784, got.Ki, 1e-6)
	assert.InDelta(t, 0.1102941, got.Kd, 1e-6)
}

func TestDerive_AllRules(t *testing.T) {
	table := map[Rule]Divisors{
		ZieglerNichols: {34, 40, 160},
		TyreusLuyben:   {44, 9, 126},
		CianconeMarlin: {66, 88, 162},
		PessenIntegral: {28, 50, 133},
		SomeOvershoot:  {60, 40, 60},
		NoOvershoot:    {100, 40, 60},
		Brewing:        {2.5, 3, 3600},
	}
	require.Len(t, Rules(), len(table))
	for _, r := range Rules() {
		d, ok := table[r]
		require.True(t, ok, "rule %s", r)
		got, err := Derive(r, 12, 30)
		require.NoError(t, err)
		kp := 12 / d.P
		assert.InDelta(t, kp, got.Kp, 1e-12, "rule %s", r)
		assert.InDelta(t, kp/(30/d.I), got.Ki, 1e-12, "rule %s", r)
		assert.InDelta(t, kp*(30/d.D), got.Kd, 1e-12, "rule %s", r)
	}
}

func TestRules_Order(t *testing.T) {
	rules := Rules()
	assert.Equal(t, ZieglerNichols, rules[0])
	assert.Equal(t, Brewing, rules[len(rules)-1])

	// копия: изменение результата не портит таблицу
	rules[0] = "mutated"
	assert.Equal(t, ZieglerNichols, Rules()[0])
}

func TestParseRule(t *testing.T) {
	r, err := ParseRule(" Tyreus-Luyben ")
	require.NoError(t, err)
	assert.Equal(t, TyreusLuyben, r)

	_, err = ParseRule("")
	assert.ErrorIs(t, err, ErrUnknownTuningRule)

	_, err = ParseRule("cohen-coon")
	assert.ErrorIs(t, err, ErrUnknownTuningRule)
}

func TestDerive_UnknownRule(t *testing.T) {
	_, err := Derive("cohen-coon", 1, 1)
	assert.ErrorIs(t, err, ErrUnknownTuningRule)

	_, err = RuleDivisors("")
	assert.ErrorIs(t, err, ErrUnknownTuningRule)
}

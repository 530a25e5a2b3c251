package autotune

import (
	"fmt"
	"strings"
)

// Rule — имя опубликованного правила настройки (делители Ku/Pu → Kp, Ki, Kd).
type Rule string

const (
	ZieglerNichols Rule = "ziegler-nichols"
	TyreusLuyben   Rule = "tyreus-luyben"
	CianconeMarlin Rule = "ciancone-marlin"
	PessenIntegral Rule = "pessen-integral"
	SomeOvershoot  Rule = "some-overshoot"
	NoOvershoot    Rule = "no-overshoot"
	Brewing        Rule = "brewing"
)

// Divisors — делители (dP, dI, dD) правила.
type Divisors struct {
	P float64 `json:"p"`
	I float64 `json:"i"`
	D float64 `json:"d"`
}

// PIDParams — коэффициенты регулятора, выведенные из Ku и Pu.
type PIDParams struct {
	Kp float64 `json:"kp"`
	Ki float64 `json:"ki"`
	Kd float64 `json:"kd"`
}

// Порядок совпадает с таблицей правил; map ниже — для поиска.
var ruleOrder = []Rule{
	ZieglerNichols,
	TyreusLuyben,
	CianconeMarlin,
	PessenIntegral,
	SomeOvershoot,
	NoOvershoot,
	Brewing,
}

var ruleTable = map[Rule]Divisors{
	ZieglerNichols: {34, 40, 160},
	TyreusLuyben:   {44, 9, 126},
	CianconeMarlin: {66, 88, 162},
	PessenIntegral: {28, 50, 133},
	SomeOvershoot:  {60, 40, 60},
	NoOvershoot:    {100, 40, 60},
	Brewing:        {2.5, 3, 3600},
}

// Rules возвращает все встроенные правила в порядке таблицы.
func Rules() []Rule {
	out := make([]Rule, len(ruleOrder))
	copy(out, ruleOrder)
	return out
}

// ParseRule проверяет имя правила. Регистр и пробелы по краям игнорируются.
func ParseRule(s string) (Rule, error) {
	r := Rule(strings.ToLower(strings.TrimSpace(s)))
	if _, ok := ruleTable[r]; !ok {
		return "", fmt.Errorf("%w: %q", ErrUnknownTuningRule, s)
	}
	return r, nil
}

// RuleDivisors возвращает делители правила.
func RuleDivisors(r Rule) (Divisors, error) {
	d, ok := ruleTable[r]
	if !ok {
		return Divisors{}, fmt.Errorf("%w: %q", ErrUnknownTuningRule, string(r))
	}
	return d, nil
}

// Derive считает коэффициенты по правилу: Kp = Ku/dP, Ki = Kp/(Pu/dI), Kd = Kp*(Pu/dD).
func Derive(r Rule, ku, pu float64) (PIDParams, error) {
	d, err := RuleDivisors(r)
	if err != nil {
		return PIDParams{}, err
	}
	kp := ku / d.P
	return PIDParams{
		Kp: kp,
		Ki: kp / (pu / d.I),
		Kd: kp * (pu / d.D),
	}, nil
}

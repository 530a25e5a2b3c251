package autotune

import "errors"

// Ошибки валидации параметров New. Проверяются через errors.Is.
var (
	ErrMissingSetpoint       = errors.New("setpoint must be specified")
	ErrInvalidOutputStep     = errors.New("output step must be greater or equal to 1")
	ErrInvalidSampleInterval = errors.New("sample interval must be at least 1s")
	ErrInvalidLookback       = errors.New("lookback must be greater or equal to sample interval")
	ErrInvalidOutputRange    = errors.New("output min must be less than output max")
	ErrInvalidNoiseband      = errors.New("noiseband must be a non-negative number")
)

var (
	// ErrUnknownTuningRule — имени правила нет в таблице.
	ErrUnknownTuningRule = errors.New("unknown tuning rule")
	// ErrNotTuned — коэффициенты запрошены до успешного завершения настройки.
	ErrNotTuned = errors.New("autotune has not succeeded")
)

package contract

import "errors"

var (
	ErrPlanning             = errors.New("planner produced no usable plan")
	ErrContractNotFound     = errors.New("tool contract not found")
	ErrRequiredInputMissing = errors.New("required input missing")
	ErrUpstream             = errors.New("upstream api call failed")

	ErrModelInvoke     = errors.New("model invoke failed")
	ErrSchemaViolation = errors.New("model response violates schema")
	ErrValidation      = errors.New("validation failed")
)

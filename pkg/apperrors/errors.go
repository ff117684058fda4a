package apperrors

import "errors"

var (
	ErrNotFound             = errors.New("not found")
	ErrConflict             = errors.New("conflict")
	ErrUnsupportedDatabase  = errors.New("unsupported database type")
	ErrEmptyJoin            = errors.New("join requires at least one condition")
	ErrInvalidJoinCondition = errors.New("invalid join condition")
	ErrEmptyGraph           = errors.New("constraint graph has no nodes")
	ErrUnknownStrategy      = errors.New("unknown search strategy")
	ErrUnknownDependency    = errors.New("unknown dependency kind")
	ErrBudgetExhausted      = errors.New("search budget exhausted")
	ErrCheckpointVersion    = errors.New("checkpoint version mismatch")
	ErrCheckpointStrategy   = errors.New("checkpoint written by a different strategy")
	ErrStreamDone           = errors.New("stream exhausted")
	ErrInconsistentHead     = errors.New("head equalities form a contradictory cycle")
)

package errors

import (
	stderrors "errors"

	"github.com/pkg/errors"
)

var (
	Wrap      = errors.Wrap
	Wrapf     = errors.Wrapf
	Errorf    = errors.Errorf
	New       = errors.New
	WithStack = errors.WithStack
	Cause     = errors.Cause
	Is        = errors.Is
	As        = errors.As
	Join      = stderrors.Join
)

package dbkeeper

import dkerrors "github.com/nonibytes/dbkeeper/dbkeeper/errors"

type Error = dkerrors.Error
type ErrorKind = dkerrors.ErrorKind

const (
	ErrConnect     = dkerrors.ErrConnect
	ErrCompile     = dkerrors.ErrCompile
	ErrInvalidJSON = dkerrors.ErrInvalidJSON
	ErrNotFound    = dkerrors.ErrNotFound
	ErrUnsupported = dkerrors.ErrUnsupported
	ErrAction      = dkerrors.ErrAction
	ErrConfig      = dkerrors.ErrConfig
	ErrAuth        = dkerrors.ErrAuth
	ErrValidation  = dkerrors.ErrValidation
)

func NewError(kind ErrorKind, msg string) *Error          { return dkerrors.New(kind, msg) }
func Wrap(kind ErrorKind, msg string, cause error) *Error { return dkerrors.Wrap(kind, msg, cause) }
func IsKind(err error, kind ErrorKind) bool               { return dkerrors.IsKind(err, kind) }

package breaker

import "github.com/ceyewan/registrar/xerrors"

var (
	ErrConfigNil = xerrors.New("breaker: config is nil")
	ErrKeyEmpty  = xerrors.New("breaker: key is empty")
	ErrOpenState = xerrors.New("breaker: circuit breaker is open")
)

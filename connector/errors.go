package connector

import "github.com/ceyewan/registrar/xerrors"

var (
	ErrNotConnected = xerrors.New("connector: not connected")
	ErrClosed       = xerrors.New("connector: already closed")
	ErrConnection   = xerrors.New("connector: connection failed")
	ErrConfig       = xerrors.New("connector: invalid config")
	ErrHealthCheck  = xerrors.New("connector: health check failed")
)

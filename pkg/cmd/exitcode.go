package cmd

import (
	"errors"
	"fmt"

	"github.com/encops/updatectl/pkg/downtime"
	"github.com/encops/updatectl/pkg/lock"
	"github.com/encops/updatectl/pkg/policy"
)

// Process exit codes. Each fatal error category gets its own code so
// wrapping automation can tell a refused run from a broken configuration.
const (
	exitOK       = 0
	exitGeneric  = 1
	exitBusy     = 2
	exitLoad     = 3
	exitDowntime = 4
	exitRefused  = 5
)

type ErrWithCode struct {
	Err  error
	Code int
}

func (e ErrWithCode) Unwrap() error {
	return e.Err
}

func (e ErrWithCode) Error() string {
	return fmt.Sprintf("%d: %s", e.Code, e.Err.Error())
}

func NewErrWithCode(err error, code int) ErrWithCode {
	return ErrWithCode{
		Err:  err,
		Code: code,
	}
}

func exitCode(err error) int {
	if err == nil {
		return exitOK
	}
	switch {
	case errors.Is(err, lock.ErrBusy):
		return exitBusy
	case errors.Is(err, downtime.ErrFormat),
		errors.Is(err, downtime.ErrInconsistentYears),
		errors.Is(err, downtime.ErrRange):
		return exitDowntime
	case errors.Is(err, policy.ErrRefused):
		return exitRefused
	}
	cr := ErrWithCode{}
	if errors.As(err, &cr) {
		return cr.Code
	}
	return exitGeneric
}

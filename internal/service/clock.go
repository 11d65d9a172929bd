package service

import "time"

// Clock is the time source of the ledger. Ledger time has second resolution.
type Clock interface {
	Now() time.Time
}

type systemClock struct{}

func (systemClock) Now() time.Time { return time.Now() }

// SystemClock returns the wall clock.
func SystemClock() Clock { return systemClock{} }

func ledgerNow(c Clock) time.Time { return c.Now().UTC().Truncate(time.Second) }

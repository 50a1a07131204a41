package quota

import (
	"errors"
	"fmt"
)

var (
	// ErrUserExists is returned by Register when the username is taken.
	ErrUserExists = errors.New("username already registered")

	// ErrNotFound is returned when the named user does not exist.
	ErrNotFound = errors.New("user not found")

	// ErrInactive is returned when the account has been deactivated.
	ErrInactive = errors.New("account is inactive")

	// ErrReservationSettled is returned when a reservation is committed or
	// rolled back more than once.
	ErrReservationSettled = errors.New("reservation already settled")
)

// DailyExceededError reports a request that would pass the daily window limit.
type DailyExceededError struct {
	Used      int
	Limit     int
	Remaining int
}

func (e *DailyExceededError) Error() string {
	return fmt.Sprintf("daily limit exceeded (%d/%d, %d remaining)", e.Used, e.Limit, e.Remaining)
}

// MonthlyExceededError reports a request that would pass the monthly window limit.
type MonthlyExceededError struct {
	Used      int
	Limit     int
	Remaining int
}

func (e *MonthlyExceededError) Error() string {
	return fmt.Sprintf("monthly limit exceeded (%d/%d, %d remaining)", e.Used, e.Limit, e.Remaining)
}

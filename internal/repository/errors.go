// Package repository implements the booking ports on MySQL.  Driver
// errors that carry domain meaning are translated into the booking
// package's sentinels so handlers can map them to HTTP statuses.
package repository

import (
	"errors"
	"fmt"
	"strings"

	"github.com/go-sql-driver/mysql"

	"github.com/iliyamo/showtime-booking/internal/booking"
)

// MySQL server error numbers that signal a lost race.
const (
	errDupEntry        = 1062 // ER_DUP_ENTRY: a concurrent hold inserted the same seat claim first
	errLockWaitTimeout = 1205 // ER_LOCK_WAIT_TIMEOUT
	errDeadlock        = 1213 // ER_LOCK_DEADLOCK
)

// translate maps driver errors onto booking sentinels.  Anything else is
// returned unchanged.
func translate(err error) error {
	var me *mysql.MySQLError
	if !errors.As(err, &me) {
		return err
	}
	switch me.Number {
	case errDupEntry, errLockWaitTimeout, errDeadlock:
		return fmt.Errorf("%w: %s", booking.ErrConflict, me.Message)
	}
	return err
}

// placeholders returns "?,?,?" for n arguments.
func placeholders(n int) string {
	if n <= 0 {
		return ""
	}
	return strings.Repeat("?,", n-1) + "?"
}

func uint64Args(ids []uint64) []interface{} {
	args := make([]interface{}, len(ids))
	for i, id := range ids {
		args[i] = id
	}
	return args
}

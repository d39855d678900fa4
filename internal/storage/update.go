package storage

import (
	"errors"
	"strconv"
	"strings"
)

// ErrEmptyUpdate is returned before any statement is built when an
// update names no field at all.
var ErrEmptyUpdate = errors.New("no fields to update")

// buildUserUpdate assembles an update statement touching only the
// supplied fields. Presence is decided by pointer, not by value, so
// an explicit empty string still produces an assignment clause.
// Placeholders are numbered in field order with the target id last.
func buildUserUpdate(id int64, upd UserUpdate) (string, []interface{}, error) {
	if upd.Empty() {
		return "", nil, ErrEmptyUpdate
	}

	var (
		clauses []string
		args    []interface{}
	)

	add := func(column string, value string) {
		args = append(args, value)
		clauses = append(clauses, column+" = $"+strconv.Itoa(len(args)))
	}

	if upd.Username != nil {
		add("username", *upd.Username)
	}
	if upd.Name != nil {
		add("name", *upd.Name)
	}
	if upd.Token != nil {
		add("token", *upd.Token)
	}

	args = append(args, id)
	sql := "update users set " + strings.Join(clauses, ", ") +
		" where id = $" + strconv.Itoa(len(args))

	return sql, args, nil
}

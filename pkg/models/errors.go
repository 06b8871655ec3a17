package models

import "errors"

// ErrDuplicatedKey is returned by stores when an insert collides with an
// existing (tenant, partner, monitored resource) record.
var ErrDuplicatedKey = errors.New("duplicated key")

package utils

import "errors"

// ErrorRecordNotFound is the lookup miss error the model layer returns instead
// of leaking gorm.ErrRecordNotFound to its callers.
var ErrorRecordNotFound = errors.New("record not found")

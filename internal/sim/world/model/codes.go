package model

import "fmt"

// Code is the status returned by every command. Negative values are errors; scripts branch
// on them instead of catching exceptions.
type Code int

const (
	OK                 Code = 0
	ErrNotOwner        Code = -1
	ErrNoPath          Code = -2
	ErrNameExists      Code = -3
	ErrBusy            Code = -4
	ErrNotFound        Code = -5
	ErrNotEnoughEnergy Code = -6
	ErrInvalidTarget   Code = -7
	ErrFull            Code = -8
	ErrNotInRange      Code = -9
	ErrInvalidArgs     Code = -10
	ErrTired           Code = -11
	ErrNoBodypart      Code = -12
)

type Category string

const (
	CategoryNone    Category = ""
	ValidationError Category = "validation"
	RangeError      Category = "range"
	ResourceError   Category = "resource"
	PathError       Category = "path"
	IdentityError   Category = "identity"
	OwnershipError  Category = "ownership"
	StateError      Category = "state"
)

func (c Code) Category() Category {
	switch c {
	case OK:
		return CategoryNone
	case ErrInvalidArgs, ErrInvalidTarget, ErrNotFound:
		return ValidationError
	case ErrNotInRange:
		return RangeError
	case ErrNotEnoughEnergy, ErrFull:
		return ResourceError
	case ErrNoPath:
		return PathError
	case ErrNameExists:
		return IdentityError
	case ErrNotOwner:
		return OwnershipError
	}
	return StateError
}

var codeNames = map[Code]string{
	OK:                 "OK",
	ErrNotOwner:        "ERR_NOT_OWNER",
	ErrNoPath:          "ERR_NO_PATH",
	ErrNameExists:      "ERR_NAME_EXISTS",
	ErrBusy:            "ERR_BUSY",
	ErrNotFound:        "ERR_NOT_FOUND",
	ErrNotEnoughEnergy: "ERR_NOT_ENOUGH_RESOURCES",
	ErrInvalidTarget:   "ERR_INVALID_TARGET",
	ErrFull:            "ERR_FULL",
	ErrNotInRange:      "ERR_NOT_IN_RANGE",
	ErrInvalidArgs:     "ERR_INVALID_ARGS",
	ErrTired:           "ERR_TIRED",
	ErrNoBodypart:      "ERR_NO_BODYPART",
}

func (c Code) String() string {
	if s, ok := codeNames[c]; ok {
		return s
	}
	return fmt.Sprintf("CODE(%d)", int(c))
}

// Codes maps constant names to codes; exported to scripts as globals.
func Codes() map[string]Code {
	out := make(map[string]Code, len(codeNames))
	for c, s := range codeNames {
		out[s] = c
	}
	return out
}

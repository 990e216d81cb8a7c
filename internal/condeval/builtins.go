package condeval

import (
	"math"
	"strings"

	"github.com/smilemakc/retecore/internal/errs"
	"github.com/smilemakc/retecore/internal/value"
)

func builtinLen(args []value.Value) (value.Value, error) {
	if len(args) != 1 {
		return value.Value{}, errs.New(errs.CodeInvalidInput, "len expects 1 argument", nil)
	}
	switch args[0].Kind() {
	case value.KindString:
		return value.Int(int64(len(args[0].String()))), nil
	case value.KindList:
		return value.Int(int64(len(args[0].List()))), nil
	case value.KindMap:
		return value.Int(int64(len(args[0].Map()))), nil
	default:
		return value.Value{}, errs.New(errs.CodeInvalidType, "len expects string, list, or map", nil)
	}
}

func builtinAbs(args []value.Value) (value.Value, error) {
	if len(args) != 1 {
		return value.Value{}, errs.New(errs.CodeInvalidInput, "abs expects 1 argument", nil)
	}
	f, ok := args[0].AsFloat()
	if !ok {
		return value.Value{}, errs.New(errs.CodeInvalidType, "abs expects a numeric argument", nil)
	}
	if args[0].Kind() == value.KindInt {
		i := args[0].Int()
		if i < 0 {
			i = -i
		}
		return value.Int(i), nil
	}
	return value.Float(math.Abs(f)), nil
}

func builtinUpper(args []value.Value) (value.Value, error) {
	if len(args) != 1 || args[0].Kind() != value.KindString {
		return value.Value{}, errs.New(errs.CodeInvalidType, "upper expects a string argument", nil)
	}
	return value.String(strings.ToUpper(args[0].String())), nil
}

func builtinLower(args []value.Value) (value.Value, error) {
	if len(args) != 1 || args[0].Kind() != value.KindString {
		return value.Value{}, errs.New(errs.CodeInvalidType, "lower expects a string argument", nil)
	}
	return value.String(strings.ToLower(args[0].String())), nil
}

func builtinRound(args []value.Value) (value.Value, error) {
	if len(args) != 1 {
		return value.Value{}, errs.New(errs.CodeInvalidInput, "round expects 1 argument", nil)
	}
	f, ok := args[0].AsFloat()
	if !ok {
		return value.Value{}, errs.New(errs.CodeInvalidType, "round expects a numeric argument", nil)
	}
	return value.Int(int64(math.Round(f))), nil
}

// Package calculator implements exact decimal arithmetic for the text bot.
package calculator

import (
	"context"
	"strings"

	"github.com/shopspring/decimal"
	"google.golang.org/genai"

	"geminilab/internal/tools"
	"geminilab/internal/tools/middleware"
	"geminilab/internal/tools/shared"
	"geminilab/pkg/errors"
)

const precision = 16

// MaxExponent bounds |b| for power
const MaxExponent = 1000

var maxExponent = decimal.NewFromInt(MaxExponent)

// Operations lists the supported operation names
var Operations = []string{"add", "subtract", "multiply", "divide", "power", "modulo"}

var ErrDivisionByZero = errors.New("division by zero")

// Calculate applies operation to a and b
func Calculate(operation string, a, b decimal.Decimal) (decimal.Decimal, error) {
	switch strings.ToLower(strings.TrimSpace(operation)) {
	case "add":
		return a.Add(b), nil
	case "subtract":
		return a.Sub(b), nil
	case "multiply":
		return a.Mul(b), nil
	case "divide":
		if b.IsZero() {
			return decimal.Zero, ErrDivisionByZero
		}
		return a.DivRound(b, precision), nil
	case "modulo":
		if b.IsZero() {
			return decimal.Zero, ErrDivisionByZero
		}
		return a.Mod(b), nil
	case "power":
		if b.Abs().GreaterThan(maxExponent) {
			return decimal.Zero, errors.NewValidationError("b", "exponent must be between -1000 and 1000", b.String())
		}
		result, err := a.PowWithPrecision(b, precision)
		if err != nil {
			return decimal.Zero, errors.Wrap(errors.ErrInvalidInput, err.Error())
		}
		return result, nil
	default:
		return decimal.Zero, errors.NewValidationError("operation", "unsupported, use one of "+strings.Join(Operations, ", "), operation)
	}
}

// NewTool is the calculator tool
func NewTool(deps shared.Deps) tools.Tool {
	ops := make([]string, len(Operations))
	copy(ops, Operations)

	params := tools.ObjectSchema(map[string]*genai.Schema{
		"operation": {
			Type:        genai.TypeString,
			Description: "The arithmetic operation to perform.",
			Enum:        ops,
		},
		"a": tools.NumberProperty("The first operand."),
		"b": tools.NumberProperty("The second operand."),
	}, "operation", "a", "b")

	return deps.Build(middleware.NewFactory("calculator",
		"Perform exact arithmetic on two numbers: add, subtract, multiply, divide, power or modulo.",
		params,
		func(ctx context.Context, args map[string]any) (any, error) {
			operation, err := tools.RequiredString(args, "operation")
			if err != nil {
				return nil, err
			}
			a, err := tools.NumberArg(args, "a")
			if err != nil {
				return nil, err
			}
			b, err := tools.NumberArg(args, "b")
			if err != nil {
				return nil, err
			}

			result, err := Calculate(operation, decimal.NewFromFloat(a), decimal.NewFromFloat(b))
			if err != nil {
				return nil, err
			}
			return result.String(), nil
		})).Build()
}

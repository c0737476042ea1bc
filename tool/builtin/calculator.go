// Package builtin provides the default tools registered by agentflow: a safe
// arithmetic calculator and a bounded file search.
package builtin

import (
	"context"
	"fmt"
	"strconv"

	"github.com/hupe1980/agentflow/tool"
)

// CalculatorName is the registry name of the calculator tool.
const CalculatorName = "calculator"

// CalculatorArgs is the calculator's parameter shape.
type CalculatorArgs struct {
	Expression string `json:"expression" description:"Arithmetic expression, optionally embedded in text"`
}

// CalculationResult is returned by the calculator tool.
type CalculationResult struct {
	Expression string  `json:"expression"`
	Result     float64 `json:"result"`
}

// String renders "2 + 2 = 4".
func (r CalculationResult) String() string {
	return r.Expression + " = " + strconv.FormatFloat(r.Result, 'g', -1, 64)
}

// NewCalculator returns the calculator tool. The expression parameter may be
// free text; its arithmetic portion is extracted and evaluated by a
// recursive-descent parser.
func NewCalculator() tool.Tool {
	return tool.NewFunctionToolFromStruct(
		CalculatorName,
		"Perform mathematical calculations",
		CalculatorArgs{},
		func(_ context.Context, args map[string]any) (any, error) {
			raw, _ := args["expression"].(string)
			expr := ExtractExpression(raw)
			if expr == "" {
				return nil, tool.NewToolError(CalculatorName, fmt.Sprintf("%v: no arithmetic found in %q", ErrInvalidExpression, raw), tool.CodeInvalidRequest)
			}
			v, err := Evaluate(expr)
			if err != nil {
				return nil, err
			}
			return CalculationResult{Expression: expr, Result: v}, nil
		},
	)
}

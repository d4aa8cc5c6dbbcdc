package builtin

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/expr-lang/expr"

	"github.com/taiagent/taiagent/internal/core"
	"github.com/taiagent/taiagent/internal/tools"
)

type currentTimeArgs struct {
	Format string `json:"format" jsonschema:"required" jsonschema_description:"The format of time.eg:'date-time' or 'date' or 'time'"`
}

// NewCurrentTime returns the get_current_time tool.
func NewCurrentTime(now func() time.Time) core.Tool {
	if now == nil {
		now = time.Now
	}
	return tools.Func("get_current_time", "Get the real time of the current user's timezone.",
		func(ctx context.Context, args currentTimeArgs) (any, error) {
			t := now()
			switch strings.ToLower(strings.TrimSpace(args.Format)) {
			case "date":
				return t.Format("2006-01-02"), nil
			case "time":
				return t.Format("15:04:05"), nil
			default:
				return t.Format("2006-01-02 15:04:05"), nil
			}
		})
}

type calculateArgs struct {
	Expression string `json:"expression" jsonschema:"required" jsonschema_description:"Arithmetic expression, e.g. '(3 + 4) * 2' or 'mean([1, 2, 3])'. Supports sum, mean, median, min, max, abs, round."`
}

const maxExpressionNodes = 1000

// NewCalculate returns the calculate tool.
func NewCalculate() core.Tool {
	return tools.Func("calculate", "Evaluate an arithmetic or statistics expression over literal numbers.",
		func(ctx context.Context, args calculateArgs) (any, error) {
			if strings.TrimSpace(args.Expression) == "" {
				return nil, fmt.Errorf("calculate: expression is required")
			}
			program, err := expr.Compile(args.Expression, expr.MaxNodes(maxExpressionNodes))
			if err != nil {
				return nil, fmt.Errorf("calculate: %w", err)
			}
			out, err := expr.Run(program, nil)
			if err != nil {
				return nil, fmt.Errorf("calculate: %w", err)
			}
			return out, nil
		})
}

type nopArgs struct {
	Reason string `json:"reason" jsonschema:"required" jsonschema_description:"Why no action is taken."`
}

// NewNop returns the nop tool, which echoes its reason.
func NewNop() core.Tool {
	return tools.Func("nop", "Take no action; returns the given reason.",
		func(ctx context.Context, args nopArgs) (any, error) {
			return args.Reason, nil
		})
}

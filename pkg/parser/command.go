package parser

import (
	"fmt"
	"regexp"
	"strings"

	"fuji-cli/pkg/mode"
	"fuji-cli/pkg/types"
)

// Leg is an amount of a token on one side of a position
type Leg struct {
	Amount string
	Symbol string
}

// Command is a parsed position command
type Command struct {
	Action     mode.ActionType
	Collateral *Leg
	Debt       *Leg
}

// Leg returns the leg of a side, or nil
func (c *Command) Leg(side types.AssetType) *Leg {
	if side == types.AssetDebt {
		return c.Debt
	}
	return c.Collateral
}

var clausePattern = regexp.MustCompile(`^(?:(DEPOSIT|WITHDRAW|BORROW|PAYBACK|REPAY|LEND)\s+)?(\d+\.?\d*)\s+([A-Z0-9.]+)$`)

type verb struct {
	side   types.AssetType
	action mode.ActionType
}

var verbs = map[string]verb{
	"DEPOSIT":  {types.AssetCollateral, mode.ActionAdd},
	"LEND":     {types.AssetCollateral, mode.ActionAdd},
	"WITHDRAW": {types.AssetCollateral, mode.ActionRemove},
	"BORROW":   {types.AssetDebt, mode.ActionAdd},
	"PAYBACK":  {types.AssetDebt, mode.ActionRemove},
	"REPAY":    {types.AssetDebt, mode.ActionRemove},
}

// ParseCommand parses a natural language position command
// Examples:
//   - "deposit 1 WETH and borrow 1000 USDC"
//   - "1 WETH 1000 USDC" (deposit and borrow)
//   - "payback 500 USDC and withdraw 0.5 WETH"
//   - "lend 10 WETH"
func ParseCommand(command string) (*Command, error) {
	command = strings.Join(strings.Fields(strings.ToUpper(command)), " ")
	if command == "" {
		return nil, fmt.Errorf("empty command")
	}

	clauses := strings.Split(command, " AND ")
	if len(clauses) == 1 {
		clauses = splitBare(command)
	}
	if len(clauses) > 2 {
		return nil, fmt.Errorf("at most one collateral and one debt amount can be given")
	}

	cmd := &Command{}
	var action *mode.ActionType
	for i, clause := range clauses {
		matches := clausePattern.FindStringSubmatch(strings.TrimSpace(clause))
		if matches == nil {
			return nil, fmt.Errorf("invalid command %q. Expected: '[deposit] <amount> <token> [and borrow <amount> <token>]'", clause)
		}

		// Without a verb the first amount is collateral, the second debt
		v := verb{side: types.AssetCollateral, action: mode.ActionAdd}
		if i == 1 {
			v.side = types.AssetDebt
		}
		if matches[1] != "" {
			v = verbs[matches[1]]
		} else if action != nil {
			v.action = *action
		}

		if action != nil && *action != v.action {
			return nil, fmt.Errorf("cannot add to and remove from a position at once")
		}
		action = &v.action

		leg := &Leg{Amount: matches[2], Symbol: matches[3]}
		if v.side == types.AssetDebt {
			if cmd.Debt != nil {
				return nil, fmt.Errorf("debt amount given twice")
			}
			cmd.Debt = leg
		} else {
			if cmd.Collateral != nil {
				return nil, fmt.Errorf("collateral amount given twice")
			}
			cmd.Collateral = leg
		}
	}
	cmd.Action = *action

	return cmd, nil
}

var barePattern = regexp.MustCompile(`^(\d+\.?\d*\s+[A-Z0-9.]+)\s+(\d+\.?\d*\s+[A-Z0-9.]+)$`)

// splitBare splits "1 WETH 1000 USDC" into its two legs
func splitBare(command string) []string {
	if m := barePattern.FindStringSubmatch(command); m != nil {
		return []string{m[1], m[2]}
	}
	return []string{command}
}

// ValidateCommand checks a command against the kind of position
func ValidateCommand(cmd *Command, lending bool) error {
	if cmd.Collateral == nil && cmd.Debt == nil {
		return fmt.Errorf("an amount is required")
	}
	if lending && cmd.Debt != nil {
		return fmt.Errorf("lending positions have no debt")
	}
	return nil
}

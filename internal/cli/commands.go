package cli

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"strings"
	"text/tabwriter"

	"github.com/atharvakonge/tradeshift/internal/export"
	"github.com/atharvakonge/tradeshift/internal/models"
	"github.com/google/subcommands"
	"github.com/shopspring/decimal"
)

type migrateCmd struct{}

func (*migrateCmd) Name() string     { return "migrate" }
func (*migrateCmd) Synopsis() string { return "create the database tables" }
func (*migrateCmd) Usage() string {
	return `migrate

  Creates missing tables and indexes in the configured database.
`
}
func (*migrateCmd) SetFlags(*flag.FlagSet) {}

func (*migrateCmd) Execute(ctx context.Context, _ *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	e, err := openEnv(ctx)
	if err != nil {
		return fail("%v", err)
	}
	defer e.Close()

	if err := e.db.Migrate(ctx); err != nil {
		return fail("%v", err)
	}
	fmt.Fprintf(e.out, "%s schema is up to date\n", e.db.Driver())
	return subcommands.ExitSuccess
}

type quoteCmd struct{}

func (*quoteCmd) Name() string     { return "quote" }
func (*quoteCmd) Synopsis() string { return "print current prices" }
func (*quoteCmd) Usage() string {
	return `quote <symbol>...

  Prints the current price of each symbol from the configured price source.
`
}
func (*quoteCmd) SetFlags(*flag.FlagSet) {}

func (*quoteCmd) Execute(ctx context.Context, f *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	if f.NArg() == 0 {
		fmt.Fprintln(os.Stderr, "Error: at least one symbol is required.")
		return subcommands.ExitUsageError
	}
	e, err := openEnv(ctx)
	if err != nil {
		return fail("%v", err)
	}
	defer e.Close()

	status := subcommands.ExitSuccess
	for _, arg := range f.Args() {
		symbol := models.NormalizeSymbol(arg)
		price, err := e.oracle.Quote(ctx, symbol)
		if err != nil {
			fmt.Fprintf(os.Stderr, "%s: %v\n", symbol, err)
			status = subcommands.ExitFailure
			continue
		}
		fmt.Fprintf(e.out, "%-8s %s\n", symbol, usd(price))
	}
	return status
}

type portfoliosCmd struct {
	user string
}

func (*portfoliosCmd) Name() string     { return "portfolios" }
func (*portfoliosCmd) Synopsis() string { return "list a user's portfolios and positions" }
func (*portfoliosCmd) Usage() string {
	return `portfolios -user <username>

  Lists every portfolio of the user with its positions at cost.
`
}

func (c *portfoliosCmd) SetFlags(f *flag.FlagSet) {
	f.StringVar(&c.user, "user", "", "Username (required)")
}

func (c *portfoliosCmd) Execute(ctx context.Context, _ *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	if c.user == "" {
		fmt.Fprintln(os.Stderr, "Error: -user is required.")
		return subcommands.ExitUsageError
	}
	e, err := openEnv(ctx)
	if err != nil {
		return fail("%v", err)
	}
	defer e.Close()

	userID, err := e.userID(ctx, c.user)
	if err != nil {
		return fail("%v", err)
	}
	portfolios, err := e.ledger.ListPortfolios(ctx, userID)
	if err != nil {
		return fail("%v", err)
	}

	w := tabwriter.NewWriter(e.out, 0, 4, 2, ' ', 0)
	for _, p := range portfolios {
		fmt.Fprintf(w, "%s\t%s\t\t\t\n", p.Name, p.ID)
		cost := decimal.Zero
		for _, a := range p.Assets {
			fmt.Fprintf(w, "\t%s\t%s\t%s\t%s\n", a.Symbol, a.Quantity, usd(a.AvgPrice), usd(a.Quantity.Mul(a.AvgPrice)))
			cost = cost.Add(a.Quantity.Mul(a.AvgPrice))
		}
		fmt.Fprintf(w, "\ttotal\t\t\t%s\n", usd(cost))
	}
	w.Flush()
	return subcommands.ExitSuccess
}

type orderCmd struct {
	user      string
	symbol    string
	qty       string
	side      string
	portfolio string
}

func (*orderCmd) Name() string     { return "order" }
func (*orderCmd) Synopsis() string { return "place a trade order" }
func (*orderCmd) Usage() string {
	return `order -user <username> -symbol <symbol> -qty <quantity> -side BUY|SELL [-portfolio <id>]

  Places an order at the current price. A SELL requires -portfolio.
`
}

func (c *orderCmd) SetFlags(f *flag.FlagSet) {
	f.StringVar(&c.user, "user", "", "Username (required)")
	f.StringVar(&c.symbol, "symbol", "", "Ticker symbol (required)")
	f.StringVar(&c.qty, "qty", "", "Quantity, a positive decimal (required)")
	f.StringVar(&c.side, "side", "BUY", "BUY or SELL")
	f.StringVar(&c.portfolio, "portfolio", "", "Portfolio id to settle against")
}

func (c *orderCmd) Execute(ctx context.Context, _ *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	if c.user == "" || c.symbol == "" || c.qty == "" {
		fmt.Fprintln(os.Stderr, "Error: -user, -symbol and -qty are required.")
		return subcommands.ExitUsageError
	}
	qty, err := decimal.NewFromString(c.qty)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error parsing quantity %q: %v\n", c.qty, err)
		return subcommands.ExitUsageError
	}

	e, err := openEnv(ctx)
	if err != nil {
		return fail("%v", err)
	}
	defer e.Close()

	userID, err := e.userID(ctx, c.user)
	if err != nil {
		return fail("%v", err)
	}
	order, err := e.engine.PlaceOrder(ctx, userID, models.PlaceOrderRequest{
		Symbol:      c.symbol,
		Quantity:    qty,
		Side:        c.side,
		PortfolioID: c.portfolio,
	})
	if errors.Is(err, models.ErrInsufficientPosition) && order != nil {
		fmt.Fprintf(e.out, "%s %s %s %s REJECTED: %s\n", order.ID, order.Side, order.Quantity, order.Symbol, order.RejectReason)
		return subcommands.ExitFailure
	}
	if err != nil {
		return fail("%v", err)
	}
	fmt.Fprintf(e.out, "%s %s %s %s @ %s %s\n", order.ID, order.Side, order.Quantity, order.Symbol, usd(order.Price), order.Status)
	return subcommands.ExitSuccess
}

type exportOrdersCmd struct {
	user  string
	out   string
	limit int
}

func (*exportOrdersCmd) Name() string     { return "export-orders" }
func (*exportOrdersCmd) Synopsis() string { return "export a user's orders to Parquet" }
func (*exportOrdersCmd) Usage() string {
	return `export-orders -user <username> -out <file.parquet> [-limit n]

  Writes the user's most recent orders to a Parquet file.
`
}

func (c *exportOrdersCmd) SetFlags(f *flag.FlagSet) {
	f.StringVar(&c.user, "user", "", "Username (required)")
	f.StringVar(&c.out, "out", "orders.parquet", "Output file")
	f.IntVar(&c.limit, "limit", 500, "Maximum number of orders")
}

func (c *exportOrdersCmd) Execute(ctx context.Context, _ *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	if c.user == "" {
		fmt.Fprintln(os.Stderr, "Error: -user is required.")
		return subcommands.ExitUsageError
	}
	e, err := openEnv(ctx)
	if err != nil {
		return fail("%v", err)
	}
	defer e.Close()

	userID, err := e.userID(ctx, c.user)
	if err != nil {
		return fail("%v", err)
	}
	orders, err := e.engine.ListOrders(ctx, userID, c.limit)
	if err != nil {
		return fail("%v", err)
	}
	if err := export.WriteOrders(c.out, orders); err != nil {
		return fail("%v", err)
	}
	fmt.Fprintf(e.out, "wrote %d orders to %s\n", len(orders), c.out)
	return subcommands.ExitSuccess
}

type grantRoleCmd struct {
	user string
	role string
}

func (*grantRoleCmd) Name() string     { return "grant-role" }
func (*grantRoleCmd) Synopsis() string { return "grant a role to a user" }
func (*grantRoleCmd) Usage() string {
	return `grant-role -user <username> [-role ROLE_ADMIN]

  Grants a role to an existing user. Administrators are only created this way.
`
}

func (c *grantRoleCmd) SetFlags(f *flag.FlagSet) {
	f.StringVar(&c.user, "user", "", "Username (required)")
	f.StringVar(&c.role, "role", models.RoleAdmin, "Role to grant")
}

func (c *grantRoleCmd) Execute(ctx context.Context, _ *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	if c.user == "" {
		fmt.Fprintln(os.Stderr, "Error: -user is required.")
		return subcommands.ExitUsageError
	}
	e, err := openEnv(ctx)
	if err != nil {
		return fail("%v", err)
	}
	defer e.Close()

	userID, err := e.userID(ctx, c.user)
	if err != nil {
		return fail("%v", err)
	}
	u, err := e.users.GrantRole(ctx, userID, c.role)
	if err != nil {
		return fail("%v", err)
	}
	fmt.Fprintf(e.out, "%s roles: %s\n", u.Username, strings.Join(u.Roles, ", "))
	return subcommands.ExitSuccess
}

package cli

import (
	"fmt"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/odyssey-erp/odyssey-console/internal/pricing"
)

const dateLayout = "2006-01-02"

type quoteFlags struct {
	price    float64
	interval string
	cycles   int
	discount float64
	currency string
	language string
	start    string
	dates    int
}

func newQuoteCommand(e *env) *cobra.Command {
	var f quoteFlags
	cmd := &cobra.Command{
		Use:   "quote",
		Short: "Price a recurring plan",
		Long: `Price a recurring plan locally: amount per cycle, monthly equivalent,
total over a fixed number of cycles and the first billing dates.

Examples:
  erpctl quote --price 49 --interval monthly --cycles 12
  erpctl quote --price 500 --interval yearly --discount 10 --currency EUR`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			interval, err := pricing.ParseInterval(f.interval)
			if err != nil {
				return err
			}
			plan := pricing.Plan{Price: f.price, Interval: interval, Cycles: f.cycles, DiscountPercent: f.discount}
			if err := plan.Validate(); err != nil {
				return err
			}
			start := e.opts.Now()
			if f.start != "" {
				if start, err = time.Parse(dateLayout, f.start); err != nil {
					return fmt.Errorf("--start: %w", err)
				}
			}
			money := pricing.NewFormatter(f.language)
			perCycle, err := money.Money(plan.PerCycle(), f.currency)
			if err != nil {
				return err
			}

			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintf(tw, "per %s\t%s\n", cycleName(interval), perCycle)
			fmt.Fprintf(tw, "monthly equivalent\t%s\n", money.MustMoney(plan.MonthlyEquivalent(), f.currency))
			if total, ok := plan.Total(); ok {
				fmt.Fprintf(tw, "total (%d cycles)\t%s\n", plan.Cycles, money.MustMoney(total, f.currency))
			} else {
				fmt.Fprintf(tw, "total\topen-ended\n")
			}
			for i, date := range plan.Schedule(start, f.dates) {
				fmt.Fprintf(tw, "billing #%d\t%s\n", i+1, date.Format(dateLayout))
			}
			return tw.Flush()
		},
	}
	cmd.Flags().Float64Var(&f.price, "price", 0, "price charged per interval")
	cmd.Flags().StringVar(&f.interval, "interval", string(pricing.Monthly), "monthly, quarterly or yearly")
	cmd.Flags().IntVar(&f.cycles, "cycles", 0, "number of billing cycles (0 = open-ended)")
	cmd.Flags().Float64Var(&f.discount, "discount", 0, "discount percent per cycle")
	cmd.Flags().StringVar(&f.currency, "currency", pricing.DefaultCurrency, "ISO 4217 currency code")
	cmd.Flags().StringVar(&f.language, "lang", "en-US", "language used for number formatting")
	cmd.Flags().StringVar(&f.start, "start", "", "first billing date, YYYY-MM-DD (default today)")
	cmd.Flags().IntVar(&f.dates, "dates", 3, "billing dates to list")
	_ = cmd.MarkFlagRequired("price")
	return cmd
}

func cycleName(i pricing.Interval) string {
	switch i {
	case pricing.Quarterly:
		return "quarter"
	case pricing.Yearly:
		return "year"
	}
	return "month"
}

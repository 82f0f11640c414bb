package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/ryoda0314/tutoring-app-sub000/app"
	"github.com/ryoda0314/tutoring-app-sub000/bootstrap"
	"github.com/ryoda0314/tutoring-app-sub000/domain/billing"
	"github.com/ryoda0314/tutoring-app-sub000/domain/period"
)

const dateLayout = "2006-01-02"

var (
	reportStudent string
	reportMonth   string
	reportAt      string
	reportJSON    bool
)

var invoiceCmd = &cobra.Command{
	Use:   "invoice",
	Short: "Compute the invoice for one student and month",
	Long: `Compute the invoice for one student and billing month.

The invoice is derived from the current lesson state every time. Use --at to
see it as it stood at another moment, for example just after the
confirmation day.

Examples:
  tutorbill invoice --student stu_1 --month 2025-04
  tutorbill invoice --student stu_1 --month 2025-04 --at 2025-03-21T00:00:00Z --json`,
	RunE: runInvoice,
}

var creditsCmd = &cobra.Command{
	Use:   "credits",
	Short: "Show a student's makeup-credit balance",
	RunE:  runCredits,
}

func init() {
	rootCmd.AddCommand(invoiceCmd)
	rootCmd.AddCommand(creditsCmd)

	invoiceCmd.Flags().StringVar(&reportStudent, "student", "", "student id (required)")
	invoiceCmd.Flags().StringVar(&reportMonth, "month", "", "billing month, YYYY-MM (required)")
	invoiceCmd.Flags().StringVar(&reportAt, "at", "", "evaluate as of this RFC3339 time (default: now)")
	invoiceCmd.Flags().BoolVar(&reportJSON, "json", false, "print JSON")
	invoiceCmd.MarkFlagRequired("student")
	invoiceCmd.MarkFlagRequired("month")

	creditsCmd.Flags().StringVar(&reportStudent, "student", "", "student id (required)")
	creditsCmd.Flags().StringVar(&reportAt, "at", "", "evaluate as of this RFC3339 time (default: now)")
	creditsCmd.Flags().BoolVar(&reportJSON, "json", false, "print JSON")
	creditsCmd.MarkFlagRequired("student")
}

func openApp(cmd *cobra.Command) (*bootstrap.App, error) {
	return bootstrap.New(cmd.Context(), bootstrap.Options{
		ConfigPath: cfgFile,
		LogOutput:  os.Stderr,
	})
}

func parseAt(s string) (time.Time, error) {
	if s == "" {
		return time.Time{}, nil
	}
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("--at must be RFC3339: %w", err)
	}
	return t, nil
}

func runInvoice(cmd *cobra.Command, args []string) error {
	month, err := period.ParseMonth(reportMonth)
	if err != nil {
		return err
	}
	at, err := parseAt(reportAt)
	if err != nil {
		return err
	}

	a, err := openApp(cmd)
	if err != nil {
		return err
	}
	defer a.Shutdown()

	inv, err := a.Billing.Invoice(cmd.Context(), reportStudent, month, at)
	if err != nil {
		return err
	}

	if reportJSON {
		return writeJSON(cmd.OutOrStdout(), inv)
	}
	printInvoice(cmd.OutOrStdout(), inv)
	return nil
}

func runCredits(cmd *cobra.Command, args []string) error {
	at, err := parseAt(reportAt)
	if err != nil {
		return err
	}

	a, err := openApp(cmd)
	if err != nil {
		return err
	}
	defer a.Shutdown()

	report, err := a.Ledger.Credits(cmd.Context(), reportStudent, at)
	if err != nil {
		return err
	}

	if reportJSON {
		return writeJSON(cmd.OutOrStdout(), report)
	}
	printCredits(cmd.OutOrStdout(), report)
	return nil
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func printInvoice(w io.Writer, inv app.Invoice) {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	defer tw.Flush()

	state := "provisional"
	if inv.IsConfirmed {
		state = "confirmed"
	}

	fmt.Fprintf(tw, "Student\t%s\n", inv.StudentID)
	fmt.Fprintf(tw, "Month\t%s (%s)\n", inv.TargetMonth, state)
	fmt.Fprintf(tw, "Confirmation date\t%s\n", inv.ConfirmationDate.Format(dateLayout))
	fmt.Fprintf(tw, "Payment due\t%s\n", inv.PaymentDueDate.Format(dateLayout))
	fmt.Fprintf(tw, "Lessons\t%d\t%s\n", inv.LessonCount, billing.FormatYen(inv.LessonFeeTotal))
	fmt.Fprintf(tw, "Transport\t\t%s\n", billing.FormatYen(inv.TransportFeeTotal))
	for _, d := range inv.Adjustments.Details {
		fmt.Fprintf(tw, "  %s %s\t%s\t-%s\n", d.Date.Format(dateLayout), d.Reason, d.Type, billing.FormatYen(d.Amount))
	}
	fmt.Fprintf(tw, "Adjustments\t\t%s\n", billing.FormatYen(inv.Adjustments.Total))
	for _, c := range inv.OtherCharges.Items {
		fmt.Fprintf(tw, "  %s\t\t%s\n", c.Description, billing.FormatYen(c.Amount))
	}
	fmt.Fprintf(tw, "Other charges\t\t%s\n", billing.FormatYen(inv.OtherCharges.Total))
	fmt.Fprintf(tw, "Total\t\t%s\n", billing.FormatYen(inv.GrandTotal))
	fmt.Fprintf(tw, "Payment\t%s\n", inv.PaymentStatus)
	for _, warn := range inv.Warnings {
		fmt.Fprintf(tw, "warning\t%s %s\t%s\n", warn.LessonID, warn.Date.Format(dateLayout), warn.Reason)
	}
}

func printCredits(w io.Writer, r app.CreditReport) {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	defer tw.Flush()

	fmt.Fprintf(tw, "Student\t%s\n", r.StudentID)
	fmt.Fprintf(tw, "Available\t%d min\n", r.Balance)
	fmt.Fprintf(tw, "Granted / consumed / expired\t%d / %d / %d min\n", r.Summary.Granted, r.Summary.Consumed, r.Summary.Expired)
	fmt.Fprintln(tw)
	fmt.Fprintln(tw, "CREDIT\tREMAINING\tGRANTED\tEXPIRES\tORIGIN")
	for _, c := range r.Credits {
		fmt.Fprintf(tw, "%s\t%d\t%d\t%s\t%s\n", c.ID, c.TotalMinutes, c.GrantedMinutes, c.ExpiresAt.Format(dateLayout), c.OriginLessonID)
	}
}

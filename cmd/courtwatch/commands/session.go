package commands

import (
	"fmt"
	"os"
	"time"

	"courtwatch/lib/credstore"
	"courtwatch/lib/serviceutil"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"
)

func init() {
	rootCmd.AddCommand(sessionCmd)
}

func describeTable(descriptions []credstore.Description) string {
	t := table.NewWriter()
	t.AppendHeader(table.Row{"Kind", "Present", "Validity", "Origin", "Age", "Cookies", "Token"})
	for _, d := range descriptions {
		if !d.Present {
			t.AppendRow(table.Row{d.Kind, "no", d.Validity.String(), "-", "-", "-", "-"})
			continue
		}
		t.AppendRow(table.Row{
			d.Kind,
			"yes",
			d.Validity.String(),
			d.Record.TargetOrigin,
			d.Age.Round(time.Minute).String(),
			len(d.Record.Cookies),
			credstore.SessionToken(d.Record) != "",
		})
	}
	return t.Render()
}

var sessionCmd = &cobra.Command{
	Use:   "session",
	Short: "Shows the saved credentials and whether they are still usable.",
	Run: func(cmd *cobra.Command, args []string) {
		cfg := readConfig()
		store, err := openCredentials(cfg)
		if err != nil {
			serviceutil.Fatal("failed to open credential store", err)
		}

		fmt.Fprintf(os.Stdout, "credentials expire %s after they were issued\n", store.MaxAge())
		fmt.Fprintln(os.Stdout, describeTable([]credstore.Description{
			store.Describe(credstore.KindSession),
			store.Describe(credstore.KindToken),
		}))
	},
}

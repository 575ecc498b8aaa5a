package commands

import (
	"errors"
	"log/slog"

	"courtwatch/lib/credstore"
	"courtwatch/lib/serviceutil"

	"github.com/spf13/cobra"
)

func init() {
	rootCmd.AddCommand(loginCmd)
}

var loginCmd = &cobra.Command{
	Use:   "login",
	Short: "Logs into the booking site with a one-time code and saves the session.",
	Run: func(cmd *cobra.Command, args []string) {
		cfg := readConfig()
		if cfg.PhoneNumber == "" {
			serviceutil.Fatal("cannot log in", errors.New("set phone_number or PHONE_NUMBER"))
		}

		eng, err := newEngine(cfg, notifierFor(cfg, false))
		if err != nil {
			serviceutil.Fatal("failed to initialize", err)
		}
		prober := eng.newProber()
		auth, err := prober.EnsureSession(cmd.Context(), nil)
		prober.Close()
		if err != nil {
			serviceutil.Fatal("login failed", err)
		}

		slog.Info(
			"logged in",
			"indicators", auth.Indicators,
			"has_token", auth.Token != "",
			"saved_to", eng.store.Path(credstore.KindSession),
		)
	},
}

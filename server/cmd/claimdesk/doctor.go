package main

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/claimdesk/claimdesk/server/internal/doctor"
	"github.com/claimdesk/claimdesk/server/internal/format"
)

func newDoctorCmd(g *globals) *cobra.Command {
	var insecure bool
	cmd := &cobra.Command{
		Use:   "doctor",
		Short: "Check the configuration, credentials and webhook endpoints",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			fs := doctor.Run(cmd.Context(), g.cfg, doctor.Options{InsecureTLS: insecure, Logger: g.log})
			w := cmd.OutOrStdout()
			if g.json() {
				if err := writeJSON(w, fs); err != nil {
					return err
				}
			} else {
				t := format.NewTable(g.mode())
				t.Header("Check", "Status", "Detail")
				for _, f := range fs {
					t.Row(f.Check, f.Status, f.Detail)
				}
				if _, err := fmt.Fprintln(w, t.String()); err != nil {
					return err
				}
			}
			if doctor.Failed(fs) {
				return errors.New("doctor: some checks failed")
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&insecure, "insecure", false, "accept self-signed webhook certificates")
	return cmd
}

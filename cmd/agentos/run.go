package main

import (
	"fmt"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/pessini/superpod-blog/internal/domain"
)

func newRunCmd(v *viper.Viper) *cobra.Command {
	var req domain.RunRequest
	var quiet bool
	cmd := &cobra.Command{
		Use:   "run <agent|team|workflow> <id> <message>",
		Short: "Run one entity once and print the reply",
		Args:  cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			kind, err := domain.ParseEntityType(args[0])
			if err != nil {
				return err
			}
			req.Message = args[2]

			a, err := newApp(cmd.Context(), cmd, v)
			if err != nil {
				return err
			}
			defer a.Close()

			out := cmd.OutOrStdout()
			emit := func(ev domain.StreamEvent) {
				switch {
				case ev.Content != "":
					fmt.Fprint(out, ev.Content)
				case quiet:
				case ev.StepName != "":
					fmt.Fprintf(cmd.ErrOrStderr(), "[%s] %s\n", ev.Event, ev.StepName)
				}
			}
			resp, err := a.service.Run(cmd.Context(), kind, args[1], req, emit)
			if err != nil {
				return err
			}
			fmt.Fprintf(out, "\n\nrun %s (session %s): %s\n", resp.RunID, resp.SessionID, resp.Status)
			return nil
		},
	}
	cmd.Flags().StringVar(&req.SessionID, "session", "", "continue this session")
	cmd.Flags().StringVar(&req.UserID, "user", "", "user id")
	cmd.Flags().BoolVarP(&quiet, "quiet", "q", false, "print only the reply")
	return cmd
}

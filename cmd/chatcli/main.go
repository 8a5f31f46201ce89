// Command chatcli is a terminal client for the chat gateway. Replies are
// rendered as markdown.
package main

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/charmbracelet/glamour"
	"github.com/spf13/cobra"

	"github.com/pessini/superpod-blog/internal/protocol"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

type options struct {
	addr     string
	username string
	password string
	profile  string
	raw      bool
}

func newRootCmd() *cobra.Command {
	var opts options
	cmd := &cobra.Command{
		Use:           "chatcli",
		Short:         "Terminal client for the chat gateway",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return run(opts, cmd.InOrStdin(), cmd.OutOrStdout())
		},
	}
	cmd.Flags().StringVar(&opts.addr, "addr", "ws://localhost:8090/ws", "gateway WebSocket address")
	cmd.Flags().StringVarP(&opts.username, "username", "u", "admin", "username")
	cmd.Flags().StringVarP(&opts.password, "password", "p", "admin", "password")
	cmd.Flags().StringVar(&opts.profile, "profile", "", "profile to select after login")
	cmd.Flags().BoolVar(&opts.raw, "raw", false, "stream raw text instead of rendering markdown")
	return cmd
}

func run(opts options, in io.Reader, out io.Writer) error {
	client, err := Dial(opts.addr)
	if err != nil {
		return err
	}
	defer client.Close()

	if err := client.Hello(opts.username, opts.password); err != nil {
		return fmt.Errorf("login failed: %w", err)
	}
	fmt.Fprintf(out, "Session %s, profile %s\n", client.sessionID, client.profile)
	printProfiles(out, client.profiles, client.profile)

	renderer, err := glamour.NewTermRenderer(glamour.WithAutoStyle(), glamour.WithWordWrap(100))
	if err != nil {
		return err
	}

	if opts.profile != "" {
		if err := selectProfile(client, opts.profile, out); err != nil {
			return err
		}
	}

	fmt.Fprintln(out, "Commands: /profiles, /use <profile>, /quit")
	scanner := bufio.NewScanner(in)
	for {
		fmt.Fprint(out, "> ")
		if !scanner.Scan() {
			return scanner.Err()
		}
		input := strings.TrimSpace(scanner.Text())
		switch {
		case input == "":
			continue
		case input == "/quit":
			return nil
		case input == "/profiles":
			printProfiles(out, client.profiles, client.profile)
			continue
		case strings.HasPrefix(input, "/use "):
			if err := selectProfile(client, strings.TrimSpace(strings.TrimPrefix(input, "/use ")), out); err != nil {
				fmt.Fprintln(out, err)
			}
			continue
		}

		reqID, err := client.Send(input)
		if err != nil {
			return err
		}
		if err := readReply(client, reqID, opts.raw, renderer, out); err != nil {
			var gwErr *GatewayError
			if !errors.As(err, &gwErr) {
				return err
			}
			fmt.Fprintln(out, err)
		}
	}
}

// readReply prints deltas in raw mode and the rendered reply otherwise.
func readReply(client *Client, reqID string, raw bool, renderer *glamour.TermRenderer, out io.Writer) error {
	for {
		ev, err := client.Read()
		if err != nil {
			return err
		}
		if ev.RequestID != "" && ev.RequestID != reqID {
			continue
		}
		switch ev.Type {
		case protocol.TypeDelta:
			if raw {
				fmt.Fprint(out, ev.Text)
			}
		case protocol.TypeDone:
			if raw {
				fmt.Fprintln(out)
				return nil
			}
			rendered, err := renderer.Render(ev.Text)
			if err != nil {
				rendered = ev.Text + "\n"
			}
			fmt.Fprint(out, rendered)
			return nil
		case protocol.TypeError:
			return ev.Err
		}
	}
}

func selectProfile(client *Client, name string, out io.Writer) error {
	reqID, err := client.SelectProfile(name)
	if err != nil {
		return err
	}
	for {
		ev, err := client.Read()
		if err != nil {
			return err
		}
		if ev.RequestID != reqID {
			continue
		}
		switch ev.Type {
		case protocol.TypeProfileSelected:
			fmt.Fprintf(out, "Using %s\n", ev.Profile)
			if ev.Text != "" {
				fmt.Fprintln(out, ev.Text)
			}
			return nil
		case protocol.TypeError:
			return ev.Err
		}
	}
}

func printProfiles(out io.Writer, profiles []protocol.Profile, current string) {
	for _, p := range profiles {
		marker := " "
		if p.Name == current {
			marker = "*"
		}
		kind := "model"
		if p.EntityType != "" {
			kind = p.EntityType
		}
		fmt.Fprintf(out, " %s %-28s %-10s %s\n", marker, p.Name, kind, p.DisplayName)
	}
}

package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/pessini/superpod-blog/internal/service"
)

func newKnowledgeCmd(v *viper.Viper) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "knowledge",
		Short: "Manage the agno-assist knowledge base",
	}

	var req service.AddKnowledgeRequest
	var file string
	add := &cobra.Command{
		Use:     "add",
		Short:   "Fetch, chunk, embed and store a document",
		Example: `  agentos knowledge add --name "Agno Docs" --url https://docs.agno.com/llms.txt`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if file != "" {
				if req.Text != "" {
					return errors.New("--file and --text are mutually exclusive")
				}
				data, err := os.ReadFile(file)
				if err != nil {
					return err
				}
				req.Text = string(data)
				if req.Name == "" {
					req.Name = file
				}
			}

			a, err := newApp(cmd.Context(), cmd, v)
			if err != nil {
				return err
			}
			defer a.Close()

			content, err := a.service.AddKnowledge(cmd.Context(), req)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "added %q to %s: %d chunks (id %s)\n", content.Name, content.Table, content.Chunks, content.ContentID)
			return nil
		},
	}
	add.Flags().StringVar(&req.Name, "name", "", "display name")
	add.Flags().StringVar(&req.Description, "description", "", "description")
	add.Flags().StringVar(&req.URL, "url", "", "URL to fetch")
	add.Flags().StringVar(&req.Text, "text", "", "inline text")
	add.Flags().StringVar(&file, "file", "", "read the text from a file")

	list := &cobra.Command{
		Use:   "list",
		Short: "List stored knowledge contents",
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := newApp(cmd.Context(), cmd, v)
			if err != nil {
				return err
			}
			defer a.Close()

			contents, err := a.service.ListKnowledge(cmd.Context())
			if err != nil {
				return err
			}
			for _, c := range contents {
				fmt.Fprintf(cmd.OutOrStdout(), "%s\t%s\t%d chunks\t%s\n", c.ContentID, c.Name, c.Chunks, c.URL)
			}
			return nil
		},
	}

	cmd.AddCommand(add, list)
	return cmd
}

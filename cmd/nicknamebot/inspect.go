package main

import (
	"encoding/json"
	"io"
	"os"
	"strings"

	"github.com/pkg/errors"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/tbourn/go-nickname-bot/internal/domain"
	"github.com/tbourn/go-nickname-bot/internal/store"
)

type inspectOptions struct {
	file   string
	group  int64
	output string
}

// groupDump is one group in inspect output.
type groupDump struct {
	GroupID   int64                   `json:"group_id"  yaml:"group_id"`
	Nicknames []domain.NicknameRecord `json:"nicknames" yaml:"nicknames"`
}

func newInspectCmd() *cobra.Command {
	opts := inspectOptions{}
	cmd := &cobra.Command{
		Use:   "inspect",
		Short: "Print the nicknames held in a storage file",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runInspect(cmd.OutOrStdout(), opts)
		},
	}
	cmd.Flags().StringVarP(&opts.file, "file", "f", envOr("STORAGE_FILE", "data/nicknames.json"), "Storage file to read")
	cmd.Flags().Int64VarP(&opts.group, "group", "g", 0, "Only print this group id")
	cmd.Flags().StringVarP(&opts.output, "output", "o", "json", "Output format: json|yaml")
	return cmd
}

func runInspect(w io.Writer, opts inspectOptions) error {
	format := strings.ToLower(strings.TrimSpace(opts.output))
	if format != "json" && format != "yaml" {
		return errors.Errorf("unknown output format %q (want json or yaml)", opts.output)
	}
	if _, err := os.Stat(opts.file); err != nil {
		return errors.Wrap(err, "storage file")
	}

	// The store logs load problems; inspect reports through its output only.
	st, err := store.Open(opts.file, store.WithLogger(zerolog.Nop()))
	if err != nil {
		return err
	}

	var dump []groupDump
	for _, gid := range st.Groups() {
		if opts.group != 0 && gid != opts.group {
			continue
		}
		dump = append(dump, groupDump{GroupID: gid, Nicknames: st.GetAll(gid)})
	}
	if dump == nil {
		dump = []groupDump{}
	}

	if format == "yaml" {
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(dump); err != nil {
			return errors.Wrap(err, "encode yaml")
		}
		return enc.Close()
	}
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return errors.Wrap(enc.Encode(dump), "encode json")
}

func envOr(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

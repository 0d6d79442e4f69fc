package main

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/lcx/hotplug/archive"
)

type inspection struct {
	Descriptor *archive.Descriptor `json:"descriptor" yaml:"descriptor"`
	Types      []string            `json:"types" yaml:"types"`
	Resources  []string            `json:"resources,omitempty" yaml:"resources,omitempty"`
}

func newInspectCmd() *cobra.Command {
	var asJSON bool
	cmd := &cobra.Command{
		Use:   "inspect <archive>",
		Short: "Print the descriptor and contents of a plugin archive",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			report, err := inspect(archive.NewReader(""), args[0])
			if err != nil {
				return err
			}
			return render(cmd.OutOrStdout(), report, asJSON)
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "print json instead of yaml")
	return cmd
}

func inspect(r *archive.Reader, path string) (*inspection, error) {
	data, err := r.ReadBytes(path, archive.DescriptorName)
	if err != nil {
		return nil, err
	}
	desc, err := archive.ParseDescriptor(data)
	if err != nil {
		return nil, err
	}
	entries, err := r.ListEntries(path)
	if err != nil {
		return nil, err
	}
	report := &inspection{Descriptor: desc, Types: []string{}}
	for _, e := range entries {
		if name, ok := archive.TypeName(e); ok {
			report.Types = append(report.Types, name)
		} else if e != archive.DescriptorName {
			report.Resources = append(report.Resources, e)
		}
	}
	return report, nil
}

func render(w io.Writer, report *inspection, asJSON bool) error {
	if asJSON {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(report)
	}
	out, err := yaml.Marshal(report)
	if err != nil {
		return fmt.Errorf("render: %w", err)
	}
	_, err = w.Write(out)
	return err
}

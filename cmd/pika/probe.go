package main

import (
	"encoding/json"
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/shamspias/pika"
)

type probeInfo struct {
	Name     string `json:"name"`
	MIMEType string `json:"mime_type"`
	Size     int64  `json:"size"`
	Width    int    `json:"width"`
	Height   int    `json:"height"`
}

func newProbeCmd(a *app) *cobra.Command {
	var jsonOutput bool

	cmd := &cobra.Command{
		Use:   "probe <file|dir>...",
		Short: "Show type, size and dimensions of images",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			sources, rejected := pika.Acquire(args)
			for _, r := range rejected {
				a.log.Debug("skipped", zap.String("file", r.Path), zap.Error(r.Err))
				fmt.Fprintf(cmd.ErrOrStderr(), "skipped %s: %v\n", r.Path, r.Err)
			}

			infos := make([]probeInfo, 0, len(sources))
			for _, src := range sources {
				pt, err := src.NaturalSize()
				if err != nil {
					fmt.Fprintln(cmd.ErrOrStderr(), &pika.ProbeError{Name: src.Name, Err: err})
					continue
				}
				infos = append(infos, probeInfo{
					Name:     src.Name,
					MIMEType: src.MIMEType,
					Size:     src.Size(),
					Width:    pt.X,
					Height:   pt.Y,
				})
			}

			if jsonOutput {
				enc := json.NewEncoder(cmd.OutOrStdout())
				enc.SetIndent("", "  ")
				return enc.Encode(infos)
			}

			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "NAME\tTYPE\tSIZE\tDIMENSIONS")
			for _, in := range infos {
				fmt.Fprintf(tw, "%s\t%s\t%s\t%d×%d\n", in.Name, in.MIMEType, pika.FormatSize(in.Size, 2), in.Width, in.Height)
			}
			return tw.Flush()
		},
	}

	cmd.Flags().BoolVar(&jsonOutput, "json", false, "output as JSON")
	return cmd
}

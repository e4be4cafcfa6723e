package main

import (
	"fmt"
	"os"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"
)

var listCmd = &cobra.Command{
	Use:   "list [image...]",
	Short: "List the images of the matrix",
	Long: `List the configured images with their image file, capture directory and
how each was built. Without a matrix file this is the built-in catalog.`,
	Args: cobra.ArbitraryArgs,
	RunE: runList,
}

func init() {
	rootCmd.AddCommand(listCmd)
}

// runList prints the selected images.
func runList(_ *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	m, err := buildMatrix(cfg, args, nil)
	if err != nil {
		return err
	}

	tw := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "NAME\tIMAGE\tCAPTURES\tDESCRIPTION")
	for _, d := range m.Images {
		img := d.Image
		if d.MultiDevice() {
			img = strings.Join(d.Members, ",")
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", d.Name, img, d.Captures, d.Description)
	}
	return tw.Flush()
}

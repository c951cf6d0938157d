package main

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/teslashibe/go-facecam/internal/httpc"
	"github.com/teslashibe/go-facecam/pkg/models"
)

var (
	fetchFrom string
	modelsDir string
)

var modelsCmd = &cobra.Command{
	Use:   "models",
	Short: "Manage the model bundle files",
}

var fetchCmd = &cobra.Command{
	Use:   "fetch",
	Short: "Download every model file into a directory",
	RunE: func(cmd *cobra.Command, args []string) error {
		if !strings.HasPrefix(fetchFrom, "http://") && !strings.HasPrefix(fetchFrom, "https://") {
			return fmt.Errorf("--from must be an http(s) URL, got %q", fetchFrom)
		}
		dir := dirOrConfig()
		src, err := models.NewSource(models.SourceConfig{
			URI:      fetchFrom,
			CacheDir: dir,
			Client:   httpc.NewResty(cfg.Models.Timeout),
			Progress: os.Stderr,
		})
		if err != nil {
			return err
		}
		paths, err := src.Resolve(cmd.Context(), allFiles())
		if err != nil {
			return err
		}
		for _, p := range paths {
			fmt.Println(p)
		}
		return nil
	},
}

var checkCmd = &cobra.Command{
	Use:   "check",
	Short: "List model files missing from a directory",
	RunE: func(cmd *cobra.Command, args []string) error {
		dir := dirOrConfig()
		missing, err := models.Check(dir)
		if err != nil {
			return err
		}
		absent := make(map[string]bool, len(missing))
		for _, m := range missing {
			absent[m] = true
		}

		w := tabwriter.NewWriter(os.Stdout, 0, 0, 3, ' ', 0)
		fmt.Fprintln(w, "BUNDLE\tFILE\tSTATUS")
		fmt.Fprintln(w, "------\t----\t------")
		manifest := models.Manifest()
		for _, name := range models.BundleNames {
			for _, f := range manifest[name] {
				state := "ok"
				if absent[f] {
					state = "missing"
				}
				fmt.Fprintf(w, "%s\t%s\t%s\n", name, f, state)
			}
		}
		w.Flush()

		if len(missing) > 0 {
			return errors.New("model directory incomplete")
		}
		return nil
	},
}

func init() {
	fetchCmd.Flags().StringVar(&fetchFrom, "from", "", "base URL hosting the model files")
	fetchCmd.MarkFlagRequired("from")
	modelsCmd.PersistentFlags().StringVar(&modelsDir, "dir", "", "model directory (default from config)")
	modelsCmd.AddCommand(fetchCmd, checkCmd)
	rootCmd.AddCommand(modelsCmd)
}

func dirOrConfig() string {
	if modelsDir != "" {
		return modelsDir
	}
	return cfg.Models.Dir
}

func allFiles() []string {
	var files []string
	manifest := models.Manifest()
	for _, name := range models.BundleNames {
		files = append(files, manifest[name]...)
	}
	return files
}

package main

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/phobologic/coverimpact/internal/complexity"
	"github.com/phobologic/coverimpact/internal/config"
)

type initFlags struct {
	dryRun bool
	force  bool
	model  bool
}

// newInitCmd implements `coverimpact init`, which writes a default
// config file and optionally a baseline complexity model.
func newInitCmd(stdout, stderr io.Writer) *cobra.Command {
	var f initFlags

	cmd := &cobra.Command{
		Use:   "init [project-root]",
		Short: "Write a default " + config.FileName,
		Long: `Write the default configuration to ` + config.FileName + ` in the project
root (default: current directory). An existing file is left alone unless
--force is given.

With --model, also write a baseline linear complexity model to the next
free version under ` + complexity.DefaultModelDir + `.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			root := "."
			if len(args) > 0 {
				root = args[0]
			}
			return runInit(root, f, stdout, stderr)
		},
	}

	cmd.Flags().BoolVar(&f.dryRun, "dry-run", false, "print what would be written without modifying anything")
	cmd.Flags().BoolVar(&f.force, "force", false, "overwrite an existing config file")
	cmd.Flags().BoolVar(&f.model, "model", false, "also write a baseline complexity model")
	return cmd
}

func runInit(root string, f initFlags, stdout, stderr io.Writer) error {
	path := filepath.Join(root, config.FileName)
	content := config.DefaultTOML()

	if f.dryRun {
		_, _ = stdout.Write(content)
		if f.model {
			_, _ = fmt.Fprintf(stdout, "\n# would also write a baseline model under %s\n", filepath.Join(root, complexity.DefaultModelDir))
		}
		return nil
	}

	_, err := os.Stat(path)
	switch {
	case err == nil && !f.force:
		return fmt.Errorf("%s already exists (use --force to overwrite)", path)
	case err != nil && !errors.Is(err, fs.ErrNotExist):
		return fmt.Errorf("checking %s: %w", path, err)
	}

	if err := os.WriteFile(path, content, 0o644); err != nil {
		return fmt.Errorf("writing %s: %w", path, err)
	}
	_, _ = fmt.Fprintf(stderr, "wrote default config to %s\n", path)

	if !f.model {
		return nil
	}

	v, modelPath, err := complexity.NextVersion(filepath.Join(root, complexity.DefaultModelDir), complexity.ModelPrefix, complexity.ModelSuffix)
	if err != nil {
		return err
	}
	m := complexity.BaselineModel()
	m.Version = v.String()
	if err := m.Save(modelPath); err != nil {
		return err
	}
	_, _ = fmt.Fprintf(stderr, "wrote baseline model %s to %s\n", m.Version, modelPath)
	return nil
}

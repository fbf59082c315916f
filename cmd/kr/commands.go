package main

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"
	"github.com/zpdzap/katarunner/internal/runner"
	"github.com/zpdzap/katarunner/internal/verdict"
)

var (
	errorStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#FF4444"))
	dimStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("#888888"))

	colourStyles = map[verdict.Colour]lipgloss.Style{
		verdict.Red:      lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#FF4444")),
		verdict.Amber:    lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#FFAA00")),
		verdict.Green:    lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#00FF00")),
		verdict.TimedOut: lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#5599FF")),
	}
)

func imagePulledCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "image-pulled",
		Short: "Report whether --image is present locally",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			r, err := a.runner()
			if err != nil {
				return err
			}
			ok, err := r.ImagePulled(cmd.Context())
			if err != nil {
				return err
			}
			fmt.Println(ok)
			return nil
		},
	}
}

func imagePullCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "image-pull",
		Short: "Pull --image",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			r, err := a.runner()
			if err != nil {
				return err
			}
			ok, err := r.ImagePull(cmd.Context())
			if err != nil {
				return err
			}
			fmt.Println(ok)
			return nil
		},
	}
}

func kataNewCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "kata-new",
		Short: "Create the sandbox for --kata",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			r, err := a.runner()
			if err != nil {
				return err
			}
			if err := r.KataNew(cmd.Context()); err != nil {
				return err
			}
			fmt.Printf("Created %s sandbox %s\n", r.Kind(), r.SandboxName())
			return nil
		},
	}
}

func kataOldCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "kata-old",
		Short: "Remove the sandbox for --kata",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			r, err := a.runner()
			if err != nil {
				return err
			}
			if err := r.KataOld(cmd.Context()); err != nil {
				return err
			}
			fmt.Printf("Removed %s sandbox %s\n", r.Kind(), r.SandboxName())
			return nil
		},
	}
}

func avatarNewCmd(a *app) *cobra.Command {
	var filesDir string
	cmd := &cobra.Command{
		Use:   "avatar-new AVATAR",
		Short: "Create an avatar in --kata, seeded from --files",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			r, err := a.runner()
			if err != nil {
				return err
			}
			files, err := readTree(filesDir)
			if err != nil {
				return err
			}
			if err := r.AvatarNew(cmd.Context(), args[0], files); err != nil {
				return err
			}
			fmt.Printf("Created avatar %s with %d files\n", args[0], len(files))
			return nil
		},
	}
	cmd.Flags().StringVar(&filesDir, "files", "", "directory of starting files")
	return cmd
}

func avatarOldCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "avatar-old AVATAR",
		Short: "Remove an avatar from --kata",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			r, err := a.runner()
			if err != nil {
				return err
			}
			if err := r.AvatarOld(cmd.Context(), args[0]); err != nil {
				return err
			}
			fmt.Printf("Removed avatar %s\n", args[0])
			return nil
		},
	}
}

func runCmd(a *app) *cobra.Command {
	var (
		changedDir string
		deleted    []string
		maxSeconds int
		asJSON     bool
	)
	cmd := &cobra.Command{
		Use:   "run AVATAR",
		Short: "Sync files into an avatar and run its cyber-dojo.sh",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			r, err := a.runner()
			if err != nil {
				return err
			}
			changed, err := readTree(changedDir)
			if err != nil {
				return err
			}
			res, err := r.Run(cmd.Context(), args[0], deleted, changed, maxSeconds)
			if err != nil {
				return err
			}
			if asJSON {
				enc := json.NewEncoder(os.Stdout)
				enc.SetIndent("", "  ")
				return enc.Encode(res)
			}
			printResult(res)
			return nil
		},
	}
	cmd.Flags().StringVar(&changedDir, "changed", "", "directory of new or changed files")
	cmd.Flags().StringSliceVar(&deleted, "deleted", nil, "pathed filenames to delete")
	cmd.Flags().IntVar(&maxSeconds, "max-seconds", 10, "wall clock limit for the run")
	cmd.Flags().BoolVar(&asJSON, "json", false, "print the result as JSON")
	return cmd
}

func printResult(res runner.Result) {
	if res.Stdout != "" {
		fmt.Print(res.Stdout)
		if !strings.HasSuffix(res.Stdout, "\n") {
			fmt.Println()
		}
	}
	if res.Stderr != "" {
		fmt.Fprint(os.Stderr, res.Stderr)
		if !strings.HasSuffix(res.Stderr, "\n") {
			fmt.Fprintln(os.Stderr)
		}
	}
	style, ok := colourStyles[res.Colour]
	if !ok {
		style = dimStyle
	}
	fmt.Printf("%s %s\n", style.Render(string(res.Colour)),
		dimStyle.Render(fmt.Sprintf("status %d in %s", res.Status, res.Duration.Round(time.Millisecond))))
}

func listCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List kata sandboxes on this host",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			all, err := a.inventory().List(cmd.Context())
			if err != nil {
				return err
			}
			if len(all) == 0 {
				fmt.Println(dimStyle.Render("No kata sandboxes."))
				return nil
			}
			for _, sb := range all {
				fmt.Printf("%-10s  %-9s  %-8s  %s\n", sb.KataID, sb.Kind, sb.Status, sb.Name)
			}
			return nil
		},
	}
}

func sweepCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "sweep",
		Short: "Remove every kata sandbox on this host",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			removed, err := a.inventory().Sweep(cmd.Context())
			for _, name := range removed {
				fmt.Printf("Removed %s\n", name)
			}
			if err != nil {
				return err
			}
			fmt.Printf("Removed %d sandboxes\n", len(removed))
			return nil
		},
	}
}

package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/pyappify/pyappify/internal/supervisor"
)

func newSetupCmd() *cobra.Command {
	var profile string
	cmd := &cobra.Command{
		Use:   "setup",
		Short: "Clone the app, provision its environment and install dependencies",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			sh, err := bootstrap()
			if err != nil {
				return err
			}
			defer sh.close()
			return sh.setup(profile)
		},
	}
	cmd.Flags().StringVarP(&profile, "profile", "p", "default", "profile to install")
	return cmd
}

func newRunCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "run [-- extra args]",
		Aliases: []string{"start"},
		Short:   "Start the app's current profile",
		RunE: func(cmd *cobra.Command, args []string) error {
			sh, err := bootstrap()
			if err != nil {
				return err
			}
			defer sh.close()

			name, err := sh.loadApp()
			if err != nil {
				return err
			}
			if err := sh.svc.Start(sh.ctx, name, args); err != nil {
				return err
			}

			// Launch is asynchronous; wait for the process to show up before
			// reporting success.
			appDir := sh.layout.AppDir(name)
			deadline := time.Now().Add(10 * time.Second)
			for time.Now().Before(deadline) {
				if supervisor.AnyRunning(appDir) {
					fmt.Printf("%s is running\n", name)
					return nil
				}
				select {
				case <-sh.ctx.Done():
					return sh.ctx.Err()
				case <-time.After(time.Second):
				}
			}
			return fmt.Errorf("%s did not start within 10s", name)
		},
	}
	return cmd
}

func newStopCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "stop",
		Short: "Terminate every process belonging to the app",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			sh, err := bootstrap()
			if err != nil {
				return err
			}
			defer sh.close()

			name, err := sh.loadApp()
			if err != nil {
				return err
			}
			return sh.svc.Stop(sh.ctx, name)
		},
	}
}

func newUpdateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "update <version>",
		Short: "Check out a version and reconcile the environment",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			sh, err := bootstrap()
			if err != nil {
				return err
			}
			defer sh.close()

			name, err := sh.loadApp()
			if err != nil {
				return err
			}
			return sh.svc.Update(sh.ctx, name, args[0])
		},
	}
}

func newDeleteCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "delete",
		Short: "Remove the app's installation, keeping its record",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			sh, err := bootstrap()
			if err != nil {
				return err
			}
			defer sh.close()

			name, err := sh.loadApp()
			if err != nil {
				return err
			}
			return sh.svc.Delete(sh.ctx, name)
		},
	}
}

func newListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "Show the managed app and its state",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			sh, err := bootstrap()
			if err != nil {
				return err
			}
			defer sh.close()

			if _, err := sh.svc.Load(sh.ctx); err != nil {
				return err
			}
			for _, app := range sh.svc.Apps() {
				state := "not installed"
				if app.Installed {
					state = "installed"
				}
				if app.Running {
					state += ", running"
				}
				fmt.Printf("%s\t%s\t%s\tprofile=%s\n", app.Name, app.CurrentVersion, state, app.CurrentProfile)
			}
			return nil
		},
	}
}

func newVersionsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "versions",
		Short: "List available versions, newest first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			sh, err := bootstrap()
			if err != nil {
				return err
			}
			defer sh.close()

			if _, err := sh.svc.Load(sh.ctx); err != nil {
				return err
			}
			for _, app := range sh.svc.Apps() {
				for _, v := range app.AvailableVersions {
					marker := " "
					if v == app.CurrentVersion {
						marker = "*"
					}
					fmt.Printf("%s %s\n", marker, v)
				}
			}
			return nil
		},
	}
}

func newNotesCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "notes <version>",
		Short: "Show commit messages between the current and target version",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			sh, err := bootstrap()
			if err != nil {
				return err
			}
			defer sh.close()

			name, err := sh.loadApp()
			if err != nil {
				return err
			}
			notes, err := sh.svc.UpdateNotes(sh.ctx, name, args[0])
			if err != nil {
				return err
			}
			for _, line := range notes {
				fmt.Println(line)
			}
			return nil
		},
	}
}

package main

import (
	"fmt"

	"github.com/kardianos/service"
	"github.com/spf13/cobra"

	"github.com/telefeed/telefeed/internal/core"
)

// serviceCmd manages running telefeed under the system service manager
// (systemd, launchd, or the Windows service manager).
func serviceCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:       "service {install|uninstall|start|stop|run}",
		Short:     "Install or control telefeed as a system service",
		Args:      cobra.ExactArgs(1),
		ValidArgs: []string{"install", "uninstall", "start", "stop", "run"},
		RunE: func(cmd *cobra.Command, args []string) error {
			dataDir, err := resolveDataDir(cmd)
			if err != nil {
				return err
			}

			prog := &program{dataDir: dataDir}
			svc, err := service.New(prog, &service.Config{
				Name:        "telefeed",
				DisplayName: "telefeed",
				Description: "RSS to Telegram feed forwarder",
				Arguments:   []string{"service", "run", "--config-dir", dataDir},
			})
			if err != nil {
				return err
			}

			action := args[0]
			if action == "run" {
				return svc.Run()
			}
			if err := service.Control(svc, action); err != nil {
				return err
			}
			fmt.Printf("service %s: done\n", action)
			return nil
		},
	}
	return cmd
}

// program adapts the module app to the service.Interface lifecycle.
type program struct {
	dataDir string
	app     *core.App
}

func (p *program) Start(_ service.Service) error {
	app, err := buildApp(p.dataDir, false)
	if err != nil {
		return err
	}
	p.app = app
	if err := app.Start(); err != nil {
		return err
	}
	return nil
}

func (p *program) Stop(_ service.Service) error {
	if p.app != nil {
		p.app.Stop()
	}
	return nil
}
